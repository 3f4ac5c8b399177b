package catalog

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/RoaringBitmap/roaring"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/biql-lang/biql/value"
)

// cancellationError wraps context.Canceled so engine error handling can
// distinguish an indexer abort from a genuine dataset error.
type cancellationError struct{ cause error }

func (e *cancellationError) Error() string { return "indexing canceled: " + e.cause.Error() }
func (e *cancellationError) Unwrap() error { return e.cause }

// Build indexes the BIDS dataset rooted at root on the local filesystem.
func Build(ctx context.Context, root string) (*Catalog, []Warn, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("dataset root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("dataset root %q is not a directory", root)
	}
	return BuildFS(ctx, osfs.New(root))
}

// BuildFS indexes the BIDS dataset rooted at fs's root, using fs as the
// filesystem abstraction — osfs.New(root) in production, memfs.New() in
// tests, so the indexer's traversal logic is testable without touching
// the real filesystem.
func BuildFS(ctx context.Context, fs billy.Filesystem) (*Catalog, []Warn, error) {
	var warns []Warn
	participants := LoadParticipants(fs, &warns)

	w := &walker{fs: fs, warn: &warns, visited: make(map[string]bool)}
	if err := w.walk(ctx, ""); err != nil {
		return nil, warns, err
	}

	cat := &Catalog{
		Records:    w.records,
		bySubject:  make(map[string]*roaring.Bitmap),
		byDatatype: make(map[string]*roaring.Bitmap),
	}

	for i, rec := range w.records {
		if sub, ok := rec.Entities["sub"]; ok {
			if attrs := participants.Lookup(sub); attrs != nil {
				rec.Participants = attrs
			}
			addToBitmap(cat.bySubject, sub, i)
		}
		if rec.HasDatatype() {
			addToBitmap(cat.byDatatype, rec.Datatype, i)
		}
	}

	return cat, warns, nil
}

func addToBitmap(idx map[string]*roaring.Bitmap, key string, i int) {
	bm, ok := idx[key]
	if !ok {
		bm = roaring.New()
		idx[key] = bm
	}
	bm.Add(uint32(i))
}

type walker struct {
	fs      billy.Filesystem
	warn    *[]Warn
	visited map[string]bool // canonical directory paths already descended into
	records []*FileRecord
}

// walk performs the pre-order directory traversal rooted at dir (relative
// to w.fs, "" meaning the dataset root). Files are appended to w.records
// in walk order, which is the catalog's insertion order.
func (w *walker) walk(ctx context.Context, dir string) error {
	select {
	case <-ctx.Done():
		return &cancellationError{cause: ctx.Err()}
	default:
	}

	canon := canonicalize(dir)
	if w.visited[canon] {
		return nil
	}
	w.visited[canon] = true

	entries, err := w.fs.ReadDir(normalizeDir(dir))
	if err != nil {
		return fmt.Errorf("reading directory %q: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var subdirs, files []string
	for _, e := range entries {
		rel := path.Join(dir, e.Name())
		mode := e.Mode()
		if mode&os.ModeSymlink != 0 {
			target, derefIsDir, err := w.resolveSymlink(rel)
			if err != nil {
				*w.warn = append(*w.warn, Warn{Path: rel, Message: err.Error()})
				continue
			}
			if derefIsDir {
				subdirs = append(subdirs, target)
			} else {
				files = append(files, rel)
			}
			continue
		}
		if e.IsDir() {
			subdirs = append(subdirs, rel)
		} else {
			files = append(files, rel)
		}
	}

	for _, f := range files {
		select {
		case <-ctx.Done():
			return &cancellationError{cause: ctx.Err()}
		default:
		}
		w.indexFile(f)
	}

	for _, d := range subdirs {
		if err := w.walk(ctx, d); err != nil {
			return err
		}
	}

	return nil
}

// resolveSymlink follows a symlink once and reports whether its target is
// a directory, for cycle-safe traversal.
func (w *walker) resolveSymlink(rel string) (target string, isDir bool, err error) {
	lnk, err := w.fs.Readlink(normalizeDir(rel))
	if err != nil {
		return "", false, err
	}
	target = path.Clean(path.Join(path.Dir(rel), lnk))
	info, err := w.fs.Stat(normalizeDir(target))
	if err != nil {
		return "", false, err
	}
	return target, info.IsDir(), nil
}

func canonicalize(dir string) string {
	c := path.Clean("/" + dir)
	return c
}

// isSidecarOrIndex reports whether a file is itself a BIDS sidecar or
// index file (JSON sidecar, *_scans.tsv, *_sessions.tsv,
// participants.tsv) rather than a datatype data file — these are indexed
// as ordinary FileRecords but never receive a datatype, even when they
// live inside a datatype directory.
func isSidecarOrIndex(base string, parsed ParsedFilename) bool {
	if parsed.Extension == ".json" {
		return true
	}
	if base == "participants.tsv" {
		return true
	}
	if parsed.Extension == ".tsv" && (parsed.Suffix == "scans" || parsed.Suffix == "sessions") {
		return true
	}
	return false
}

func (w *walker) indexFile(relPath string) {
	base := path.Base(relPath)
	dir := path.Dir(relPath)
	if dir == "." {
		dir = ""
	}

	parsed := ParseFilename(base)

	datatype := ""
	if dir != "" && !isSidecarOrIndex(base, parsed) {
		datatype = DatatypeFromDir(path.Base(dir))
	}

	metadata := map[string]value.Value{}
	if !isSidecarOrIndex(base, parsed) {
		metadata = ResolveSidecarMetadata(w.fs, relPath, w.warn)
	}

	rec := &FileRecord{
		Filepath:     path.Join(w.fs.Root(), relPath),
		RelativePath: relPath,
		Filename:     base,
		Extension:    parsed.Extension,
		Entities:     parsed.Entities,
		Suffix:       parsed.Suffix,
		Datatype:     datatype,
		Metadata:     metadata,
		Participants: map[string]value.Value{},
	}

	w.records = append(w.records, rec)
}
