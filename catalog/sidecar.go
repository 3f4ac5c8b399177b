package catalog

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/ohler55/ojg/oj"

	"github.com/biql-lang/biql/value"
)

// sidecarApplies decides whether a JSON sidecar (identified by its own
// parsed filename) contributes to a data file's metadata: the sidecar's
// entities must all be present with equal values on the data file, and
// its suffix (when it has one) must match the data file's suffix. This is
// the BIDS entity-subset inheritance rule; a sidecar with no entities and
// no suffix (a dataset-wide default) applies to everything beneath it.
func sidecarApplies(sidecar, dataFile ParsedFilename) bool {
	if sidecar.Suffix != "" && sidecar.Suffix != dataFile.Suffix {
		return false
	}
	for k, v := range sidecar.Entities {
		if dataFile.Entities[k] != v {
			return false
		}
	}
	return true
}

// mergeShallow merges next into acc, overriding acc's keys with next's.
// Nested maps are merged recursively (shallow per level); any other
// value, including lists, is replaced wholesale by the more specific
// sidecar.
func mergeShallow(acc map[string]value.Value, next map[string]value.Value) map[string]value.Value {
	for k, nv := range next {
		if ov, ok := acc[k]; ok && ov.Kind == value.KindMap && nv.Kind == value.KindMap {
			acc[k] = value.Map(mergeShallow(cloneMap(ov.Map), nv.Map))
			continue
		}
		acc[k] = nv
	}
	return acc
}

func cloneMap(m map[string]value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Warn records a single non-fatal parse failure encountered while
// building the catalog (SidecarWarning / ParticipantsWarning in the
// error-handling design).
type Warn struct {
	Path    string
	Message string
}

func (w Warn) String() string { return fmt.Sprintf("%s: %s", w.Path, w.Message) }

// ResolveSidecarMetadata computes the effective metadata for a data file
// at fileRelPath (slash-separated, relative to fs's root) by walking every
// ancestor directory from the dataset root down to the file's own
// directory and merging any applicable JSON sidecars, deeper directories
// and more specific sidecars winning. Parse failures are appended to warn
// and the offending sidecar is skipped.
func ResolveSidecarMetadata(fs billy.Filesystem, fileRelPath string, warn *[]Warn) map[string]value.Value {
	dir := path.Dir(fileRelPath)
	if dir == "." {
		dir = ""
	}
	base := path.Base(fileRelPath)
	dataParsed := ParseFilename(base)

	var ancestors []string
	for d := dir; ; {
		ancestors = append(ancestors, d)
		if d == "" || d == "." {
			break
		}
		parent := path.Dir(d)
		if parent == d {
			break
		}
		if parent == "." {
			parent = ""
		}
		d = parent
	}
	// ancestors currently runs from deepest to root; reverse to root-first
	for i, j := 0, len(ancestors)-1; i < j; i, j = i+1, j-1 {
		ancestors[i], ancestors[j] = ancestors[j], ancestors[i]
	}

	acc := make(map[string]value.Value)

	for _, adir := range ancestors {
		entries, err := fs.ReadDir(normalizeDir(adir))
		if err != nil {
			continue
		}

		type candidate struct {
			name    string
			parsed  ParsedFilename
			nEntity int
		}
		var candidates []candidate
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			if !strings.HasSuffix(name, ".json") {
				continue
			}
			parsed := ParseFilename(name)
			if !sidecarApplies(parsed, dataParsed) {
				continue
			}
			candidates = append(candidates, candidate{name: name, parsed: parsed, nEntity: len(parsed.Entities)})
		}

		// Within one directory, more-specific sidecars (more entities)
		// override less-specific ones sharing the same level.
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].nEntity < candidates[j].nEntity
		})

		for _, c := range candidates {
			full := path.Join(adir, c.name)
			contents, err := readFile(fs, normalizeDir(full))
			if err != nil {
				*warn = append(*warn, Warn{Path: full, Message: err.Error()})
				continue
			}
			parsed, err := oj.Parse(contents)
			if err != nil {
				*warn = append(*warn, Warn{Path: full, Message: "invalid JSON: " + err.Error()})
				continue
			}
			m, ok := parsed.(map[string]interface{})
			if !ok {
				*warn = append(*warn, Warn{Path: full, Message: "sidecar root is not a JSON object"})
				continue
			}
			acc = mergeShallow(acc, value.FromAny(m).Map)
		}
	}

	return acc
}

// normalizeDir maps the empty root-directory sentinel to billy's
// convention of "." for ReadDir/Open on filesystem roots.
func normalizeDir(d string) string {
	if d == "" {
		return "."
	}
	return d
}

func readFile(fs billy.Filesystem, name string) ([]byte, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, err := f.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
	}
	return buf, nil
}
