// Package catalog builds and represents the immutable, in-memory index of
// a BIDS dataset: one FileRecord per indexed file, with entities parsed
// from the filename, metadata resolved through BIDS sidecar inheritance,
// and participant attributes joined in by subject.
package catalog

import (
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/biql-lang/biql/value"
)

// FileRecord is a multi-namespace attribute bag for a single indexed file.
type FileRecord struct {
	Filepath     string
	RelativePath string
	Filename     string
	Extension    string
	Entities     map[string]string
	Suffix       string // empty means null
	Datatype     string // empty means null
	Metadata     map[string]value.Value
	Participants map[string]value.Value
}

// HasSuffix reports whether the record carries a non-null suffix.
func (r *FileRecord) HasSuffix() bool { return r.Suffix != "" }

// HasDatatype reports whether the record carries a non-null datatype.
func (r *FileRecord) HasDatatype() bool { return r.Datatype != "" }

// Computed returns the value of one of the record's computed fields
// (filename, filepath, relative_path, extension, suffix, datatype), or
// (Null, false) if name does not name one.
func (r *FileRecord) Computed(name string) (value.Value, bool) {
	switch name {
	case "filename":
		return value.Str(r.Filename), true
	case "filepath":
		return value.Str(r.Filepath), true
	case "relative_path":
		return value.Str(r.RelativePath), true
	case "extension":
		return value.Str(r.Extension), true
	case "suffix":
		if r.Suffix == "" {
			return value.Null, true
		}
		return value.Str(r.Suffix), true
	case "datatype":
		if r.Datatype == "" {
			return value.Null, true
		}
		return value.Str(r.Datatype), true
	default:
		return value.Null, false
	}
}

// Resolve resolves a bare (non-dotted) field against the record: first the
// computed fields, then the entity map. Missing names yield Null.
func (r *FileRecord) Resolve(name string) value.Value {
	if v, ok := r.Computed(name); ok {
		return v
	}
	if e, ok := r.Entities[name]; ok {
		return value.Str(e)
	}
	return value.Null
}

// ResolveMetadata resolves a dotted metadata.<key>[.<key>...] path.
func (r *FileRecord) ResolveMetadata(path []string) value.Value {
	return resolvePath(value.Map(r.Metadata), path)
}

// ResolveParticipants resolves a participants.<key> path (single segment
// by data-model definition, but additional segments walk into nested
// values the same way metadata does).
func (r *FileRecord) ResolveParticipants(path []string) value.Value {
	return resolvePath(value.Map(r.Participants), path)
}

func resolvePath(root value.Value, path []string) value.Value {
	cur := root
	for _, seg := range path {
		if cur.Kind != value.KindMap {
			return value.Null
		}
		next, ok := cur.Map[seg]
		if !ok {
			return value.Null
		}
		cur = next
	}
	return cur
}

// Catalog is the immutable, queryable collection of FileRecords produced
// by Build. Nothing in Catalog is mutated after construction; concurrent
// reads from multiple goroutines are always safe.
type Catalog struct {
	Records    []*FileRecord
	bySubject  map[string]*roaring.Bitmap
	byDatatype map[string]*roaring.Bitmap
}

// Stats summarizes the catalog for dataset_stats()/--show-stats.
type Stats struct {
	TotalFiles     int
	TotalSubjects  int
	FilesByDatatype map[string]int
	Subjects       []string
	Datatypes      []string
}

// BitmapForSubject returns the set of record indices carrying the given
// sub entity value, and whether an index exists for it. Used only as a
// candidate-set prefilter optimization by the evaluator; never load-bearing
// for correctness.
func (c *Catalog) BitmapForSubject(sub string) (*roaring.Bitmap, bool) {
	b, ok := c.bySubject[sub]
	return b, ok
}

// BitmapForDatatype returns the set of record indices carrying the given
// datatype, and whether an index exists for it.
func (c *Catalog) BitmapForDatatype(dt string) (*roaring.Bitmap, bool) {
	b, ok := c.byDatatype[dt]
	return b, ok
}

// RecordAt returns the record at the given index, as recorded in a bitmap
// built during indexing.
func (c *Catalog) RecordAt(i uint32) *FileRecord {
	return c.Records[i]
}

// Stats computes dataset_stats() from the bitmap indices in O(distinct
// values) rather than rescanning every record.
func (c *Catalog) Stats() Stats {
	st := Stats{
		TotalFiles:      len(c.Records),
		FilesByDatatype: make(map[string]int, len(c.byDatatype)),
	}

	subjects := make([]string, 0, len(c.bySubject))
	for sub, bm := range c.bySubject {
		subjects = append(subjects, sub)
		_ = bm
	}
	sort.Strings(subjects)
	st.Subjects = subjects
	st.TotalSubjects = len(subjects)

	datatypes := make([]string, 0, len(c.byDatatype))
	for dt, bm := range c.byDatatype {
		datatypes = append(datatypes, dt)
		st.FilesByDatatype[dt] = int(bm.GetCardinality())
	}
	sort.Strings(datatypes)
	st.Datatypes = datatypes

	return st
}
