package catalog

import "strings"

// DatatypeLabels is the closed set of BIDS datatype directory names the
// filename parser recognizes. Exposed so --show-entities and tests can
// enumerate it without duplicating the list.
var DatatypeLabels = map[string]bool{
	"anat": true,
	"func": true,
	"dwi":  true,
	"beh":  true,
	"eeg":  true,
	"meg":  true,
	"ieeg": true,
	"fmap": true,
	"pet":  true,
	"perf": true,
	"micr": true,
}

// ParsedFilename is the output of parsing a single path's base name:
// entities, an optional suffix, and the extension.
type ParsedFilename struct {
	Entities  map[string]string
	Suffix    string // empty means none
	Extension string
}

// ParseFilename decomposes a BIDS-style filename. It never fails:
// malformed names simply yield whatever entities were recognizable and
// no suffix.
func ParseFilename(base string) ParsedFilename {
	ext := extensionOf(base)
	stem := strings.TrimSuffix(base, ext)

	segments := strings.Split(stem, "_")
	entities := make(map[string]string)
	suffix := ""

	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if idx := strings.Index(seg, "-"); idx > 0 {
			key := seg[:idx]
			val := seg[idx+1:]
			entities[key] = val
			continue
		}
		if i == len(segments)-1 {
			suffix = seg
		}
		// non-last, no-dash segments are tolerated and ignored
	}

	return ParsedFilename{Entities: entities, Suffix: suffix, Extension: ext}
}

// extensionOf returns everything from the first '.' in base to the end,
// so compound extensions like ".nii.gz" come back whole. base must
// already be stripped of any directory component.
func extensionOf(base string) string {
	idx := strings.Index(base, ".")
	if idx < 0 {
		return ""
	}
	return base[idx:]
}

// DatatypeFromDir returns the BIDS datatype implied by a directory name,
// or "" if dirName is not one of DatatypeLabels.
func DatatypeFromDir(dirName string) string {
	if DatatypeLabels[dirName] {
		return dirName
	}
	return ""
}

// StemOf returns base with its extension (as computed by extensionOf)
// removed, for sidecar-to-datafile stem matching.
func StemOf(base string) string {
	return strings.TrimSuffix(base, extensionOf(base))
}
