package catalog

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/biql-lang/biql/value"
)

// ParticipantsTable maps a subject token (both "sub-01" and "01" forms
// index the same row) to its column values.
type ParticipantsTable map[string]map[string]value.Value

// LoadParticipants reads participants.tsv at the dataset root, if
// present. A missing table yields an empty ParticipantsTable; a malformed
// row is skipped and recorded in warn.
func LoadParticipants(fs billy.Filesystem, warn *[]Warn) ParticipantsTable {
	table := make(ParticipantsTable)

	f, err := fs.Open("participants.tsv")
	if err != nil {
		return table
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err != io.EOF {
			*warn = append(*warn, Warn{Path: "participants.tsv", Message: err.Error()})
		}
		return table
	}

	subCol := -1
	for i, h := range header {
		if h == "participant_id" {
			subCol = i
			break
		}
	}
	if subCol == -1 {
		*warn = append(*warn, Warn{Path: "participants.tsv", Message: "missing participant_id column"})
		return table
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			*warn = append(*warn, Warn{Path: "participants.tsv", Message: err.Error()})
			continue
		}
		if subCol >= len(row) {
			*warn = append(*warn, Warn{Path: "participants.tsv", Message: "row missing participant_id value"})
			continue
		}

		rowMap := make(map[string]value.Value, len(header))
		for i, h := range header {
			if i == subCol || i >= len(row) {
				continue
			}
			rowMap[h] = coerceTSVValue(row[i])
		}

		subToken := strings.TrimPrefix(row[subCol], "sub-")
		table["sub-"+subToken] = rowMap
		table[subToken] = rowMap
	}

	return table
}

// coerceTSVValue turns a raw TSV cell into a Value: an empty cell, "n/a"
// or "NA" becomes null and every other cell is kept as a string. Numbers
// are not parsed here; the evaluator interprets numeric strings at
// comparison time.
func coerceTSVValue(cell string) value.Value {
	if cell == "" || cell == "n/a" || cell == "NA" {
		return value.Null
	}
	return value.Str(cell)
}

// Lookup returns the attribute map for a subject entity value (as stored
// in FileRecord.Entities["sub"]), or nil if the participant has no row.
func (t ParticipantsTable) Lookup(sub string) map[string]value.Value {
	if m, ok := t[sub]; ok {
		return m
	}
	if m, ok := t["sub-"+sub]; ok {
		return m
	}
	return nil
}
