// Package engine ties the catalog, query, and format packages together
// behind the facade the CLI (and any other embedder) drives: build a
// dataset catalog once, then run any number of queries against it.
package engine

import (
	"context"
	"io"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/biql-lang/biql/catalog"
	"github.com/biql-lang/biql/format"
	"github.com/biql-lang/biql/query"
	"github.com/biql-lang/biql/value"
)

// Engine holds one built catalog and runs queries against it. An Engine
// is safe for concurrent use by multiple goroutines: Catalog is
// immutable after Build, and each Query call constructs its own
// evaluator state.
type Engine struct {
	cat    *catalog.Catalog
	warns  []catalog.Warn
	log    zerolog.Logger
	dsPath string
}

// New builds a catalog by walking root and returns a ready Engine.
func New(ctx context.Context, root string, log zerolog.Logger) (*Engine, error) {
	start := time.Now()
	cat, warns, err := catalog.Build(ctx, root)
	if err != nil {
		return nil, &DatasetError{Path: root, Err: err}
	}
	log.Info().
		Str("dataset", root).
		Int("files", len(cat.Records)).
		Int("warnings", len(warns)).
		Dur("elapsed", time.Since(start)).
		Msg("catalog built")
	for _, w := range warns {
		log.Warn().Str("path", w.Path).Msg(w.Message)
	}
	return &Engine{cat: cat, warns: warns, log: log, dsPath: root}, nil
}

// NewFromFS builds a catalog from an already-open filesystem, bypassing
// path resolution. Used by tests against an in-memory dataset and by any
// embedder that already holds a billy.Filesystem.
func NewFromFS(ctx context.Context, fs billy.Filesystem, log zerolog.Logger) (*Engine, error) {
	cat, warns, err := catalog.BuildFS(ctx, fs)
	if err != nil {
		return nil, &DatasetError{Path: fs.Root(), Err: err}
	}
	return &Engine{cat: cat, warns: warns, log: log, dsPath: fs.Root()}, nil
}

// Warnings returns every non-fatal warning raised while building the
// catalog (sidecar parse failures, missing participants.tsv columns).
func (e *Engine) Warnings() []catalog.Warn { return e.warns }

// DatasetStats returns the dataset_stats() summary.
func (e *Engine) DatasetStats() catalog.Stats { return e.cat.Stats() }

// Parse validates and parses BIQL query text without executing it.
func (e *Engine) Parse(text string) (*query.Query, error) {
	q, err := query.Parse(text)
	if err != nil {
		return nil, &SyntaxError{Query: text, Err: err}
	}
	return q, nil
}

// QueryResult is the outcome of running a query end to end: the rows,
// any evaluation warnings raised while comparing malformed predicates,
// and the format the query text itself requested via a trailing FORMAT
// clause, if any.
type QueryResult struct {
	CorrelationID string
	Rows          *query.RowSet
	Warnings      []query.EvalWarning
	Format        string // from a "... FORMAT <name>" clause; "" if unset

	// filtered holds the WHERE-matched records before projection or
	// grouping, for the paths formatter, which is pre-grouping and
	// ignores SELECT.
	filtered []*catalog.FileRecord
}

// Evaluate runs an already-parsed AST against the built catalog, without
// the parsing or logging steps Query wraps around it. This is the thin
// evaluate half of the parse/evaluate pair: Parse produces the AST,
// Evaluate runs it, and Query composes both for the common case.
func (e *Engine) Evaluate(q *query.Query) (*query.RowSet, error) {
	result, err := query.Execute(q, e.cat)
	if err != nil {
		return nil, err
	}
	return result.Rows, nil
}

// Query parses and executes BIQL query text against the built catalog.
func (e *Engine) Query(text string) (*QueryResult, error) {
	corrID := uuid.NewString()
	log := e.log.With().Str("correlation_id", corrID).Logger()

	start := time.Now()
	q, err := e.Parse(text)
	if err != nil {
		log.Warn().Err(err).Str("query", text).Msg("query parse failed")
		return nil, err
	}

	result, err := query.Execute(q, e.cat)
	if err != nil {
		log.Warn().Err(err).Str("query", text).Msg("query execution failed")
		return nil, err
	}

	log.Info().
		Str("query", text).
		Int("rows", len(result.Rows.Rows)).
		Int("warnings", len(result.Warnings)).
		Dur("elapsed", time.Since(start)).
		Msg("query executed")

	for _, w := range result.Warnings {
		log.Debug().Str("field", w.Field).Msg(w.Message)
	}

	return &QueryResult{
		CorrelationID: corrID,
		Rows:          result.Rows,
		Warnings:      result.Warnings,
		Format:        q.Format,
		filtered:      result.Filtered,
	}, nil
}

// Format renders a query result to w. A FORMAT clause in the original
// query text (res.Format) takes precedence over formatName, so
// "SELECT * FORMAT json" renders as JSON even when the caller (e.g. the
// CLI's --format flag) asked for something else.
//
// The paths format is pre-grouping and ignores SELECT: it renders from
// the WHERE-matched records directly rather than from the
// already-projected/grouped res.Rows, so GROUP BY or a SELECT list with
// no filepath column doesn't collapse or block path output.
func (e *Engine) Format(res *QueryResult, formatName string, w io.Writer) error {
	effective := formatName
	if res.Format != "" {
		effective = res.Format
	}

	rows := res.Rows
	if effective == "paths" {
		rows = pathRowSet(res.filtered)
	}

	f, err := format.New(effective, w)
	if err != nil {
		return &OutputError{Format: effective, Err: err}
	}
	if err := f.Format(rows); err != nil {
		return &OutputError{Format: effective, Err: err}
	}
	return nil
}

// pathRowSet builds a single-column "filepath" row set directly from the
// WHERE-matched records, bypassing whatever projection or grouping the
// query's SELECT/GROUP BY clauses specified.
func pathRowSet(records []*catalog.FileRecord) *query.RowSet {
	rs := query.NewRowSet([]string{"filepath"})
	for _, rec := range records {
		rs.AddRow([]value.Value{value.Str(rec.Filepath)})
	}
	return rs
}

// Validate reports whether query text parses, without executing it.
func (e *Engine) Validate(text string) error {
	_, err := e.Parse(text)
	return err
}
