package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/biql-lang/biql/engine"
)

// Exit codes, per the CLI's documented interface.
const (
	exitOK           = 0
	exitSyntaxError  = 1
	exitDatasetError = 2
	exitOutputError  = 3
	exitUsageError   = 4
)

var (
	datasetPath  string
	outputFormat string
	outputPath   string
	validate     bool
	validateOnly bool
	showStats    bool
	showEntities bool
	debug        bool
	profile      bool
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitUsageError)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "biql [flags] <query>",
		Short:   "Query BIDS neuroimaging file catalogs with a SQL-like language",
		Version: "0.1.0",
		Args:    cobra.ArbitraryArgs,
		RunE:    runQuery,
	}

	cmd.Flags().StringVarP(&datasetPath, "dataset", "d", envOr("BIQL_DATASET_PATH", "."), "path to the BIDS dataset root")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", envOr("BIQL_OUTPUT_FORMAT", "json"), "output format: json, csv, tsv, table, paths")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write results to a file instead of stdout")
	cmd.Flags().BoolVarP(&validate, "validate", "v", false, "check the query syntax only and report whether it is valid")
	cmd.Flags().BoolVar(&validateOnly, "validate-only", false, "validate the query and exit without executing it")
	cmd.Flags().BoolVar(&showStats, "show-stats", false, "print dataset_stats() and exit")
	cmd.Flags().BoolVar(&showEntities, "show-entities", false, "print each entity key observed in the dataset with its distinct values and exit")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug-level structured logging")
	cmd.Flags().BoolVar(&profile, "profile", false, "log catalog build and query timing at info level")

	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	} else if profile {
		level = zerolog.InfoLevel
	}
	var out zerolog.ConsoleWriter
	if isatty.IsTerminal(os.Stderr.Fd()) {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	} else {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func runQuery(cmd *cobra.Command, args []string) error {
	log := newLogger()

	eng, err := engine.New(context.Background(), datasetPath, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "biql: %v\n", err)
		os.Exit(exitDatasetError)
	}

	if showStats {
		printStats(eng)
		return nil
	}

	if showEntities {
		printEntities(eng)
		return nil
	}

	queryText := strings.Join(args, " ")

	if validate || validateOnly {
		if err := eng.Validate(queryText); err != nil {
			fmt.Fprintf(os.Stderr, "biql: %v\n", err)
			os.Exit(exitSyntaxError)
		}
		if validateOnly {
			fmt.Println("OK")
			return nil
		}
		fmt.Println("Query syntax is valid")
		return nil
	}

	res, err := eng.Query(queryText)
	if err != nil {
		fmt.Fprintf(os.Stderr, "biql: %v\n", err)
		os.Exit(exitSyntaxError)
	}

	out := os.Stdout
	if outputPath != "" {
		f, ferr := os.Create(outputPath)
		if ferr != nil {
			fmt.Fprintf(os.Stderr, "biql: cannot open output file: %v\n", ferr)
			os.Exit(exitOutputError)
		}
		defer f.Close()
		if err := eng.Format(res, outputFormat, f); err != nil {
			fmt.Fprintf(os.Stderr, "biql: %v\n", err)
			os.Exit(exitOutputError)
		}
		return nil
	}

	if err := eng.Format(res, outputFormat, out); err != nil {
		fmt.Fprintf(os.Stderr, "biql: %v\n", err)
		os.Exit(exitOutputError)
	}

	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "biql: warning: %s: %s\n", w.Field, w.Message)
	}

	return nil
}

func printStats(eng *engine.Engine) {
	stats := eng.DatasetStats()
	fmt.Printf("total_files: %d\n", stats.TotalFiles)
	fmt.Printf("total_subjects: %d\n", stats.TotalSubjects)
	fmt.Printf("subjects: %s\n", strings.Join(stats.Subjects, ", "))
	fmt.Println("files_by_datatype:")
	for _, dt := range stats.Datatypes {
		fmt.Printf("  %s: %d\n", dt, stats.FilesByDatatype[dt])
	}
}

// coreFields are the computed, non-entity columns SELECT * always
// produces; --show-entities is only interested in the BIDS entity
// key-value pairs, so these are excluded from its output.
var coreFields = map[string]bool{
	"filepath": true, "relative_path": true, "filename": true,
	"extension": true, "suffix": true, "datatype": true,
}

func printEntities(eng *engine.Engine) {
	res, err := eng.Query("SELECT *")
	if err != nil {
		fmt.Fprintf(os.Stderr, "biql: %v\n", err)
		os.Exit(exitSyntaxError)
	}

	entityIdx := map[string]int{}
	for i, col := range res.Rows.Columns {
		if !coreFields[col] {
			entityIdx[col] = i
		}
	}

	names := make([]string, 0, len(entityIdx))
	for name := range entityIdx {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		idx := entityIdx[name]
		seen := map[string]bool{}
		for _, row := range res.Rows.Rows {
			v := row[idx]
			if v.IsNull() {
				continue
			}
			seen[v.String()] = true
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)
		fmt.Printf("%s: [%s]\n", name, strings.Join(values, ", "))
	}
}
