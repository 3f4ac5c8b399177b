package engine

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biql-lang/biql/catalog"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	fs := catalog.BuildSyntheticDataset(t)
	eng, err := NewFromFS(context.Background(), fs, zerolog.Nop())
	require.NoError(t, err)
	return eng
}

func TestQuerySubjectFilterCount(t *testing.T) {
	eng := testEngine(t)
	res, err := eng.Query(`sub=01`)
	require.NoError(t, err)
	assert.Equal(t, 12, len(res.Rows.Rows))
}

func TestQueryLeadingZeroInsensitive(t *testing.T) {
	eng := testEngine(t)
	res, err := eng.Query(`sub=1`)
	require.NoError(t, err)
	assert.Equal(t, 12, len(res.Rows.Rows))
}

func TestQueryGroupByTaskCounts(t *testing.T) {
	eng := testEngine(t)
	res, err := eng.Query(`SELECT task, COUNT(*) AS n WHERE task IN [nback, rest, stroop] GROUP BY task`)
	require.NoError(t, err)

	counts := map[string]int64{}
	taskIdx, nIdx := -1, -1
	for i, c := range res.Rows.Columns {
		switch c {
		case "task":
			taskIdx = i
		case "n":
			nIdx = i
		}
	}
	require.NotEqual(t, -1, taskIdx)
	require.NotEqual(t, -1, nIdx)
	for _, row := range res.Rows.Rows {
		counts[row[taskIdx].String()] = row[nIdx].Int
	}

	assert.EqualValues(t, 20, counts["nback"])
	assert.EqualValues(t, 10, counts["rest"])
	assert.EqualValues(t, 5, counts["stroop"])
}

func TestQueryParticipantsAgeFilter(t *testing.T) {
	eng := testEngine(t)
	res, err := eng.Query(`SELECT DISTINCT sub WHERE participants.age > 25`)
	require.NoError(t, err)
	assert.Equal(t, 3, len(res.Rows.Rows))
}

func TestQueryMetadataInheritance(t *testing.T) {
	eng := testEngine(t)
	res, err := eng.Query(`SELECT filepath, metadata.RepetitionTime AS rt WHERE sub=01 AND ses=01 AND task=nback AND run=01 AND datatype=func`)
	require.NoError(t, err)
	require.Equal(t, 1, len(res.Rows.Rows))
	rtIdx := -1
	for i, c := range res.Rows.Columns {
		if c == "rt" {
			rtIdx = i
		}
	}
	require.NotEqual(t, -1, rtIdx)
	assert.Equal(t, "2.5", res.Rows.Rows[0][rtIdx].String())
}

func TestParseThenEvaluate(t *testing.T) {
	eng := testEngine(t)
	q, err := eng.Parse(`sub=01`)
	require.NoError(t, err)
	rows, err := eng.Evaluate(q)
	require.NoError(t, err)
	assert.Equal(t, 12, len(rows.Rows))
}

func TestQueryFormatClauseOverridesCallerFormat(t *testing.T) {
	eng := testEngine(t)
	res, err := eng.Query(`SELECT task WHERE sub=01 GROUP BY task FORMAT json`)
	require.NoError(t, err)
	assert.Equal(t, "json", res.Format)

	var buf bytes.Buffer
	require.NoError(t, eng.Format(res, "table", &buf))
	if buf.Len() == 0 || buf.Bytes()[0] != '[' {
		t.Fatalf("expected FORMAT json clause to override the table format, got %q", buf.String())
	}
}

func TestFormatPathsIgnoresGroupByAndSelect(t *testing.T) {
	eng := testEngine(t)
	res, err := eng.Query(`SELECT task, COUNT(*) AS n WHERE sub=01 GROUP BY task`)
	require.NoError(t, err)
	// Grouped by task, res.Rows collapses to a handful of rows; paths
	// output must still be one line per matching record, not one per group.
	require.NotEqual(t, 12, len(res.Rows.Rows))

	var buf bytes.Buffer
	require.NoError(t, eng.Format(res, "paths", &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, 12, len(lines))
}

func TestValidateRejectsBadSyntax(t *testing.T) {
	eng := testEngine(t)
	err := eng.Validate(`WHERE sub = `)
	assert.Error(t, err)
}

func TestDatasetStats(t *testing.T) {
	eng := testEngine(t)
	stats := eng.DatasetStats()
	assert.Equal(t, 5, stats.TotalSubjects)
	assert.True(t, stats.TotalFiles > 0)
}

func TestQueryConcurrentSafety(t *testing.T) {
	eng := testEngine(t)
	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := eng.Query(`sub=02`)
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}
}
