package catalog

import (
	"context"
	"testing"
)

func TestBuildFSIndexesAllFiles(t *testing.T) {
	fs := BuildSyntheticDataset(t)
	cat, warns, err := BuildFS(context.Background(), fs)
	if err != nil {
		t.Fatalf("BuildFS: %v", err)
	}
	for _, w := range warns {
		t.Logf("warning: %s", w)
	}

	stats := cat.Stats()
	if stats.TotalSubjects != 5 {
		t.Fatalf("expected 5 subjects, got %d", stats.TotalSubjects)
	}
	if stats.TotalFiles != len(cat.Records) {
		t.Fatalf("stats.TotalFiles should equal record count")
	}
}

func TestSubjectOneHasTwelveRecords(t *testing.T) {
	fs := BuildSyntheticDataset(t)
	cat, _, err := BuildFS(context.Background(), fs)
	if err != nil {
		t.Fatalf("BuildFS: %v", err)
	}

	count := 0
	for _, r := range cat.Records {
		if r.Entities["sub"] == "01" {
			count++
		}
	}
	if count != 12 {
		t.Fatalf("expected 12 records for sub=01, got %d", count)
	}
}

func TestDatatypeInferredFromImmediateDir(t *testing.T) {
	fs := BuildSyntheticDataset(t)
	cat, _, err := BuildFS(context.Background(), fs)
	if err != nil {
		t.Fatalf("BuildFS: %v", err)
	}

	var sawFunc, sawAnat, sawBeh bool
	for _, r := range cat.Records {
		switch r.Datatype {
		case "func":
			sawFunc = true
		case "anat":
			sawAnat = true
		case "beh":
			sawBeh = true
		}
		if r.Filename == "participants.tsv" && r.HasDatatype() {
			t.Fatalf("participants.tsv must not carry a datatype")
		}
	}
	if !sawFunc || !sawAnat || !sawBeh {
		t.Fatalf("expected to see func/anat/beh datatypes, got func=%v anat=%v beh=%v", sawFunc, sawAnat, sawBeh)
	}
}

func TestSidecarInheritanceDeeperWins(t *testing.T) {
	fs := BuildSyntheticDataset(t)
	cat, _, err := BuildFS(context.Background(), fs)
	if err != nil {
		t.Fatalf("BuildFS: %v", err)
	}

	var sub01Run01, sub01Run02 *FileRecord
	for _, r := range cat.Records {
		if r.Entities["sub"] == "01" && r.Entities["ses"] == "01" && r.Entities["task"] == "nback" {
			if r.Entities["run"] == "01" {
				sub01Run01 = r
			}
			if r.Entities["run"] == "02" {
				sub01Run02 = r
			}
		}
	}
	if sub01Run01 == nil || sub01Run02 == nil {
		t.Fatal("expected to find both nback runs for sub-01 ses-01")
	}

	rt01 := sub01Run01.Metadata["RepetitionTime"]
	if rt01.String() != "2.5" {
		t.Fatalf("expected file-specific override RepetitionTime=2.5, got %v", rt01)
	}
	rt02 := sub01Run02.Metadata["RepetitionTime"]
	if rt02.String() != "2" {
		t.Fatalf("expected dataset-wide RepetitionTime=2 for run-02, got %v", rt02)
	}
	if sub01Run02.Metadata["TaskName"].String() != "nback" {
		t.Fatalf("expected inherited TaskName, got %v", sub01Run02.Metadata["TaskName"])
	}
}

func TestParticipantsJoin(t *testing.T) {
	fs := BuildSyntheticDataset(t)
	cat, _, err := BuildFS(context.Background(), fs)
	if err != nil {
		t.Fatalf("BuildFS: %v", err)
	}

	found := false
	for _, r := range cat.Records {
		if r.Entities["sub"] == "02" && r.Datatype == "anat" {
			found = true
			if r.Participants["age"].String() != "30" {
				t.Fatalf("expected joined age 30, got %v", r.Participants["age"])
			}
		}
	}
	if !found {
		t.Fatal("expected to find an anat record for sub-02")
	}
}

func TestCancellation(t *testing.T) {
	fs := BuildSyntheticDataset(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := BuildFS(ctx, fs)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
