package catalog

import (
	"fmt"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
)

// subjectAges seeds participants.tsv for the synthetic fixture; subjects
// 02, 04 and 05 are over 25, matching the "participants.age > 25" seed
// scenario.
var subjectAges = map[string]int{
	"01": 22,
	"02": 30,
	"03": 19,
	"04": 41,
	"05": 27,
}

// BuildSyntheticDataset populates an in-memory BIDS-like tree matching
// the seed scenarios: subjects 01..05, sessions 01/02, task nback (runs
// 01/02) and rest (no run) under func, a T1w anat file per session, and a
// stroop beh file present only in session 01. Returns the populated
// filesystem for use with BuildFS.
//
// The two nback JSON sidecars it also writes are indexed as records like
// any other file: both carry task=nback, and the sub-01 one also carries
// sub=01, ses=01 and run=01.
func BuildSyntheticDataset(t *testing.T) billy.Filesystem {
	t.Helper()
	fs := memfs.New()

	writeFile(t, fs, "participants.tsv", participantsTSV())

	for _, sub := range []string{"01", "02", "03", "04", "05"} {
		subDir := "sub-" + sub
		writeFile(t, fs, subDir+"/sub-"+sub+"_sessions.tsv", "session_id\tacq_time\nses-01\t2024-01-01\nses-02\t2024-02-01\n")

		for _, ses := range []string{"01", "02"} {
			base := fmt.Sprintf("%s_ses-%s", subDir, ses)
			writeFile(t, fs, subDir+"/ses-"+ses+"/"+base+"_scans.tsv", "filename\tacq_time\n")

			anatBase := fmt.Sprintf("sub-%s_ses-%s_T1w.nii.gz", sub, ses)
			writeFile(t, fs, subDir+"/ses-"+ses+"/anat/"+anatBase, "nifti-placeholder")

			for _, run := range []string{"01", "02"} {
				funcBase := fmt.Sprintf("sub-%s_ses-%s_task-nback_run-%s_bold.nii.gz", sub, ses, run)
				writeFile(t, fs, subDir+"/ses-"+ses+"/func/"+funcBase, "nifti-placeholder")
			}
			restBase := fmt.Sprintf("sub-%s_ses-%s_task-rest_bold.nii.gz", sub, ses)
			writeFile(t, fs, subDir+"/ses-"+ses+"/func/"+restBase, "nifti-placeholder")

			if ses == "01" {
				behBase := fmt.Sprintf("sub-%s_ses-%s_task-stroop_beh.tsv", sub, ses)
				writeFile(t, fs, subDir+"/ses-"+ses+"/beh/"+behBase, "onset\tresponse\n0.0\tcorrect\n")
			}
		}
	}

	// Dataset-wide sidecar applying to every nback bold file regardless of
	// subject/session, exercising inheritance across the whole tree.
	writeFile(t, fs, "task-nback_bold.json", `{"RepetitionTime": 2.0, "TaskName": "nback"}`)
	// Session-level override, exercising "deeper wins".
	for _, sub := range []string{"01"} {
		writeFile(t, fs, "sub-"+sub+"/ses-01/func/sub-"+sub+"_ses-01_task-nback_run-01_bold.json", `{"RepetitionTime": 2.5}`)
	}

	return fs
}

func participantsTSV() string {
	out := "participant_id\tage\tgroup\n"
	for _, sub := range []string{"01", "02", "03", "04", "05"} {
		out += fmt.Sprintf("sub-%s\t%d\tcontrol\n", sub, subjectAges[sub])
	}
	return out
}

func writeFile(t *testing.T, fs billy.Filesystem, relPath, contents string) {
	t.Helper()
	if err := fs.MkdirAll(dirOf(relPath), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", relPath, err)
	}
	f, err := fs.Create(relPath)
	if err != nil {
		t.Fatalf("create %s: %v", relPath, err)
	}
	defer f.Close()
	if _, err := f.Write([]byte(contents)); err != nil {
		t.Fatalf("write %s: %v", relPath, err)
	}
}

func dirOf(relPath string) string {
	for i := len(relPath) - 1; i >= 0; i-- {
		if relPath[i] == '/' {
			return relPath[:i]
		}
	}
	return "."
}
