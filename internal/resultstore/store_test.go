package resultstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nomos-run/nomos/internal/model"
)

func newTestResult(id, jobID string, startedAt time.Time) *model.JobResult {
	return &model.JobResult{
		ID:        id,
		JobID:     jobID,
		Status:    model.ResultRunning,
		StartedAt: startedAt,
		UpdatedAt: startedAt,
		Steps: []model.RunningScriptStep{
			{Name: "build", Status: model.StepPending},
		},
	}
}

func TestStoreSaveGetRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	result := newTestResult("1", "job-a", time.Now().UTC())

	if err := store.Save(result); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get("1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != result.ID || got.JobID != result.JobID || got.Status != result.Status {
		t.Errorf("round-tripped result mismatch: got %+v, want %+v", got, result)
	}
	if len(got.Steps) != 1 || got.Steps[0].Name != "build" {
		t.Errorf("expected steps to round-trip, got %+v", got.Steps)
	}
}

func TestStoreSaveDryRunIsNoop(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	result := newTestResult(model.DryRunID, "job-a", time.Now().UTC())
	result.DryRun = true

	if err := store.Save(result); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "job_results", model.DryRunID)); !os.IsNotExist(err) {
		t.Errorf("expected no directory written for dry-run result, stat err = %v", err)
	}
}

func TestStoreGetAllFiltersByJobAndSkipsMalformed(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	base := time.Now().UTC()
	r1 := newTestResult("1", "job-a", base.Add(-2*time.Hour))
	r2 := newTestResult("2", "job-a", base.Add(-1*time.Hour))
	r3 := newTestResult("3", "job-b", base)

	for _, r := range []*model.JobResult{r1, r2, r3} {
		if err := store.Save(r); err != nil {
			t.Fatalf("Save %s: %v", r.ID, err)
		}
	}

	// Seed a result directory with an unparseable result.yml.
	badDir := filepath.Join(root, "job_results", "4")
	if err := os.MkdirAll(badDir, 0o755); err != nil {
		t.Fatalf("seeding bad dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(badDir, "result.yml"), []byte("not: [valid"), 0o644); err != nil {
		t.Fatalf("seeding bad result.yml: %v", err)
	}

	all, err := store.GetAll("")
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 parseable results, got %d", len(all))
	}
	if all[0].ID != "3" || all[1].ID != "2" || all[2].ID != "1" {
		t.Errorf("expected results sorted by StartedAt descending, got order %s, %s, %s", all[0].ID, all[1].ID, all[2].ID)
	}

	filtered, err := store.GetAll("job-a")
	if err != nil {
		t.Fatalf("GetAll(job-a): %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 results for job-a, got %d", len(filtered))
	}
	for _, r := range filtered {
		if r.JobID != "job-a" {
			t.Errorf("expected only job-a results, got %s", r.JobID)
		}
	}
}

func TestStoreGetAllEmptyWhenRootMissing(t *testing.T) {
	store := NewStore(t.TempDir())
	all, err := store.GetAll("")
	if err != nil {
		t.Fatalf("GetAll on missing root: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected empty slice, got %v", all)
	}
}
