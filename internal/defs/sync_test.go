package defs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nomos-run/nomos/internal/model"
	"github.com/nomos-run/nomos/internal/opregistry"
)

type capturingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (c *capturingLogger) Log(level model.LogLevel, stepName, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, message)
	return nil
}

func (c *capturingLogger) joined() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.lines, "\n")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestSyncUpsertsAndDeletesStaleEntries(t *testing.T) {
	store := NewStore(t.TempDir())
	syncDir := t.TempDir()

	writeFile(t, filepath.Join(syncDir, "settings.yml"), "credentials:\n  - id: db\n    value:\n      type: text\n      value: secret\n")
	writeFile(t, filepath.Join(syncDir, "scripts", "build.yml"), "id: build\nname: Build\nsteps: []\n")
	writeFile(t, filepath.Join(syncDir, "jobs", "nightly.yml"), "id: nightly\nname: Nightly\nscript_id: build\n")

	// Pre-seed a stale, non-read-only script and job that the sync source no
	// longer defines; both should be deleted.
	if err := store.SaveScript(model.Script{ID: "stale", Name: "Stale"}); err != nil {
		t.Fatalf("seeding stale script: %v", err)
	}
	if err := store.SaveJob(model.Job{ID: "stale-job", Name: "Stale"}); err != nil {
		t.Fatalf("seeding stale job: %v", err)
	}
	// A read-only job must survive even though it's absent from the sync
	// source.
	if err := store.SaveJob(model.Job{ID: "protected", Name: "Protected", ReadOnly: true}); err != nil {
		t.Fatalf("seeding protected job: %v", err)
	}

	logger := &capturingLogger{}
	ectx := &opregistry.ExecutionContext{StepName: "sync", Logger: logger}

	if err := store.Sync(context.Background(), ectx, syncDir); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if _, err := store.GetCredential("db"); err != nil {
		t.Errorf("expected credential db synced: %v", err)
	}
	if _, err := store.GetScript("build"); err != nil {
		t.Errorf("expected script build synced: %v", err)
	}
	if _, err := store.GetJob("nightly"); err != nil {
		t.Errorf("expected job nightly synced: %v", err)
	}

	if _, err := store.GetScript("stale"); err == nil {
		t.Error("expected stale script deleted")
	}
	if _, err := store.GetJob("stale-job"); err == nil {
		t.Error("expected stale job deleted")
	}
	if _, err := store.GetJob("protected"); err != nil {
		t.Errorf("expected read-only job to survive sync: %v", err)
	}

	out := logger.joined()
	if !strings.Contains(out, "created credential db") {
		t.Errorf("expected credential creation logged, got: %s", out)
	}
	if !strings.Contains(out, "deleted script stale") {
		t.Errorf("expected stale script deletion logged, got: %s", out)
	}
}

func TestSyncSkipsMissingSettingsFile(t *testing.T) {
	store := NewStore(t.TempDir())
	syncDir := t.TempDir()
	logger := &capturingLogger{}
	ectx := &opregistry.ExecutionContext{StepName: "sync", Logger: logger}

	if err := store.Sync(context.Background(), ectx, syncDir); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !strings.Contains(logger.joined(), "no settings.yml found") {
		t.Errorf("expected missing-settings note logged, got: %s", logger.joined())
	}
}
