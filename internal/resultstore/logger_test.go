package resultstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nomos-run/nomos/internal/model"
)

func TestJobLoggerAppendAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "job-a", "1.log")
	logger, err := NewJobLogger(path, "job-a", "1")
	if err != nil {
		t.Fatalf("NewJobLogger: %v", err)
	}

	if err := logger.Log(model.LevelInfo, "build", "starting"); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := logger.Log(model.LevelError, "build", "failed"); err != nil {
		t.Fatalf("Log: %v", err)
	}

	records, err := logger.GetLogs()
	if err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Level != model.LevelInfo || records[0].Message != "starting" {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	if records[1].Level != model.LevelError || records[1].Message != "failed" {
		t.Errorf("unexpected second record: %+v", records[1])
	}
	for _, r := range records {
		if r.StepName != "build" {
			t.Errorf("expected step_name build, got %q", r.StepName)
		}
	}
}

func TestJobLoggerSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.log")
	logger, err := NewJobLogger(path, "job-a", "1")
	if err != nil {
		t.Fatalf("NewJobLogger: %v", err)
	}
	if err := logger.Log(model.LevelInfo, "build", "good line"); err != nil {
		t.Fatalf("Log: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("opening log for corruption: %v", err)
	}
	if _, err := f.WriteString("{not valid json\n"); err != nil {
		t.Fatalf("writing malformed line: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}

	records, err := logger.GetLogs()
	if err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected malformed line skipped, leaving 1 record, got %d", len(records))
	}
}

func TestNoopJobLoggerDiscardsWrites(t *testing.T) {
	logger := NewNoopJobLogger()
	if err := logger.Log(model.LevelInfo, "build", "should not be written anywhere"); err != nil {
		t.Fatalf("Log on noop logger: %v", err)
	}
	records, err := logger.GetLogs()
	if err != nil {
		t.Fatalf("GetLogs on noop logger: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records from noop logger, got %v", records)
	}
}

func TestJobLoggerCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "1.log")
	if _, err := NewJobLogger(path, "job-a", "1"); err != nil {
		t.Fatalf("NewJobLogger: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("expected parent directory created, stat err: %v", err)
	}
}
