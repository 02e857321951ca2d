package resultstore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nomos-run/nomos/internal/model"
)

// JobLogger appends one JSON object per log line to a result's log file.
// Writes are serialized behind a mutex since several concurrent
// stdout/stderr pumps share one logger.
type JobLogger struct {
	mu       sync.Mutex
	path     string
	jobID    string
	resultID string

	// noop is set for dry-run loggers: operations still call Log, but every
	// record is discarded and nothing is written to disk.
	noop bool
}

// NewJobLogger creates a logger writing to path, creating parent
// directories as needed.
func NewJobLogger(path, jobID, resultID string) (*JobLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	return &JobLogger{path: path, jobID: jobID, resultID: resultID}, nil
}

// NewNoopJobLogger returns a logger that discards writes, used for dry-run
// executions which never persist.
func NewNoopJobLogger() *JobLogger {
	return &JobLogger{noop: true}
}

// Log appends one record. Malformed or unwritable entries are reported to
// the caller; callers on the hot execution path treat logging failures as
// PersistenceErrors and continue rather than abort the run.
func (l *JobLogger) Log(level model.LogLevel, stepName, message string) error {
	if l.noop {
		return nil
	}

	record := model.LogRecord{
		Timestamp: time.Now().UTC(),
		Level:     level,
		StepName:  stepName,
		Message:   message,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling log record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("appending log record: %w", err)
	}
	return nil
}

// GetLogs reads every record in the log file, skipping malformed lines.
func (l *JobLogger) GetLogs() ([]model.LogRecord, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out []model.LogRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec model.LogRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("reading log file: %w", err)
	}
	return out, nil
}

// GetLogs reads every record from the log file at path.
func GetLogs(path string) ([]model.LogRecord, error) {
	l := &JobLogger{path: path}
	return l.GetLogs()
}
