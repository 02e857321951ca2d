package resultstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/nomos-run/nomos/internal/model"
)

// Store persists JobResults under <results_root>/<id>/result.yml and their
// logs under <logs_root>/<job_id>/<id>.log.
type Store struct {
	resultsRoot string
	logsRoot    string

	mu sync.Mutex
}

// NewStore builds a Store rooted at stateRoot.
func NewStore(stateRoot string) *Store {
	return &Store{
		resultsRoot: filepath.Join(stateRoot, "job_results"),
		logsRoot:    filepath.Join(stateRoot, "logs"),
	}
}

func (s *Store) resultDir(id string) string {
	return filepath.Join(s.resultsRoot, id)
}

// ResultDir returns the directory a result's files (and, by convention, the
// engine's working directory for that run) live under.
func (s *Store) ResultDir(id string) string {
	return s.resultDir(id)
}

func (s *Store) resultPath(id string) string {
	return filepath.Join(s.resultDir(id), "result.yml")
}

// LogPath returns the log file path for a (job_id, result_id) pair.
func (s *Store) LogPath(jobID, resultID string) string {
	return filepath.Join(s.logsRoot, jobID, resultID+".log")
}

// Save serializes result and writes it atomically enough that a crash
// mid-write never leaves a file that later re-parses as valid: it writes
// to a temp file in the result's directory and renames over result.yml.
//
// Dry-run results are never written; Save is a no-op for them.
func (s *Store) Save(result *model.JobResult) error {
	if result.DryRun {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.resultDir(result.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating result directory: %w", err)
	}

	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".result-*.tmp")
	if err != nil {
		return fmt.Errorf("creating result temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing result: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("syncing result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing result temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.resultPath(result.ID)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming result into place: %w", err)
	}
	return nil
}

// Get loads one JobResult by id.
func (s *Store) Get(id string) (*model.JobResult, error) {
	data, err := os.ReadFile(s.resultPath(id))
	if err != nil {
		return nil, fmt.Errorf("reading result %s: %w", id, err)
	}
	var result model.JobResult
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing result %s: %w", id, err)
	}
	return &result, nil
}

// GetAll enumerates every result under results_root, optionally filtered by
// jobID (empty string means no filter), sorted by StartedAt descending.
// A result directory whose result.yml fails to parse (e.g. a torn write
// from a crash) is skipped rather than erroring the whole listing.
func (s *Store) GetAll(jobID string) ([]*model.JobResult, error) {
	entries, err := os.ReadDir(s.resultsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading results root: %w", err)
	}

	var out []*model.JobResult
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		result, err := s.Get(entry.Name())
		if err != nil {
			continue
		}
		if jobID != "" && result.JobID != jobID {
			continue
		}
		out = append(out, result)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}
