package resultstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/nightlyone/lockfile"
)

// IDAllocator hands out unique, monotonically increasing decimal JobResult
// ids backed by a single counter file.
//
// A process-local mutex serializes concurrent goroutines in this process;
// an OS-level advisory lock (github.com/nightlyone/lockfile) additionally
// guards the counter file against other processes sharing the same state
// root.
type IDAllocator struct {
	mu          sync.Mutex
	counterPath string
	lockPath    string
	resultsRoot string
}

// NewIDAllocator builds an allocator rooted at stateRoot (the directory
// holding ids.txt and job_results/).
func NewIDAllocator(stateRoot string) *IDAllocator {
	return &IDAllocator{
		counterPath: filepath.Join(stateRoot, "ids.txt"),
		lockPath:    filepath.Join(stateRoot, "ids.txt.lock"),
		resultsRoot: filepath.Join(stateRoot, "job_results"),
	}
}

// Next allocates and persists the next id, skipping any candidate that
// already has a results directory on disk (handles a counter file that
// lagged behind an externally-created result directory).
func (a *IDAllocator) Next() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	lock, err := lockfile.New(a.lockPath)
	if err != nil {
		return "", fmt.Errorf("creating id counter lock: %w", err)
	}
	if err := lock.TryLock(); err != nil {
		return "", fmt.Errorf("locking id counter: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	n, err := a.readCounter()
	if err != nil {
		return "", err
	}

	candidate := n + 1
	for {
		if _, statErr := os.Stat(filepath.Join(a.resultsRoot, strconv.FormatInt(candidate, 10))); os.IsNotExist(statErr) {
			break
		}
		candidate++
	}

	if err := a.writeCounter(candidate); err != nil {
		return "", err
	}
	return strconv.FormatInt(candidate, 10), nil
}

func (a *IDAllocator) readCounter() (int64, error) {
	data, err := os.ReadFile(a.counterPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading id counter: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing id counter: %w", err)
	}
	return n, nil
}

func (a *IDAllocator) writeCounter(n int64) error {
	if err := os.MkdirAll(filepath.Dir(a.counterPath), 0o755); err != nil {
		return fmt.Errorf("creating state root: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(a.counterPath), ".ids-*.tmp")
	if err != nil {
		return fmt.Errorf("creating id counter temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(strconv.FormatInt(n, 10)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing id counter: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("syncing id counter: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing id counter temp file: %w", err)
	}
	if err := os.Rename(tmpPath, a.counterPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming id counter into place: %w", err)
	}
	return nil
}
