// Package supervisor implements the Executor Supervisor: it
// owns the result-id-to-cancel-handle map, spawns the Execution Engine as a
// background task per submission, and finalises a JobResult to Aborted when
// that task is cancelled.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nomos-run/nomos/internal/engine"
	"github.com/nomos-run/nomos/internal/model"
	"github.com/nomos-run/nomos/internal/procrunner"
	"github.com/nomos-run/nomos/internal/resultstore"
)

// cancelHandle tracks one in-flight run's cancellation plumbing.
type cancelHandle struct {
	cancel  context.CancelFunc
	aborted bool
}

// Supervisor runs Jobs through the Engine as background tasks and owns
// their lifecycle: submission, cancellation, and abort finalisation.
type Supervisor struct {
	Engine  *engine.Engine
	Results *resultstore.Store

	// wg lets cmd/nomosd drain in-flight runs during graceful shutdown; it
	// plays no part in the cancellation path itself.
	wg sync.WaitGroup

	mu      sync.Mutex
	handles map[string]*cancelHandle
}

// New builds a Supervisor delegating execution to eng and persistence to
// results.
func New(eng *engine.Engine, results *resultstore.Store) *Supervisor {
	return &Supervisor{
		Engine:  eng,
		Results: results,
		handles: make(map[string]*cancelHandle),
	}
}

// Submit validates and merges parameters, allocates a JobResult, and
// spawns a background task running the Engine against it. It returns the
// result id as soon as preparation succeeds; the run itself continues
// asynchronously.
func (s *Supervisor) Submit(job model.Job, scriptOverride *model.Script, params map[string]model.ParameterValue) (string, error) {
	run, err := s.Engine.Prepare(job, scriptOverride, params, false)
	if err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	handle := &cancelHandle{cancel: cancel}

	s.mu.Lock()
	s.handles[run.Result.ID] = handle
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(run.Result.ID)

		_ = s.Engine.Execute(runCtx, run)

		s.mu.Lock()
		aborted := handle.aborted
		s.mu.Unlock()

		if aborted {
			s.finalizeAborted(run.Result.ID)
		}
	}()

	return run.Result.ID, nil
}

// release removes a completed run's cancel handle.
func (s *Supervisor) release(resultID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, resultID)
}

// Stop triggers cancellation of an in-flight run. Not idempotent: a second
// Stop on the same id returns the not-found error, since the first Stop
// already removed the handle.
func (s *Supervisor) Stop(resultID string) error {
	s.mu.Lock()
	handle, ok := s.handles[resultID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("Job %s not found", resultID)
	}
	handle.aborted = true
	delete(s.handles, resultID)
	s.mu.Unlock()

	handle.cancel()
	return nil
}

// finalizeAborted reloads the persisted result, kills its recorded child
// process tree leaves-first, and marks it Aborted.
func (s *Supervisor) finalizeAborted(resultID string) {
	result, err := s.Results.Get(resultID)
	if err != nil {
		slog.Default().Error("failed to reload result for abort finalisation", "job_result_id", resultID, "error", err)
		return
	}

	pids := append([]int(nil), result.ChildProcessIDs...)
	ctx := context.Background()

	var logger procrunner.Logger
	if result.LogFilePath != "" {
		if l, err := resultstore.NewJobLogger(result.LogFilePath, result.JobID, result.ID); err == nil {
			logger = l
		}
	}

	for _, pid := range pids {
		if err := procrunner.KillTree(ctx, pid, logger, currentStepName(result)); err != nil {
			slog.Default().Error("failed to kill process tree during abort", "pid", pid, "error", err)
		}
	}

	if current := result.CurrentStep(); current != nil {
		current.Finish(model.StepAborted)
	}
	result.ChildProcessIDs = nil
	result.Status = model.ResultAborted
	now := time.Now().UTC()
	result.FinishedAt = &now
	result.Touch()

	if err := s.Results.Save(result); err != nil {
		slog.Default().Error("failed to save aborted result", "job_result_id", resultID, "error", err)
	}
}

func currentStepName(result *model.JobResult) string {
	if result.CurrentStepName == nil {
		return ""
	}
	return *result.CurrentStepName
}

// Wait blocks until every in-flight run this Supervisor spawned has
// returned, for use during graceful shutdown.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
