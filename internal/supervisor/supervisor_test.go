package supervisor

import (
	"os"
	"testing"
	"time"

	"github.com/nomos-run/nomos/internal/engine"
	"github.com/nomos-run/nomos/internal/model"
	"github.com/nomos-run/nomos/internal/resultstore"
)

type fakeScriptLoader struct {
	scripts map[string]model.Script
}

func (f fakeScriptLoader) GetScript(id string) (model.Script, error) {
	s, ok := f.scripts[id]
	if !ok {
		return model.Script{}, os.ErrNotExist
	}
	return s, nil
}

func bashStep(name, code string) model.ScriptStep {
	return model.ScriptStep{
		Name:   name,
		Values: []model.RawOperation{{"type": "bash", "code": code}},
	}
}

func newTestSupervisor(t *testing.T, scripts map[string]model.Script) *Supervisor {
	t.Helper()
	root := t.TempDir()
	results := resultstore.NewStore(root)
	eng := &engine.Engine{
		Scripts: fakeScriptLoader{scripts: scripts},
		Results: results,
		IDs:     resultstore.NewIDAllocator(root),
	}
	return New(eng, results)
}

func waitForTerminal(t *testing.T, sv *Supervisor, resultID string, timeout time.Duration) *model.JobResult {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		result, err := sv.Results.Get(resultID)
		if err == nil && result.FinishedAt != nil {
			return result
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("result %s did not reach a terminal state within %s", resultID, timeout)
	return nil
}

func TestSubmitRunsJobToCompletion(t *testing.T) {
	sv := newTestSupervisor(t, map[string]model.Script{
		"echo": {ID: "echo", Steps: []model.ScriptStep{bashStep("only", "echo hello")}},
	})
	job := model.Job{ID: "job-1", ScriptID: "echo"}

	resultID, err := sv.Submit(job, nil, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	result := waitForTerminal(t, sv, resultID, 3*time.Second)
	if result.Status != model.ResultSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
}

func TestSubmitThenStopAbortsLongRunningJob(t *testing.T) {
	sv := newTestSupervisor(t, map[string]model.Script{
		"sleeper": {ID: "sleeper", Steps: []model.ScriptStep{bashStep("only", "sleep 30")}},
	})
	job := model.Job{ID: "job-1", ScriptID: "sleeper"}

	resultID, err := sv.Submit(job, nil, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Give the process runner a moment to actually spawn sleep before
	// stopping it.
	time.Sleep(200 * time.Millisecond)

	if err := sv.Stop(resultID); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	result := waitForTerminal(t, sv, resultID, 3*time.Second)
	if result.Status != model.ResultAborted {
		t.Fatalf("expected Aborted, got %s", result.Status)
	}
	if len(result.ChildProcessIDs) != 0 {
		t.Errorf("expected child_process_ids cleared, got %v", result.ChildProcessIDs)
	}
}

func TestStopUnknownResultFails(t *testing.T) {
	sv := newTestSupervisor(t, nil)
	if err := sv.Stop("does-not-exist"); err == nil {
		t.Fatal("expected error stopping an unknown result")
	}
}

func TestStopIsNotIdempotent(t *testing.T) {
	sv := newTestSupervisor(t, map[string]model.Script{
		"sleeper": {ID: "sleeper", Steps: []model.ScriptStep{bashStep("only", "sleep 30")}},
	})
	job := model.Job{ID: "job-1", ScriptID: "sleeper"}
	resultID, err := sv.Submit(job, nil, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := sv.Stop(resultID); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := sv.Stop(resultID); err == nil {
		t.Fatal("expected second Stop on the same id to fail")
	}
}
