// Package engine implements the Job Execution Engine: it
// resolves a Job's Script, validates and merges parameters, allocates a
// JobResult, and drives the per-step state machine through the Operation
// Registry.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/nomos-run/nomos/internal/model"
	"github.com/nomos-run/nomos/internal/opregistry"
	"github.com/nomos-run/nomos/internal/procrunner"
	"github.com/nomos-run/nomos/internal/resultstore"
)

// dryRunDirectory is the synthetic working directory dry-run executions
// operate against.
const dryRunDirectory = "tmp"

// ScriptLoader resolves a Script by id, bridging to internal/defs.
type ScriptLoader interface {
	GetScript(id string) (model.Script, error)
}

// Engine ties together script resolution, the JobResult store, and the
// Operation Registry to run one Job to completion.
type Engine struct {
	Scripts     ScriptLoader
	Results     *resultstore.Store
	IDs         *resultstore.IDAllocator
	Credentials opregistry.CredentialResolver
	Syncer      opregistry.Syncer
}

// PreparedRun is the synchronous half of a Job submission: script
// resolution, parameter validation and merge, and JobResult allocation —
// everything the Supervisor must finish before returning a result id to
// the caller.
type PreparedRun struct {
	Result    *model.JobResult
	Params    map[string]model.ParameterValue
	Directory string
	Logger    *resultstore.JobLogger
}

// Prepare resolves job's script, validates and merges parameters, and
// allocates (and, for a live run, persists) a JobResult. scriptOverride,
// if non-nil, is used instead of loading job.ScriptID — the dry-run
// validation path uses this to preview an unsaved Script.
func (e *Engine) Prepare(job model.Job, scriptOverride *model.Script, params map[string]model.ParameterValue, dryRun bool) (*PreparedRun, error) {
	script, err := e.resolveScript(job, scriptOverride)
	if err != nil {
		return nil, fmt.Errorf("resolving script: %w", err)
	}

	if err := validateParameters(script, job); err != nil {
		return nil, err
	}

	merged := mergeParameters(script, job, params)

	result, logger, directory, err := e.allocate(job, script, dryRun)
	if err != nil {
		return nil, fmt.Errorf("allocating job result: %w", err)
	}

	return &PreparedRun{Result: result, Params: merged, Directory: directory, Logger: logger}, nil
}

// Execute drives a prepared run's step state machine to completion. On a
// live run, an operation failure is recorded on run.Result (status Failed)
// but is not itself returned — callers inspect run.Result.Status. On a dry
// run, the same failure is both recorded and returned. A live run whose ctx
// is cancelled is not marked Failed; it is left unfinished for the
// Supervisor to finalise as Aborted.
func (e *Engine) Execute(ctx context.Context, run *PreparedRun) error {
	execErr := e.execute(ctx, run.Result, run.Params, run.Directory, run.Logger)
	if run.Result.DryRun && execErr != nil {
		return execErr
	}
	return nil
}

// Run executes job end to end, synchronously. It is Prepare followed
// immediately by Execute; the Supervisor instead calls them separately so
// it can return a result id to its caller before the run completes.
func (e *Engine) Run(ctx context.Context, job model.Job, scriptOverride *model.Script, params map[string]model.ParameterValue, dryRun bool) (*model.JobResult, error) {
	run, err := e.Prepare(job, scriptOverride, params, dryRun)
	if err != nil {
		return nil, err
	}
	if err := e.Execute(ctx, run); err != nil {
		return run.Result, err
	}
	return run.Result, nil
}

func (e *Engine) resolveScript(job model.Job, override *model.Script) (model.Script, error) {
	if override != nil {
		return *override, nil
	}
	if e.Scripts == nil {
		return model.Script{}, fmt.Errorf("script %s not found", job.ScriptID)
	}
	return e.Scripts.GetScript(job.ScriptID)
}

// validateParameters requires, for every ScriptParameter, that the Job
// defines it, or the script parameter carries a default, or it isn't
// required.
func validateParameters(script model.Script, job model.Job) error {
	var missing []string
	for _, p := range script.Parameters {
		_, jobDefines := job.ParameterByName(p.Name)
		if jobDefines || p.Default != nil || !p.Required {
			continue
		}
		missing = append(missing, p.Name)
	}
	if len(missing) > 0 {
		return fmt.Errorf("Missing required parameters: %s", strings.Join(missing, ", "))
	}
	return nil
}

// mergeParameters resolves each script parameter's effective value into a
// fresh map keyed "parameters.<name>". Caller-supplied values always win.
// Otherwise, if the Job declares the parameter, its value is the Job
// parameter's own default (or nothing, if the Job declares the parameter
// without one) — the script's default is only consulted when the Job has
// no entry for the parameter at all.
func mergeParameters(script model.Script, job model.Job, caller map[string]model.ParameterValue) map[string]model.ParameterValue {
	merged := make(map[string]model.ParameterValue, len(script.Parameters))
	for _, p := range script.Parameters {
		if v, ok := caller[p.Name]; ok {
			merged["parameters."+p.Name] = v
			continue
		}
		jobParam, jobDefines := job.ParameterByName(p.Name)
		if jobDefines {
			if jobParam.Default != nil {
				merged["parameters."+p.Name] = *jobParam.Default
			}
			continue
		}
		if p.Default != nil {
			merged["parameters."+p.Name] = *p.Default
		}
	}
	return merged
}

// allocate builds the JobResult, its working directory, and its logger. A
// dry-run result is never saved and is given the conventional id
// "dry_run".
func (e *Engine) allocate(job model.Job, script model.Script, dryRun bool) (*model.JobResult, *resultstore.JobLogger, string, error) {
	steps := make([]model.RunningScriptStep, len(script.Steps))
	for i, s := range script.Steps {
		steps[i] = model.RunningScriptStep{Name: s.Name, Values: s.Values, Status: model.StepPending}
	}

	now := time.Now().UTC()
	result := &model.JobResult{
		JobID:           job.ID,
		Status:          model.ResultRunning,
		Steps:           steps,
		CurrentStepName: firstStepName(steps),
		StartedAt:       now,
		UpdatedAt:       now,
	}

	if dryRun {
		result.ID = model.DryRunID
		result.DryRun = true
		return result, resultstore.NewNoopJobLogger(), dryRunDirectory, nil
	}

	id, err := e.IDs.Next()
	if err != nil {
		return nil, nil, "", err
	}
	result.ID = id

	directory := e.Results.ResultDir(id)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, nil, "", fmt.Errorf("creating result directory: %w", err)
	}

	logPath := e.Results.LogPath(job.ID, id)
	logger, err := resultstore.NewJobLogger(logPath, job.ID, id)
	if err != nil {
		return nil, nil, "", err
	}
	result.LogFilePath = logPath

	if err := e.Results.Save(result); err != nil {
		return nil, nil, "", err
	}

	return result, logger, directory, nil
}

func firstStepName(steps []model.RunningScriptStep) *string {
	if len(steps) == 0 {
		return nil
	}
	name := steps[0].Name
	return &name
}

// execute drives the step state machine until result.FinishedAt is set, or
// until ctx is cancelled during a live run, which leaves the current step
// and the result unfinished.
func (e *Engine) execute(ctx context.Context, result *model.JobResult, params map[string]model.ParameterValue, directory string, logger *resultstore.JobLogger) error {
	tracker := &resultTracker{result: result, store: e.Results}

	for result.FinishedAt == nil {
		current := result.CurrentStep()
		if current == nil {
			return fmt.Errorf("No current step found")
		}

		current.Start()
		e.persist(result)

		stepErr := e.runStep(ctx, result, current, params, directory, logger, tracker)
		if stepErr != nil && ctx.Err() != nil && !result.DryRun {
			// Cancelled: the step and the result stay open so the
			// Supervisor can finalise them as Aborted.
			return stepErr
		}
		if stepErr != nil {
			wrapped := fmt.Errorf("Error in step %s: %w", current.Name, stepErr)
			_ = logger.Log(model.LevelError, current.Name, wrapped.Error())
			current.Finish(model.StepFailed)
			result.Status = model.ResultFailed
			now := time.Now().UTC()
			result.FinishedAt = &now
			result.Touch()
			e.persist(result)
			return wrapped
		}

		current.Finish(model.StepSuccess)
		advance(result)
		e.persist(result)
	}
	return nil
}

// runStep executes every operation in current.Values in declaration order
// against a shared ExecutionContext, checking for cancellation between
// operations.
func (e *Engine) runStep(ctx context.Context, result *model.JobResult, current *model.RunningScriptStep, params map[string]model.ParameterValue, directory string, logger *resultstore.JobLogger, tracker procrunner.ResultTracker) error {
	ectx := &opregistry.ExecutionContext{
		Parameters:  params,
		Directory:   directory,
		StepName:    current.Name,
		Result:      result,
		DryRun:      result.DryRun,
		Logger:      logger,
		Tracker:     tracker,
		Credentials: e.Credentials,
		Sync:        e.Syncer,
	}

	for _, raw := range current.Values {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		op, err := opregistry.Build(raw)
		if err != nil {
			return err
		}
		if err := op.Execute(ctx, ectx); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// advance moves current_step_name to the next step by position, or marks
// the result Success if the finished step was the last one. It runs after
// the finished step's Finish call and before the persist that follows, so
// the saved result already carries the advanced pointer. After the last
// step, current_step_name keeps naming that step.
func advance(result *model.JobResult) {
	idx := result.StepIndex(*result.CurrentStepName)
	if idx+1 < len(result.Steps) {
		name := result.Steps[idx+1].Name
		result.CurrentStepName = &name
		result.Touch()
		return
	}
	now := time.Now().UTC()
	result.FinishedAt = &now
	result.Status = model.ResultSuccess
	result.Touch()
}

// persist saves result, logging (not propagating) any failure — a
// PersistenceError never aborts a live run.
func (e *Engine) persist(result *model.JobResult) {
	if err := e.Results.Save(result); err != nil {
		slog.Default().Error("failed to save job result", "job_result_id", result.ID, "error", err)
	}
}

// resultTracker adapts a JobResult and its Store into procrunner's
// ResultTracker interface.
type resultTracker struct {
	result *model.JobResult
	store  *resultstore.Store
}

func (t *resultTracker) AddChildPID(pid int)    { t.result.AddChildPID(pid) }
func (t *resultTracker) RemoveChildPID(pid int) { t.result.RemoveChildPID(pid) }
func (t *resultTracker) Save() error            { return t.store.Save(t.result) }
