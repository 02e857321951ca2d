// Package procrunner spawns shell-wrapped commands, pumps their stdout and
// stderr into a JobResult's logger, and tracks live child PIDs for the
// Supervisor's recursive kill.
package procrunner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"

	"golang.org/x/sync/errgroup"

	"github.com/nomos-run/nomos/internal/model"
)

// Logger writes one structured log line for a running step.
type Logger interface {
	Log(level model.LogLevel, stepName, message string) error
}

// ResultTracker is the subset of JobResult bookkeeping the runner needs:
// registering/deregistering live child PIDs and persisting the change.
// Run calls these from the goroutine that invoked it (the engine's own),
// never from the stdout/stderr pumps.
type ResultTracker interface {
	AddChildPID(pid int)
	RemoveChildPID(pid int)
	Save() error
}

// Run spawns command via the platform shell ("sh -c" on POSIX, "cmd /C" on
// Windows) with dir as its working directory and env as its *entire*
// environment (the spawned process inherits nothing from this process
// beyond what env supplies). It blocks until the command exits, ctx is
// cancelled, or a pipe error occurs.
//
// ctx cancellation kills only the direct child; the Supervisor is
// responsible for recursively terminating any descendant tree.
func Run(ctx context.Context, command, dir string, env []string, logger Logger, tracker ResultTracker, stepName string) error {
	name, args := shellCommand(command)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = env
	if cmd.Env == nil {
		// A nil Env would make exec inherit this process's environment.
		cmd.Env = []string{}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("opening stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("opening stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting command: %w", err)
	}

	pid := cmd.Process.Pid
	tracker.AddChildPID(pid)
	if err := tracker.Save(); err != nil {
		// Persistence errors during a live run are logged and the run
		// continues; the in-memory state remains the source of truth until
		// the next successful save.
		_ = logger.Log(model.LevelError, stepName, fmt.Sprintf("failed to save result after registering pid %d: %v", pid, err))
	}
	defer func() {
		tracker.RemoveChildPID(pid)
		_ = tracker.Save()
	}()

	var g errgroup.Group
	g.Go(func() error { return pump(stdout, model.LevelInfo, stepName, logger) })
	g.Go(func() error { return pump(stderr, model.LevelError, stepName, logger) })

	waitErr := cmd.Wait()
	_ = g.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if ok := asExitError(waitErr, &exitErr); ok {
			return fmt.Errorf("Process exited with status: %d", exitErr.ExitCode())
		}
		return fmt.Errorf("running command: %w", waitErr)
	}
	return nil
}

// pump reads r line by line, dropping empty lines, and forwards each
// remaining line to logger at level.
func pump(r io.Reader, level model.LogLevel, stepName string, logger Logger) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		_ = logger.Log(level, stepName, line)
	}
	return scanner.Err()
}
