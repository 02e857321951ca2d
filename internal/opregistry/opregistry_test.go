package opregistry

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/nomos-run/nomos/internal/model"
)

type fakeLogger struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeLogger) Log(level model.LogLevel, stepName, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, message)
	return nil
}

func (f *fakeLogger) joined() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.lines, "\n")
}

type fakeTracker struct{}

func (fakeTracker) AddChildPID(int)    {}
func (fakeTracker) RemoveChildPID(int) {}
func (fakeTracker) Save() error        { return nil }

type fakeCredentials struct {
	creds map[string]model.Credential
}

func (f fakeCredentials) GetCredential(id string) (model.Credential, error) {
	c, ok := f.creds[id]
	if !ok {
		return model.Credential{}, fmt.Errorf("credential %s not found", id)
	}
	return c, nil
}

func newTestContext(dir string, dryRun bool) *ExecutionContext {
	return &ExecutionContext{
		Parameters: map[string]model.ParameterValue{},
		Directory:  dir,
		StepName:   "step-1",
		DryRun:     dryRun,
		Logger:     &fakeLogger{},
		Tracker:    fakeTracker{},
	}
}

func TestBuildDispatchesByType(t *testing.T) {
	raw := model.RawOperation{"type": "bash", "code": "echo hi"}
	op, err := Build(raw)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	bash, ok := op.(*Bash)
	if !ok {
		t.Fatalf("expected *Bash, got %T", op)
	}
	if bash.Code != "echo hi" {
		t.Errorf("expected code to decode, got %q", bash.Code)
	}
}

func TestBuildUnknownType(t *testing.T) {
	_, err := Build(model.RawOperation{"type": "nonexistent"})
	if err == nil {
		t.Fatal("expected error for unknown operation type")
	}
}

func TestBashDryRunSkipsExecutionButLogsLines(t *testing.T) {
	ectx := newTestContext(t.TempDir(), true)
	op := &Bash{Code: "echo one\n\necho two"}

	if err := op.Execute(context.Background(), ectx); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	logger := ectx.Logger.(*fakeLogger)
	out := logger.joined()
	if !strings.Contains(out, "echo one") || !strings.Contains(out, "echo two") {
		t.Errorf("expected both lines logged, got: %s", out)
	}
	if !strings.Contains(out, "command:") {
		t.Errorf("dry-run must still log a command: line, got: %s", out)
	}
}

func TestBashSubstitutesParameters(t *testing.T) {
	ectx := newTestContext(t.TempDir(), false)
	ectx.Parameters["NAME"] = model.NewString("world")
	op := &Bash{Code: "echo $(NAME)"}

	if err := op.Execute(context.Background(), ectx); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	logger := ectx.Logger.(*fakeLogger)
	if !strings.Contains(logger.joined(), "command: echo world") {
		t.Errorf("expected substituted command logged, got: %s", logger.joined())
	}
}

func TestBashMissingParameterFails(t *testing.T) {
	ectx := newTestContext(t.TempDir(), false)
	op := &Bash{Code: "echo $(MISSING)"}

	if err := op.Execute(context.Background(), ectx); err == nil {
		t.Fatal("expected error for missing parameter")
	}
}

func TestGitCloneRequiresCredentialOnNonWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("credential is optional on windows")
	}
	ectx := newTestContext(t.TempDir(), false)
	ectx.Credentials = fakeCredentials{creds: map[string]model.Credential{}}
	op := &GitClone{URL: "git@example.com:org/repo.git"}

	err := op.Execute(context.Background(), ectx)
	if err == nil || !strings.Contains(err.Error(), "Credential ID is required") {
		t.Fatalf("expected credential-required error, got: %v", err)
	}
}

func TestClonedDirectoryStripsDotGit(t *testing.T) {
	cases := map[string]string{
		"https://example.com/org/repo.git": "repo",
		"git@example.com:org/repo.git":     "repo",
		"https://example.com/org/repo":     "repo",
	}
	for url, want := range cases {
		if got := clonedDirectory(url); got != want {
			t.Errorf("clonedDirectory(%q) = %q, want %q", url, got, want)
		}
	}
}

func TestDockerBuildDryRunSkipsFileCheck(t *testing.T) {
	ectx := newTestContext(t.TempDir(), true)
	op := &DockerBuild{Image: "myimage"}

	if err := op.Execute(context.Background(), ectx); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	logger := ectx.Logger.(*fakeLogger)
	if !strings.Contains(logger.joined(), "docker build") {
		t.Errorf("expected docker build command logged, got: %s", logger.joined())
	}
}

func TestDockerBuildFailsWhenDockerfileMissing(t *testing.T) {
	ectx := newTestContext(t.TempDir(), false)
	op := &DockerBuild{Image: "myimage"}

	if err := op.Execute(context.Background(), ectx); err == nil {
		t.Fatal("expected error when Dockerfile is missing")
	}
}

func TestDockerRunResolvesEnvFromCredential(t *testing.T) {
	ectx := newTestContext(t.TempDir(), true)
	ectx.Credentials = fakeCredentials{creds: map[string]model.Credential{
		"db": {ID: "db", Value: model.CredentialValue{Type: model.CredEnv, Value: "USER=alice\nPASS=s3cret\n"}},
	}}
	op := &DockerRun{
		Image: "myimage",
		Args: []any{
			"-p",
			"8080:8080",
			map[string]any{"env_from_credential": map[string]any{"credential_id": "db"}},
		},
	}

	if err := op.Execute(context.Background(), ectx); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	logger := ectx.Logger.(*fakeLogger)
	out := logger.joined()
	if !strings.Contains(out, `--env "USER=alice"`) || !strings.Contains(out, `--env "PASS=s3cret"`) {
		t.Errorf("expected env args expanded, got: %s", out)
	}
	if !strings.Contains(out, "-p 8080:8080") {
		t.Errorf("expected direct args preserved, got: %s", out)
	}
}

func TestDockerStopIgnoresErrors(t *testing.T) {
	ectx := newTestContext(t.TempDir(), true)
	op := &DockerStop{Container: "myapp"}

	if err := op.Execute(context.Background(), ectx); err != nil {
		t.Fatalf("Execute should never fail even if underlying commands would: %v", err)
	}
}
