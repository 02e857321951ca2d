// Package opregistry implements the tagged-variant Operations a Script step
// can run: bash, git-clone, git-pull, docker-build, docker-stop, docker-run,
// and sync. Each decodes its variant-specific fields from a
// model.RawOperation and executes against an ExecutionContext.
package opregistry

import (
	"context"
	"fmt"

	"github.com/goccy/go-yaml"

	"github.com/nomos-run/nomos/internal/model"
	"github.com/nomos-run/nomos/internal/procrunner"
)

// Operation is one polymorphic step action: "execute(context) -> Result".
type Operation interface {
	Execute(ctx context.Context, ectx *ExecutionContext) error
}

// CredentialResolver looks up a Credential by id, bridging to internal/defs
// without opregistry depending on it directly.
type CredentialResolver interface {
	GetCredential(id string) (model.Credential, error)
}

// Syncer performs the sync operation's directory scan, bridging to
// internal/defs.
type Syncer interface {
	Sync(ctx context.Context, ectx *ExecutionContext, directory string) error
}

// ExecutionContext is the mutable state threaded through one step's
// operations: parameters, working directory, step name, and the owning
// JobResult. Cancellation arrives through the ctx passed to Execute.
type ExecutionContext struct {
	Parameters  map[string]model.ParameterValue
	Directory   string
	StepName    string
	Result      *model.JobResult
	DryRun      bool
	Logger      procrunner.Logger
	Tracker     procrunner.ResultTracker
	Credentials CredentialResolver
	Sync        Syncer
}

// Log writes a line at level, swallowing the write error (logging failures are
// PersistenceErrors and never abort a step).
func (e *ExecutionContext) Log(level model.LogLevel, message string) {
	if e.Logger == nil {
		return
	}
	_ = e.Logger.Log(level, e.StepName, message)
}

// kinds maps an Operation's YAML type discriminator to a constructor.
var kinds = map[string]func() Operation{
	"bash":         func() Operation { return &Bash{} },
	"git-clone":    func() Operation { return &GitClone{} },
	"git-pull":     func() Operation { return &GitPull{} },
	"docker-build": func() Operation { return &DockerBuild{} },
	"docker-stop":  func() Operation { return &DockerStop{} },
	"docker-run":   func() Operation { return &DockerRun{} },
	"sync":         func() Operation { return &Sync{} },
}

// Build decodes raw into its concrete Operation, dispatching on raw's "type"
// discriminator.
func Build(raw model.RawOperation) (Operation, error) {
	kind := raw.Kind()
	ctor, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown operation type %q", kind)
	}
	op := ctor()
	if err := decode(raw, op); err != nil {
		return nil, fmt.Errorf("decoding %s operation: %w", kind, err)
	}
	return op, nil
}

// decode round-trips raw through YAML into out, since goccy/go-yaml has no
// generic map-to-struct conversion helper; marshaling the already-decoded
// map and re-unmarshaling into the concrete, tag-specific struct is the
// simplest correct bridge between the two representations.
func decode(raw model.RawOperation, out any) error {
	data, err := yaml.Marshal(map[string]any(raw))
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}
