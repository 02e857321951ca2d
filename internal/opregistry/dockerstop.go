package opregistry

import (
	"context"
	"fmt"

	"github.com/nomos-run/nomos/internal/model"
	"github.com/nomos-run/nomos/internal/paramsub"
	"github.com/nomos-run/nomos/internal/procrunner"
)

// DockerStop stops and removes a container, ignoring failures of either
// command.
type DockerStop struct {
	Container string `yaml:"container"`
}

func (d *DockerStop) Execute(ctx context.Context, ectx *ExecutionContext) error {
	container, err := paramsub.SubstituteSingle("container", d.Container, ectx.Parameters)
	if err != nil {
		return err
	}

	for _, command := range []string{
		fmt.Sprintf("docker stop %s", container),
		fmt.Sprintf("docker rm %s", container),
	} {
		ectx.Log(model.LevelInfo, fmt.Sprintf("command: %s", command))
		if ectx.DryRun {
			continue
		}
		if runErr := procrunner.Run(ctx, command, ectx.Directory, nil, ectx.Logger, ectx.Tracker, ectx.StepName); runErr != nil {
			ectx.Log(model.LevelInfo, fmt.Sprintf("ignoring error from %q: %v", command, runErr))
		}
	}
	return nil
}
