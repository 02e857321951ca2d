package opregistry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nomos-run/nomos/internal/model"
	"github.com/nomos-run/nomos/internal/paramsub"
	"github.com/nomos-run/nomos/internal/procrunner"
)

// DockerBuild runs "docker build".
type DockerBuild struct {
	Image      string `yaml:"image"`
	Dockerfile string `yaml:"dockerfile,omitempty"`
}

func (d *DockerBuild) Execute(ctx context.Context, ectx *ExecutionContext) error {
	image, err := paramsub.SubstituteSingle("image", d.Image, ectx.Parameters)
	if err != nil {
		return err
	}
	dockerfile, err := paramsub.SubstituteSingle("dockerfile", orDefault(d.Dockerfile, "Dockerfile"), ectx.Parameters)
	if err != nil {
		return err
	}

	path := dockerfile
	if !filepath.IsAbs(path) {
		path = filepath.Join(ectx.Directory, path)
	}

	if !ectx.DryRun {
		if _, statErr := os.Stat(path); statErr != nil {
			return fmt.Errorf("dockerfile not found at %s: %w", path, statErr)
		}
	}

	command := fmt.Sprintf("docker build %s -t %s -f %s", filepath.Dir(path), image, path)
	ectx.Log(model.LevelInfo, fmt.Sprintf("command: %s", command))

	if ectx.DryRun {
		return nil
	}
	return procrunner.Run(ctx, command, ectx.Directory, nil, ectx.Logger, ectx.Tracker, ectx.StepName)
}
