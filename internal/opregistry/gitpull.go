package opregistry

import (
	"context"
	"fmt"

	"github.com/nomos-run/nomos/internal/model"
	"github.com/nomos-run/nomos/internal/paramsub"
	"github.com/nomos-run/nomos/internal/procrunner"
)

// GitPull pulls an existing clone, optionally via git-lfs, sharing
// git-clone's credential/environment mechanism.
type GitPull struct {
	Directory    string `yaml:"directory"`
	LFS          bool   `yaml:"lfs,omitempty"`
	CredentialID string `yaml:"credential_id,omitempty"`
}

func (g *GitPull) Execute(ctx context.Context, ectx *ExecutionContext) error {
	directory, err := paramsub.SubstituteSingle("directory", g.Directory, ectx.Parameters)
	if err != nil {
		return err
	}
	credentialID, err := paramsub.SubstituteSingle("credential_id", g.CredentialID, ectx.Parameters)
	if err != nil {
		return err
	}

	env, cleanup, err := sshEnv(ectx, credentialID)
	if err != nil {
		return err
	}
	defer cleanup()

	pullCmd := "git pull"
	if g.LFS {
		pullCmd = "git lfs pull"
	}
	command := fmt.Sprintf("cd %s && (%s)", directory, pullCmd)
	ectx.Log(model.LevelInfo, fmt.Sprintf("command: %s", command))

	if ectx.DryRun {
		return nil
	}
	return procrunner.Run(ctx, command, ectx.Directory, env, ectx.Logger, ectx.Tracker, ectx.StepName)
}
