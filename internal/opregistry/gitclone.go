package opregistry

import (
	"context"
	"fmt"
	"strings"

	"github.com/nomos-run/nomos/internal/model"
	"github.com/nomos-run/nomos/internal/paramsub"
	"github.com/nomos-run/nomos/internal/procrunner"
)

// GitClone clones a repository, optionally authenticating via an Ssh
// credential.
type GitClone struct {
	URL          string `yaml:"url"`
	CredentialID string `yaml:"credential_id,omitempty"`
	Branch       string `yaml:"branch,omitempty"`
}

func (g *GitClone) Execute(ctx context.Context, ectx *ExecutionContext) error {
	url, err := paramsub.SubstituteSingle("url", g.URL, ectx.Parameters)
	if err != nil {
		return err
	}
	credentialID, err := paramsub.SubstituteSingle("credential_id", g.CredentialID, ectx.Parameters)
	if err != nil {
		return err
	}
	branch, err := paramsub.SubstituteSingle("branch", orDefault(g.Branch, "main"), ectx.Parameters)
	if err != nil {
		return err
	}

	env, cleanup, err := sshEnv(ectx, credentialID)
	if err != nil {
		return err
	}
	defer cleanup()

	command := fmt.Sprintf("git clone -b %s %s", branch, url)
	ectx.Log(model.LevelInfo, fmt.Sprintf("command: %s", command))

	if !ectx.DryRun {
		if err := procrunner.Run(ctx, command, ectx.Directory, env, ectx.Logger, ectx.Tracker, ectx.StepName); err != nil {
			return err
		}
	}

	ectx.Parameters[fmt.Sprintf("steps.%s.git-clone.directory", ectx.StepName)] = model.NewString(clonedDirectory(url))
	return nil
}

// clonedDirectory derives git clone's resulting directory name: the last
// URL path segment with a trailing ".git" stripped.
func clonedDirectory(url string) string {
	trimmed := strings.TrimSuffix(url, "/")
	idx := strings.LastIndexAny(trimmed, "/:")
	last := trimmed
	if idx >= 0 {
		last = trimmed[idx+1:]
	}
	return strings.TrimSuffix(last, ".git")
}

// orDefault returns value if non-empty, else fallback. Used for fields with
// a default that must still pass through parameter substitution.
func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
