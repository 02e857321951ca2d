package opregistry

import (
	"context"
	"fmt"
	"strings"

	"github.com/nomos-run/nomos/internal/model"
	"github.com/nomos-run/nomos/internal/paramsub"
	"github.com/nomos-run/nomos/internal/procrunner"
)

// DockerRun composes and runs "docker run -d". Args is a
// tagged-variant list: each element is either a plain templated string or a
// {env_from_credential: {credential_id}} map that expands an Env
// credential's KEY=VALUE lines into --env flags.
type DockerRun struct {
	Image     string `yaml:"image"`
	Container string `yaml:"container,omitempty"`
	Args      []any  `yaml:"args,omitempty"`
}

func (d *DockerRun) Execute(ctx context.Context, ectx *ExecutionContext) error {
	image, err := paramsub.SubstituteSingle("image", d.Image, ectx.Parameters)
	if err != nil {
		return err
	}
	container, err := paramsub.SubstituteSingle("container", d.Container, ectx.Parameters)
	if err != nil {
		return err
	}

	var parts []string
	parts = append(parts, "docker", "run", "-d")
	if container != "" {
		parts = append(parts, "--name", container)
	}

	args, err := resolveDockerRunArgs(ectx, d.Args)
	if err != nil {
		return err
	}
	parts = append(parts, args...)
	parts = append(parts, image)

	command := strings.Join(parts, " ")
	ectx.Log(model.LevelInfo, fmt.Sprintf("command: %s", command))

	if ectx.DryRun {
		return nil
	}
	return procrunner.Run(ctx, command, ectx.Directory, nil, ectx.Logger, ectx.Tracker, ectx.StepName)
}

func resolveDockerRunArgs(ectx *ExecutionContext, raw []any) ([]string, error) {
	var out []string
	for _, elem := range raw {
		switch v := elem.(type) {
		case string:
			res, err := paramsub.Substitute(v, ectx.Parameters, false)
			if err != nil {
				return nil, err
			}
			switch res.Kind {
			case paramsub.KindMultiple:
				out = append(out, res.Multiple...)
			default:
				out = append(out, res.Single)
			}

		case map[string]any:
			credentialID, ok := envFromCredentialID(v)
			if !ok {
				return nil, fmt.Errorf("docker-run: unrecognized arg %v", v)
			}
			cred, err := ectx.Credentials.GetCredential(credentialID)
			if err != nil {
				return nil, fmt.Errorf("resolving credential %s: %w", credentialID, err)
			}
			pairs, err := cred.Value.EnvPairs()
			if err != nil {
				return nil, err
			}
			for _, pair := range pairs {
				out = append(out, "--env", fmt.Sprintf("%q", pair[0]+"="+pair[1]))
			}

		default:
			return nil, fmt.Errorf("docker-run: unrecognized arg %v", elem)
		}
	}
	return out, nil
}

func envFromCredentialID(v map[string]any) (string, bool) {
	inner, ok := v["env_from_credential"].(map[string]any)
	if !ok {
		return "", false
	}
	id, ok := inner["credential_id"].(string)
	return id, ok
}
