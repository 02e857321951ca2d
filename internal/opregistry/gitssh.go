package opregistry

import (
	"fmt"
	"os"
	"runtime"

	"github.com/nomos-run/nomos/internal/model"
)

// sshEnv resolves credentialID, if any, to an Ssh credential, writes its
// private key to a freshly-created 0400 temp file, and returns an
// environment slice with GIT_SSH_COMMAND pointed at it.
// The returned cleanup func removes the temp file; callers must defer it.
//
// When credentialID is empty, non-Windows platforms fail outright (a
// credential is mandatory there); Windows clones without credentials as a
// documented local-dev workaround.
func sshEnv(ctx *ExecutionContext, credentialID string) (env []string, cleanup func(), err error) {
	cleanup = func() {}

	if credentialID == "" {
		if runtime.GOOS == "windows" {
			return os.Environ(), cleanup, nil
		}
		return nil, cleanup, fmt.Errorf("Credential ID is required")
	}

	cred, err := ctx.Credentials.GetCredential(credentialID)
	if err != nil {
		return nil, cleanup, fmt.Errorf("resolving credential %s: %w", credentialID, err)
	}
	if cred.Value.Type != model.CredSsh {
		return os.Environ(), cleanup, nil
	}

	tmp, err := os.CreateTemp("", "nomos-ssh-key-*")
	if err != nil {
		return nil, cleanup, fmt.Errorf("creating ssh key temp file: %w", err)
	}
	path := tmp.Name()
	cleanup = func() { _ = os.Remove(path) }

	if _, err := tmp.WriteString(cred.Value.PrivateKey); err != nil {
		_ = tmp.Close()
		return nil, cleanup, fmt.Errorf("writing ssh key: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, cleanup, fmt.Errorf("closing ssh key temp file: %w", err)
	}
	if err := os.Chmod(path, 0o400); err != nil {
		return nil, cleanup, fmt.Errorf("chmod ssh key: %w", err)
	}

	sshCmd := fmt.Sprintf("ssh -i %s -o StrictHostKeyChecking=no", path)
	return append(os.Environ(), "GIT_SSH_COMMAND="+sshCmd), cleanup, nil
}
