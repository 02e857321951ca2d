// Package config resolves Nomos's state root directory and the handful of
// environment-derived settings the rest of the service depends on.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// StateRootEnv overrides the computed state root, primarily for tests and
// local development.
const StateRootEnv = "NOMOS_HOME"

// Config is the resolved, process-wide configuration.
type Config struct {
	// StateRoot is the directory holding credentials/, scripts/, jobs/,
	// job_results/, logs/, and ids.txt.
	StateRoot string

	// BasicAuthUser/BasicAuthPass gate the HTTP API's /api/* routes, read
	// from NOMOS_USERNAME/NOMOS_PASSWORD. Empty BasicAuthUser disables
	// authentication entirely (local development).
	BasicAuthUser string
	BasicAuthPass string

	// ListenAddr is the HTTP server's bind address.
	ListenAddr string

	// SentryDSN, if set, enables panic/error reporting in cmd/nomosd.
	SentryDSN string
}

// Load resolves Config from the environment: env var override, then
// platform default.
func Load() (Config, error) {
	root, err := stateRoot()
	if err != nil {
		return Config{}, err
	}

	listenAddr := os.Getenv("NOMOS_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	return Config{
		StateRoot:     root,
		BasicAuthUser: os.Getenv("NOMOS_USERNAME"),
		BasicAuthPass: os.Getenv("NOMOS_PASSWORD"),
		ListenAddr:    listenAddr,
		SentryDSN:     os.Getenv("SENTRY_DSN"),
	}, nil
}

// stateRoot resolves the platform-specific state root: NOMOS_HOME always
// wins; otherwise %APPDATA%/nomos on Windows, /var/lib/nomos elsewhere.
func stateRoot() (string, error) {
	if override := os.Getenv(StateRootEnv); override != "" {
		return override, nil
	}

	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA is not set")
		}
		return filepath.Join(appData, "nomos"), nil
	}

	return "/var/lib/nomos", nil
}

// EnsureDirs creates every top-level directory the state root needs.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{"credentials", "scripts", "jobs", "job_results", "logs"} {
		if err := os.MkdirAll(filepath.Join(c.StateRoot, dir), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
