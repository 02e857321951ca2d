package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadHonorsStateRootEnv(t *testing.T) {
	t.Setenv(StateRootEnv, "/tmp/nomos-test-root")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StateRoot != "/tmp/nomos-test-root" {
		t.Errorf("expected NOMOS_HOME override honored, got %q", cfg.StateRoot)
	}
}

func TestLoadDefaultsListenAddr(t *testing.T) {
	t.Setenv(StateRootEnv, "/tmp/nomos-test-root")
	t.Setenv("NOMOS_LISTEN_ADDR", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("expected default listen addr, got %q", cfg.ListenAddr)
	}
}

func TestEnsureDirsCreatesLayout(t *testing.T) {
	root := t.TempDir()
	cfg := Config{StateRoot: root}
	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, dir := range []string{"credentials", "scripts", "jobs", "job_results", "logs"} {
		info, err := os.Stat(filepath.Join(root, dir))
		if err != nil {
			t.Errorf("stat %s: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("expected %s to be a directory", dir)
		}
	}
}
