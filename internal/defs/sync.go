package defs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/nomos-run/nomos/internal/model"
	"github.com/nomos-run/nomos/internal/opregistry"
)

// settingsFile is the shape of <dir>/settings.yml: the credentials a sync
// should upsert.
type settingsFile struct {
	Credentials []model.Credential `yaml:"credentials"`
}

// Sync implements opregistry.Syncer: scans directory for a settings.yml and
// scripts/jobs subdirectories, upserts what it finds (a stored read-only
// credential is skipped, not overwritten), and deletes stored entries that
// are no longer present and not read-only.
func (s *Store) Sync(ctx context.Context, ectx *opregistry.ExecutionContext, directory string) error {
	if err := s.syncCredentials(ectx, directory); err != nil {
		return err
	}
	if err := s.syncScripts(ectx, directory); err != nil {
		return err
	}
	return s.syncJobs(ectx, directory)
}

func (s *Store) syncCredentials(ectx *opregistry.ExecutionContext, directory string) error {
	path := filepath.Join(directory, "settings.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ectx.Log(model.LevelInfo, "no settings.yml found, skipping credential sync")
			return nil
		}
		return fmt.Errorf("reading settings.yml: %w", err)
	}

	var settings settingsFile
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("parsing settings.yml: %w", err)
	}

	seen := make(map[string]bool, len(settings.Credentials))
	for _, cred := range settings.Credentials {
		verb := "created"
		if stored, err := s.GetCredential(cred.ID); err == nil {
			if stored.ReadOnly {
				ectx.Log(model.LevelInfo, fmt.Sprintf("skipped read-only credential %s", cred.ID))
				seen[cred.ID] = true
				continue
			}
			verb = "updated"
		}
		if err := s.SaveCredential(cred); err != nil {
			ectx.Log(model.LevelError, fmt.Sprintf("error syncing credential %s: %v", cred.ID, err))
			continue
		}
		ectx.Log(model.LevelInfo, fmt.Sprintf("%s credential %s", verb, cred.ID))
		seen[cred.ID] = true
	}

	existing, err := s.ListCredentials()
	if err != nil {
		return fmt.Errorf("listing credentials: %w", err)
	}
	for _, cred := range existing {
		if seen[cred.ID] || cred.ReadOnly {
			continue
		}
		if err := s.DeleteCredential(cred.ID); err != nil {
			ectx.Log(model.LevelError, fmt.Sprintf("error deleting credential %s: %v", cred.ID, err))
			continue
		}
		ectx.Log(model.LevelInfo, fmt.Sprintf("deleted credential %s", cred.ID))
	}
	return nil
}

func (s *Store) syncScripts(ectx *opregistry.ExecutionContext, directory string) error {
	scripts, err := readYamlDir[model.Script](filepath.Join(directory, "scripts"))
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(scripts))
	for _, script := range scripts {
		verb := "created"
		if _, err := s.GetScript(script.ID); err == nil {
			verb = "updated"
		}
		if err := s.SaveScript(script); err != nil {
			ectx.Log(model.LevelError, fmt.Sprintf("error syncing script %s: %v", script.ID, err))
			continue
		}
		ectx.Log(model.LevelInfo, fmt.Sprintf("%s script %s", verb, script.ID))
		seen[script.ID] = true
	}

	existing, err := s.ListScripts()
	if err != nil {
		return fmt.Errorf("listing scripts: %w", err)
	}
	for _, script := range existing {
		if seen[script.ID] {
			continue
		}
		if err := s.DeleteScript(script.ID); err != nil {
			ectx.Log(model.LevelError, fmt.Sprintf("error deleting script %s: %v", script.ID, err))
			continue
		}
		ectx.Log(model.LevelInfo, fmt.Sprintf("deleted script %s", script.ID))
	}
	return nil
}

func (s *Store) syncJobs(ectx *opregistry.ExecutionContext, directory string) error {
	jobs, err := readYamlDir[model.Job](filepath.Join(directory, "jobs"))
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		verb := "created"
		if _, err := s.GetJob(job.ID); err == nil {
			verb = "updated"
		}
		if err := s.SaveJob(job); err != nil {
			ectx.Log(model.LevelError, fmt.Sprintf("error syncing job %s: %v", job.ID, err))
			continue
		}
		ectx.Log(model.LevelInfo, fmt.Sprintf("%s job %s", verb, job.ID))
		seen[job.ID] = true
	}

	existing, err := s.ListJobs()
	if err != nil {
		return fmt.Errorf("listing jobs: %w", err)
	}
	for _, job := range existing {
		if seen[job.ID] || job.ReadOnly {
			continue
		}
		if err := s.DeleteJob(job.ID); err != nil {
			ectx.Log(model.LevelError, fmt.Sprintf("error deleting job %s: %v", job.ID, err))
			continue
		}
		ectx.Log(model.LevelInfo, fmt.Sprintf("deleted job %s", job.ID))
	}
	return nil
}

// readYamlDir parses every *.yml file directly under dir into T, skipping a
// missing directory entirely (the sync source may not define that kind).
func readYamlDir[T any](dir string) ([]T, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var out []T
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		var v T
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", entry.Name(), err)
		}
		out = append(out, v)
	}
	return out, nil
}
