// Package defs implements filesystem CRUD for Credentials, Scripts, and
// Jobs outside of execution, and the sync operation's directory scan —
// wired here so the engine's sync operation and the HTTP API have
// somewhere to read and write definitions.
package defs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/nomos-run/nomos/internal/model"
)

// Store is filesystem-backed CRUD for the three definition entities, rooted
// at a state directory.
type Store struct {
	credRoot   string
	scriptRoot string
	jobRoot    string
}

// NewStore builds a Store rooted at stateRoot.
func NewStore(stateRoot string) *Store {
	return &Store{
		credRoot:   filepath.Join(stateRoot, "credentials"),
		scriptRoot: filepath.Join(stateRoot, "scripts"),
		jobRoot:    filepath.Join(stateRoot, "jobs"),
	}
}

func entityPath(root, id string) (string, error) {
	if !model.ValidID(id) {
		return "", fmt.Errorf("invalid id %q", id)
	}
	return filepath.Join(root, id+".yml"), nil
}

func readEntity[T any](root, id string) (*T, error) {
	path, err := entityPath(root, id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", id, err)
	}
	var out T
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", id, err)
	}
	return &out, nil
}

func writeEntity(root, id string, v any) error {
	path, err := entityPath(root, id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("creating entity root: %w", err)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", id, err)
	}
	return os.WriteFile(path, data, 0o644)
}

func listIDs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yml") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".yml"))
	}
	return ids, nil
}

// GetCredential implements opregistry.CredentialResolver.
func (s *Store) GetCredential(id string) (model.Credential, error) {
	c, err := readEntity[model.Credential](s.credRoot, id)
	if err != nil {
		return model.Credential{}, err
	}
	return *c, nil
}

// SaveCredential creates or overwrites a credential definition.
func (s *Store) SaveCredential(c model.Credential) error {
	return writeEntity(s.credRoot, c.ID, c)
}

// DeleteCredential removes a credential definition, refusing if read-only.
func (s *Store) DeleteCredential(id string) error {
	c, err := s.GetCredential(id)
	if err != nil {
		return err
	}
	if c.ReadOnly {
		return fmt.Errorf("credential %s is read-only", id)
	}
	path, err := entityPath(s.credRoot, id)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// ListCredentials returns every stored credential.
func (s *Store) ListCredentials() ([]model.Credential, error) {
	ids, err := listIDs(s.credRoot)
	if err != nil {
		return nil, err
	}
	out := make([]model.Credential, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetCredential(id)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// GetScript loads a Script by id.
func (s *Store) GetScript(id string) (model.Script, error) {
	sc, err := readEntity[model.Script](s.scriptRoot, id)
	if err != nil {
		return model.Script{}, err
	}
	return *sc, nil
}

// SaveScript creates or overwrites a script definition.
func (s *Store) SaveScript(sc model.Script) error {
	return writeEntity(s.scriptRoot, sc.ID, sc)
}

// DeleteScript removes a script definition.
func (s *Store) DeleteScript(id string) error {
	path, err := entityPath(s.scriptRoot, id)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// ListScripts returns every stored script.
func (s *Store) ListScripts() ([]model.Script, error) {
	ids, err := listIDs(s.scriptRoot)
	if err != nil {
		return nil, err
	}
	out := make([]model.Script, 0, len(ids))
	for _, id := range ids {
		sc, err := s.GetScript(id)
		if err != nil {
			continue
		}
		out = append(out, sc)
	}
	return out, nil
}

// GetJob loads a Job by id.
func (s *Store) GetJob(id string) (model.Job, error) {
	j, err := readEntity[model.Job](s.jobRoot, id)
	if err != nil {
		return model.Job{}, err
	}
	return *j, nil
}

// SaveJob creates or overwrites a job definition.
func (s *Store) SaveJob(j model.Job) error {
	return writeEntity(s.jobRoot, j.ID, j)
}

// DeleteJob removes a job definition, refusing if read-only.
func (s *Store) DeleteJob(id string) error {
	j, err := s.GetJob(id)
	if err != nil {
		return err
	}
	if j.ReadOnly {
		return fmt.Errorf("job %s is read-only", id)
	}
	path, err := entityPath(s.jobRoot, id)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// ListJobs returns every stored job.
func (s *Store) ListJobs() ([]model.Job, error) {
	ids, err := listIDs(s.jobRoot)
	if err != nil {
		return nil, err
	}
	out := make([]model.Job, 0, len(ids))
	for _, id := range ids {
		j, err := s.GetJob(id)
		if err != nil {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}
