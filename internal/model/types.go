// Package model defines the declarative entities Nomos persists as YAML:
// Credentials, Scripts, Jobs, and the JobResult that records one execution.
package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// idPattern restricts on-disk entity ids to filesystem-safe slugs, closing
// off path traversal through <root>/<id>.yml.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidID reports whether id is safe to use as a file name component.
func ValidID(id string) bool {
	return id != "" && idPattern.MatchString(id)
}

// ParamKind discriminates the tagged variants of ParameterValue.
type ParamKind string

const (
	KindString      ParamKind = "string"
	KindNumber      ParamKind = "number"
	KindBoolean     ParamKind = "boolean"
	KindPassword    ParamKind = "password"
	KindCredential  ParamKind = "credential"
	KindStringArray ParamKind = "string-array"
)

// ParameterValue is a tagged union. The wire format is
// {type: <tag>, value: <tag-dependent>}; Value holds whatever
// decoded naturally from YAML (string, float64/int, bool, []any) and the
// typed accessors below interpret it according to Type.
type ParameterValue struct {
	Type  ParamKind `yaml:"type" json:"type"`
	Value any       `yaml:"value" json:"value"`
}

// String renders the inner value as a string: Number and
// Boolean get their canonical textual form, Password/Credential/String
// return their inner string, StringArray is joined with ", ".
func (p ParameterValue) String() string {
	switch p.Type {
	case KindStringArray:
		arr, _ := p.StringArray()
		return strings.Join(arr, ", ")
	case KindNumber:
		n, _ := p.Number()
		return strconv.FormatInt(n, 10)
	case KindBoolean:
		b, _ := p.Boolean()
		return strconv.FormatBool(b)
	default:
		s, _ := p.stringValue()
		return s
	}
}

func (p ParameterValue) stringValue() (string, bool) {
	s, ok := p.Value.(string)
	return s, ok
}

// Number returns the numeric value, accepting both float64 (the typical
// YAML/JSON decode shape) and int64.
func (p ParameterValue) Number() (int64, bool) {
	switch v := p.Value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case uint64:
		return int64(v), true
	}
	return 0, false
}

// Boolean returns the boolean value.
func (p ParameterValue) Boolean() (bool, bool) {
	b, ok := p.Value.(bool)
	return b, ok
}

// StringArray returns the StringArray variant's elements.
func (p ParameterValue) StringArray() ([]string, bool) {
	switch v := p.Value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			s, ok := elem.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// NewString builds a String-variant ParameterValue.
func NewString(s string) ParameterValue { return ParameterValue{Type: KindString, Value: s} }

// NewStringArray builds a StringArray-variant ParameterValue.
func NewStringArray(values []string) ParameterValue {
	return ParameterValue{Type: KindStringArray, Value: values}
}

// CredValueKind discriminates CredentialValue's tagged variants.
type CredValueKind string

const (
	CredText CredValueKind = "text"
	CredSsh  CredValueKind = "ssh"
	CredEnv  CredValueKind = "env"
)

// CredentialValue is the tagged union backing a Credential.
type CredentialValue struct {
	Type CredValueKind `yaml:"type" json:"type"`

	// Text and Env share this field: Text's whole value, Env's raw
	// newline-separated KEY=VALUE blob.
	Value string `yaml:"value,omitempty" json:"value,omitempty"`

	// Ssh fields.
	Username   string `yaml:"username,omitempty" json:"username,omitempty"`
	PrivateKey string `yaml:"private_key,omitempty" json:"private_key,omitempty"`
}

// EnvPairs parses an Env credential's newline-separated KEY=VALUE records,
// skipping a trailing empty line and rejecting malformed entries.
func (c CredentialValue) EnvPairs() ([][2]string, error) {
	if c.Type != CredEnv {
		return nil, fmt.Errorf("credential is not an env credential")
	}
	lines := strings.Split(c.Value, "\n")
	var out [][2]string
	for i, line := range lines {
		if line == "" && i == len(lines)-1 {
			continue // trailing newline
		}
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			return nil, fmt.Errorf("env credential line %d: missing '='", i+1)
		}
		out = append(out, [2]string{line[:idx], line[idx+1:]})
	}
	return out, nil
}

// Credential is stored at <cred_root>/<id>.yml.
type Credential struct {
	ID       string          `yaml:"id" json:"id"`
	Value    CredentialValue `yaml:"value" json:"value"`
	ReadOnly bool            `yaml:"read_only,omitempty" json:"read_only,omitempty"`
}

// ScriptParameter declares one parameter a Script accepts.
type ScriptParameter struct {
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool            `yaml:"required,omitempty" json:"required,omitempty"`
	Default     *ParameterValue `yaml:"default,omitempty" json:"default,omitempty"`
}

// RawOperation is one undispatched entry of a ScriptStep's values list; the
// only field every Operation variant shares is its type discriminator. The
// opregistry package decodes the remaining, variant-specific fields.
type RawOperation map[string]any

// Kind returns the operation's type discriminator, or "" if absent.
func (r RawOperation) Kind() string {
	s, _ := r["type"].(string)
	return s
}

// ScriptStep is one named, ordered sequence of operations.
type ScriptStep struct {
	Name   string         `yaml:"name" json:"name"`
	Values []RawOperation `yaml:"values" json:"values"`
}

// Script is stored at <script_root>/<id>.yml. Immutable during a run: the
// engine copies its steps into RunningScriptSteps at run start.
type Script struct {
	ID         string            `yaml:"id" json:"id"`
	Name       string            `yaml:"name" json:"name"`
	Parameters []ScriptParameter `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Steps      []ScriptStep      `yaml:"steps" json:"steps"`
}

// JobParameter is a Job's override/default for one of its Script's
// parameters.
type JobParameter struct {
	Name    string          `yaml:"name" json:"name"`
	Default *ParameterValue `yaml:"default,omitempty" json:"default,omitempty"`
}

// TriggerKind discriminates Trigger's tagged variants.
type TriggerKind string

const (
	TriggerManual TriggerKind = "manual"
	TriggerGithub TriggerKind = "github"
)

// Trigger is one way a Job can be started outside a direct API call.
type Trigger struct {
	Type               TriggerKind `yaml:"type" json:"type"`
	URL                string      `yaml:"url,omitempty" json:"url,omitempty"`
	Branch             string      `yaml:"branch,omitempty" json:"branch,omitempty"`
	Events             []string    `yaml:"events,omitempty" json:"events,omitempty"`
	SecretCredentialID string      `yaml:"secret_credential_id,omitempty" json:"secret_credential_id,omitempty"`
}

// Job is stored at <job_root>/<id>.yml.
type Job struct {
	ID         string         `yaml:"id" json:"id"`
	Name       string         `yaml:"name" json:"name"`
	Parameters []JobParameter `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Triggers   []Trigger      `yaml:"triggers,omitempty" json:"triggers,omitempty"`
	ScriptID   string         `yaml:"script_id" json:"script_id"`
	ReadOnly   bool           `yaml:"read_only,omitempty" json:"read_only,omitempty"`
}

// ParameterByName returns the Job's parameter definition named name, if any.
func (j Job) ParameterByName(name string) (JobParameter, bool) {
	for _, p := range j.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return JobParameter{}, false
}

// StepStatus is a RunningScriptStep's lifecycle state.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepAborted StepStatus = "aborted"
)

// RunningScriptStep is a copy of a ScriptStep materialized for one JobResult,
// carrying its own lifecycle state independent of the immutable Script.
type RunningScriptStep struct {
	Name       string         `yaml:"name" json:"name"`
	Values     []RawOperation `yaml:"values" json:"values"`
	Status     StepStatus     `yaml:"status" json:"status"`
	StartedAt  *time.Time     `yaml:"started_at,omitempty" json:"started_at,omitempty"`
	FinishedAt *time.Time     `yaml:"finished_at,omitempty" json:"finished_at,omitempty"`
}

// Start records the step's start time; Status stays pending until Finish. It
// is a no-op if already started, since every step is started exactly once.
func (s *RunningScriptStep) Start() {
	if s.StartedAt != nil {
		return
	}
	now := time.Now().UTC()
	s.StartedAt = &now
}

// Finish performs the terminal, one-shot transition to status, recording
// the finish time. Calling Finish twice leaves the first outcome in place.
func (s *RunningScriptStep) Finish(status StepStatus) {
	if s.FinishedAt != nil {
		return
	}
	now := time.Now().UTC()
	s.Status = status
	s.FinishedAt = &now
}

// ResultStatus is a JobResult's overall lifecycle state.
type ResultStatus string

const (
	ResultRunning ResultStatus = "running"
	ResultSuccess ResultStatus = "success"
	ResultFailed  ResultStatus = "failed"
	ResultAborted ResultStatus = "aborted"
)

// DryRunID is the conventional, non-unique id given to dry-run results,
// which are never persisted under results_root.
const DryRunID = "dry_run"

// JobResult is the central entity: one execution instance of a Job.
type JobResult struct {
	ID              string              `yaml:"id" json:"id"`
	JobID           string              `yaml:"job_id" json:"job_id"`
	Status          ResultStatus        `yaml:"status" json:"status"`
	Steps           []RunningScriptStep `yaml:"steps" json:"steps"`
	CurrentStepName *string             `yaml:"current_step_name,omitempty" json:"current_step_name,omitempty"`
	StartedAt       time.Time           `yaml:"started_at" json:"started_at"`
	UpdatedAt       time.Time           `yaml:"updated_at" json:"updated_at"`
	FinishedAt      *time.Time          `yaml:"finished_at,omitempty" json:"finished_at,omitempty"`
	ChildProcessIDs []int               `yaml:"child_process_ids,omitempty" json:"child_process_ids,omitempty"`
	DryRun          bool                `yaml:"dry_run,omitempty" json:"dry_run,omitempty"`
	LogFilePath     string              `yaml:"log_file_path,omitempty" json:"log_file_path,omitempty"`
}

// CurrentStep returns a pointer to the step named by CurrentStepName, or nil
// if there is none (no current step, or the script has no steps).
func (r *JobResult) CurrentStep() *RunningScriptStep {
	if r.CurrentStepName == nil {
		return nil
	}
	for i := range r.Steps {
		if r.Steps[i].Name == *r.CurrentStepName {
			return &r.Steps[i]
		}
	}
	return nil
}

// StepIndex returns the index of the step named name, or -1.
func (r *JobResult) StepIndex(name string) int {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return i
		}
	}
	return -1
}

// Touch updates UpdatedAt to now. Called by every mutation that a save()
// should pick up.
func (r *JobResult) Touch() {
	r.UpdatedAt = time.Now().UTC()
}

// AddChildPID registers a live child process id.
func (r *JobResult) AddChildPID(pid int) {
	r.ChildProcessIDs = append(r.ChildProcessIDs, pid)
	r.Touch()
}

// RemoveChildPID deregisters a child process id once it has exited.
func (r *JobResult) RemoveChildPID(pid int) {
	out := r.ChildProcessIDs[:0]
	for _, p := range r.ChildProcessIDs {
		if p != pid {
			out = append(out, p)
		}
	}
	r.ChildProcessIDs = out
	r.Touch()
}

// LogLevel is a Log record's severity.
type LogLevel string

const (
	LevelInfo    LogLevel = "info"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
)

// LogRecord is one line of a JobResult's append-only log file.
type LogRecord struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Level     LogLevel  `json:"level" yaml:"level"`
	StepName  string    `json:"step_name" yaml:"step_name"`
	Message   string    `json:"message" yaml:"message"`
}
