// Package webhook implements the Webhook Dispatcher: it
// verifies a GitHub push payload's HMAC-SHA256 signature against each
// candidate trigger's credential and submits matching Jobs to the
// Supervisor.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/nomos-run/nomos/internal/model"
)

var (
	errNotTextCredential  = errors.New("secret_credential_id does not resolve to a text credential")
	errSignatureMismatch  = errors.New("signature does not match")
	errRepositoryMismatch = errors.New("repository.full_name does not match trigger url")
	errEventMismatch      = errors.New("event not in trigger's events list")
)

// JobLister enumerates every Job so the dispatcher can scan their
// triggers, bridging to internal/defs.
type JobLister interface {
	ListJobs() ([]model.Job, error)
}

// CredentialGetter resolves a Credential by id, bridging to internal/defs.
type CredentialGetter interface {
	GetCredential(id string) (model.Credential, error)
}

// Submitter hands a Job to the Supervisor for background execution.
type Submitter interface {
	Submit(job model.Job, scriptOverride *model.Script, params map[string]model.ParameterValue) (string, error)
}

// Dispatcher matches an inbound webhook delivery against every Job's
// Github triggers and submits the ones that match.
type Dispatcher struct {
	Jobs        JobLister
	Credentials CredentialGetter
	Supervisor  Submitter
	Logger      *slog.Logger
}

// pushPayload is the minimal GitHub push event shape the dispatcher reads:
// just repository.full_name.
type pushPayload struct {
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// Dispatch runs every Job's Github triggers against one webhook delivery.
// It never returns an error to its caller. An unparseable payload is logged
// and nothing is submitted; per-Job and per-trigger failures (missing
// credential, bad signature, repository or event mismatch) are logged and
// skipped, and iteration continues across every remaining Job and trigger.
// The HTTP handler always responds 200 regardless of what happens here.
func (d *Dispatcher) Dispatch(body []byte, signatureHeader, eventHeader string) {
	logger := d.logger()

	var payload pushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.Warn("webhook: payload is not valid JSON", "error", err)
		return
	}

	jobs, err := d.Jobs.ListJobs()
	if err != nil {
		logger.Error("webhook: failed to list jobs", "error", err)
		return
	}

	for _, job := range jobs {
		for _, trigger := range job.Triggers {
			if trigger.Type != model.TriggerGithub {
				continue
			}
			if err := d.tryTrigger(job, trigger, body, signatureHeader, eventHeader, payload); err != nil {
				logger.Info("webhook: trigger did not fire", "job_id", job.ID, "trigger_url", trigger.URL, "reason", err)
			}
		}
	}
}

// tryTrigger reports nil only when trigger matched and the Job was
// submitted; any other outcome is returned as an error purely for logging,
// never propagated to the HTTP response.
func (d *Dispatcher) tryTrigger(job model.Job, trigger model.Trigger, body []byte, signatureHeader, eventHeader string, payload pushPayload) error {
	cred, err := d.Credentials.GetCredential(trigger.SecretCredentialID)
	if err != nil {
		return err
	}
	if cred.Value.Type != model.CredText {
		return errNotTextCredential
	}

	if !validSignature(body, cred.Value.Value, signatureHeader) {
		return errSignatureMismatch
	}

	if payload.Repository.FullName != trigger.URL {
		return errRepositoryMismatch
	}
	if !eventMatches(trigger.Events, eventHeader) {
		return errEventMismatch
	}

	params := map[string]model.ParameterValue{
		"github_payload": model.NewString(string(body)),
	}
	resultID, err := d.Supervisor.Submit(job, nil, params)
	if err != nil {
		return err
	}
	d.logger().Info("webhook: triggered job", "job_id", job.ID, "result_id", resultID)
	return nil
}

// validSignature recomputes "sha256=<hex>" of HMAC-SHA256(body, secret) and
// compares it constant-time against header.
func validSignature(body []byte, secret, header string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}

func eventMatches(events []string, event string) bool {
	for _, e := range events {
		if e == event {
			return true
		}
	}
	return false
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
