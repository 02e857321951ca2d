package defs

import (
	"testing"

	"github.com/nomos-run/nomos/internal/model"
)

func TestCredentialCRUD(t *testing.T) {
	store := NewStore(t.TempDir())
	cred := model.Credential{ID: "db", Value: model.CredentialValue{Type: model.CredText, Value: "secret"}}

	if err := store.SaveCredential(cred); err != nil {
		t.Fatalf("SaveCredential: %v", err)
	}
	got, err := store.GetCredential("db")
	if err != nil {
		t.Fatalf("GetCredential: %v", err)
	}
	if got.Value.Value != "secret" {
		t.Errorf("expected round-tripped value, got %+v", got)
	}

	if err := store.DeleteCredential("db"); err != nil {
		t.Fatalf("DeleteCredential: %v", err)
	}
	if _, err := store.GetCredential("db"); err == nil {
		t.Fatal("expected error reading deleted credential")
	}
}

func TestDeleteReadOnlyCredentialFails(t *testing.T) {
	store := NewStore(t.TempDir())
	cred := model.Credential{ID: "db", Value: model.CredentialValue{Type: model.CredText, Value: "secret"}, ReadOnly: true}
	if err := store.SaveCredential(cred); err != nil {
		t.Fatalf("SaveCredential: %v", err)
	}
	if err := store.DeleteCredential("db"); err == nil {
		t.Fatal("expected read-only credential to refuse deletion")
	}
}

func TestInvalidIDRejected(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.GetCredential("../etc/passwd"); err == nil {
		t.Fatal("expected path-traversal id to be rejected")
	}
}

func TestListScriptsAndJobs(t *testing.T) {
	store := NewStore(t.TempDir())

	script := model.Script{ID: "build", Name: "Build", Steps: []model.ScriptStep{{Name: "compile"}}}
	if err := store.SaveScript(script); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	job := model.Job{ID: "nightly", Name: "Nightly", ScriptID: "build"}
	if err := store.SaveJob(job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	scripts, err := store.ListScripts()
	if err != nil {
		t.Fatalf("ListScripts: %v", err)
	}
	if len(scripts) != 1 || scripts[0].ID != "build" {
		t.Errorf("unexpected scripts: %+v", scripts)
	}

	jobs, err := store.ListJobs()
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "nightly" {
		t.Errorf("unexpected jobs: %+v", jobs)
	}
}
