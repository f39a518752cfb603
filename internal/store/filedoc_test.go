package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
)

func TestFileDocumentReadMissing(t *testing.T) {
	doc := NewFileDocument(filepath.Join(t.TempDir(), "tasks.json"), 3)
	raw, err := doc.ReadRaw()
	if err != nil || raw != "" {
		t.Fatalf("expected empty text for missing file, got %q, %v", raw, err)
	}
	revs, err := doc.Revisions()
	if err != nil || len(revs) != 0 {
		t.Fatalf("expected no revisions, got %v, %v", revs, err)
	}
}

func TestFileDocumentWriteStagesUntilNotify(t *testing.T) {
	doc := NewFileDocument(filepath.Join(t.TempDir(), "tasks.json"), 3)
	if err := doc.WriteRaw(`{"groups":[]}`, "No tasks", "<p>none</p>"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(doc.Path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("WriteRaw must only stage, stat err = %v", err)
	}
	if err := doc.NotifyChanged(); err != nil {
		t.Fatalf("notify: %v", err)
	}
	raw, err := doc.ReadRaw()
	if err != nil || raw != `{"groups":[]}` {
		t.Fatalf("unexpected text %q, %v", raw, err)
	}
	meta, err := doc.Meta()
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.PreviewPlain != "No tasks" || meta.PreviewHTML != "<p>none</p>" || meta.Revision == "" {
		t.Fatalf("unexpected meta %#v", meta)
	}
	if err := doc.NotifyChanged(); err != nil {
		t.Fatalf("notify without staged text: %v", err)
	}
}

func TestFileDocumentCreatesParentDirectory(t *testing.T) {
	doc := NewFileDocument(filepath.Join(t.TempDir(), "notes", "sub", "tasks.json"), 3)
	if err := doc.WriteRaw(`{"groups":[]}`, "No tasks", ""); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := doc.NotifyChanged(); err != nil {
		t.Fatalf("notify into a new directory: %v", err)
	}
	raw, err := doc.ReadRaw()
	if err != nil || raw != `{"groups":[]}` {
		t.Fatalf("unexpected text %q, %v", raw, err)
	}
	if _, err := doc.Meta(); err != nil {
		t.Fatalf("meta: %v", err)
	}
}

func TestFileDocumentKeepsPrunedRevisions(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	prev := timeNow
	timeNow = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}
	t.Cleanup(func() { timeNow = prev })

	doc := NewFileDocument(filepath.Join(t.TempDir(), "tasks.json"), 2)
	for _, text := range []string{"v1", "v2", "v3", "v4", "v4"} {
		if err := doc.WriteRaw(text, "", ""); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := doc.NotifyChanged(); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	revs, err := doc.Revisions()
	if err != nil {
		t.Fatalf("revisions: %v", err)
	}
	if len(revs) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(revs))
	}
	newest, err := os.ReadFile(revs[0].Path)
	if err != nil {
		t.Fatalf("read revision: %v", err)
	}
	oldest, _ := os.ReadFile(revs[1].Path)
	if string(newest) != "v3" || string(oldest) != "v2" {
		t.Fatalf("expected revisions [v3 v2], got [%s %s]", newest, oldest)
	}
	if revs[0].SavedAt.IsZero() || !revs[0].SavedAt.After(revs[1].SavedAt) {
		t.Fatalf("expected revision times newest first: %v, %v", revs[0].SavedAt, revs[1].SavedAt)
	}
}

func TestFileDocumentLockConflict(t *testing.T) {
	doc := NewFileDocument(filepath.Join(t.TempDir(), "tasks.json"), 1)
	other := flock.New(doc.Path + ".lock")
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("could not take lock: %v", err)
	}
	defer other.Unlock()

	if err := doc.WriteRaw("{}", "", ""); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := doc.NotifyChanged(); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := other.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := doc.NotifyChanged(); err != nil {
		t.Fatalf("staged text should be saved once the lock is free: %v", err)
	}
	if raw, _ := doc.ReadRaw(); raw != "{}" {
		t.Fatalf("unexpected text %q", raw)
	}
}
