package store

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/amirbrooks/taskgroups/internal/tasks"
)

type write struct {
	text, plain, html string
}

type fakeDocument struct {
	mu        sync.Mutex
	raw       string
	readErr   error
	notifyErr error
	pending   *write
	saved     []write
}

func (d *fakeDocument) ReadRaw() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.raw, d.readErr
}

func (d *fakeDocument) WriteRaw(text, plain, html string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = &write{text: text, plain: plain, html: html}
	return nil
}

func (d *fakeDocument) NotifyChanged() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.notifyErr != nil {
		return d.notifyErr
	}
	if d.pending != nil {
		d.saved = append(d.saved, *d.pending)
		d.raw = d.pending.text
		d.pending = nil
	}
	return nil
}

func (d *fakeDocument) saves() []write {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]write(nil), d.saved...)
}

func newTestStore(t *testing.T, doc Document) *Store {
	t.Helper()
	s := New(tasks.NewState(), NewTrigger(doc, nil), nil)
	t.Cleanup(s.Close)
	return s
}

func loaded(t *testing.T, doc *fakeDocument, raw string) *Store {
	t.Helper()
	doc.raw = raw
	s := newTestStore(t, doc)
	if _, err := s.Load(doc); err != nil {
		t.Fatalf("load: %v", err)
	}
	s.Flush()
	return s
}

func TestSaveWorthyActionWritesOnceWithLastActive(t *testing.T) {
	doc := &fakeDocument{}
	s := loaded(t, doc, `{"groups":[{"name":"Work","tasks":[]}]}`)

	s.Dispatch(tasks.TaskAdded{GroupName: "Work", Task: tasks.NewTask{ID: "a", Description: "ship"}})
	s.Flush()

	saves := doc.saves()
	if len(saves) != 1 {
		t.Fatalf("expected exactly one save, got %d", len(saves))
	}
	if !strings.Contains(saves[0].text, `"lastActive"`) {
		t.Fatalf("saved text must include lastActive: %s", saves[0].text)
	}
	if saves[0].plain != "0/1 tasks completed" {
		t.Fatalf("unexpected plain preview %q", saves[0].plain)
	}
	if !strings.Contains(saves[0].html, "ship") {
		t.Fatalf("unexpected html preview %q", saves[0].html)
	}
	g, _ := s.State().Group("Work")
	if g.LastActive == nil {
		t.Fatalf("expected group marked active")
	}
}

func TestNonSaveWorthyActionsDoNotWrite(t *testing.T) {
	doc := &fakeDocument{}
	s := loaded(t, doc, `{"groups":[{"name":"Work","tasks":[]}]}`)

	s.Dispatch(tasks.GroupDraftSet{GroupName: "Work", Draft: "typing"})
	s.Dispatch(tasks.GroupMarkedActive{GroupName: "Work"})
	s.Flush()
	if n := len(doc.saves()); n != 0 {
		t.Fatalf("expected no saves, got %d", n)
	}
}

func TestLoadDoesNotWrite(t *testing.T) {
	doc := &fakeDocument{}
	loaded(t, doc, `{"groups":[]}`)
	if n := len(doc.saves()); n != 0 {
		t.Fatalf("loading must not save, got %d", n)
	}
}

func TestNoSaveWhileMigrationPending(t *testing.T) {
	doc := &fakeDocument{}
	s := loaded(t, doc, "- [ ] legacy\n")
	if !s.State().MigrationPending() {
		t.Fatalf("expected pending migration")
	}
	s.Dispatch(tasks.PrioritiesEnabledSet{Enabled: false})
	s.Dispatch(tasks.GroupAdded{GroupName: "New"})
	s.Flush()
	if n := len(doc.saves()); n != 0 {
		t.Fatalf("expected no save while migration pending, got %d", n)
	}

	s.Dispatch(tasks.LegacyMigrated{Continue: true})
	s.Flush()
	saves := doc.saves()
	if len(saves) != 1 || !strings.Contains(saves[0].text, `"legacy"`) {
		t.Fatalf("expected migrated document saved, got %#v", saves)
	}
}

func TestNoSaveAfterUnparseableContent(t *testing.T) {
	doc := &fakeDocument{}
	s := loaded(t, doc, "not a task document")
	s.Dispatch(tasks.ThemeSet{Theme: tasks.ThemeDark})
	s.Flush()
	if n := len(doc.saves()); n != 0 {
		t.Fatalf("unparseable content must not be overwritten, got %d saves", n)
	}
	if doc.raw != "not a task document" {
		t.Fatalf("document text changed: %q", doc.raw)
	}
}

func TestNilDocumentIsLoggedNotFatal(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	st := tasks.Reduce(tasks.NewState(), tasks.ContentLoaded{Raw: `{"groups":[]}`})
	s := New(st, NewTrigger(nil, zap.New(core)), nil)
	defer s.Close()

	before := s.Dispatch(tasks.GroupAdded{GroupName: "G"})
	s.Flush()
	if got := s.State(); len(got.Groups) != len(before.Groups) {
		t.Fatalf("state changed after failed save")
	}
	if logs.FilterMessage("save failed").Len() != 1 {
		t.Fatalf("expected one warning, got %v", logs.All())
	}
	if _, err := s.Load(nil); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestPersistFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	doc := &fakeDocument{raw: `{"groups":[]}`, notifyErr: ErrLocked}
	trigger := NewTrigger(doc, zap.New(core))
	s := New(tasks.NewState(), trigger, nil)
	defer s.Close()
	if _, err := s.Load(doc); err != nil {
		t.Fatalf("load: %v", err)
	}
	s.Dispatch(tasks.GroupAdded{GroupName: "G"})
	s.Flush()
	entries := logs.FilterMessage("save failed").All()
	if len(entries) != 1 || entries[0].ContextMap()["error"] != "persist document: document locked" {
		t.Fatalf("expected one persist warning, got %v", logs.All())
	}
	if _, ok := s.State().Group("G"); !ok {
		t.Fatalf("state must keep the committed change")
	}
	if !errors.Is(trigger.Err(), ErrLocked) {
		t.Fatalf("expected last save error to be kept, got %v", trigger.Err())
	}

	doc.mu.Lock()
	doc.notifyErr = nil
	doc.mu.Unlock()
	s.Dispatch(tasks.GroupAdded{GroupName: "H"})
	s.Flush()
	if err := trigger.Err(); err != nil {
		t.Fatalf("expected a later successful save to clear the error, got %v", err)
	}
}

func TestLoadReadError(t *testing.T) {
	doc := &fakeDocument{readErr: errors.New("boom")}
	s := newTestStore(t, doc)
	if _, err := s.Load(doc); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestReactionsRunInCommitOrder(t *testing.T) {
	doc := &fakeDocument{}
	s := loaded(t, doc, `{"groups":[]}`)
	for _, name := range []string{"A", "B", "C"} {
		s.Dispatch(tasks.GroupAdded{GroupName: name})
	}
	s.Flush()
	saves := doc.saves()
	if len(saves) != 3 {
		t.Fatalf("expected three saves, got %d", len(saves))
	}
	for i, want := range []string{"A", "B", "C"} {
		if !strings.Contains(saves[i].text, `"name": "`+want+`"`) {
			t.Fatalf("save %d should contain group %s: %s", i, want, saves[i].text)
		}
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	doc := &fakeDocument{raw: `{"groups":[]}`}
	s := New(tasks.NewState(), NewTrigger(doc, nil), nil)
	if _, err := s.Load(doc); err != nil {
		t.Fatalf("load: %v", err)
	}
	s.Dispatch(tasks.GroupAdded{GroupName: "A"})
	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("close did not return")
	}
	if n := len(doc.saves()); n != 1 {
		t.Fatalf("expected pending save drained, got %d", n)
	}
	s.Dispatch(tasks.GroupAdded{GroupName: "B"})
	s.Close()
}
