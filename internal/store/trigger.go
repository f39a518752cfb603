package store

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/amirbrooks/taskgroups/internal/tasks"
)

// Dispatcher is the part of Store a reaction may call back into.
type Dispatcher interface {
	Dispatch(tasks.Action) tasks.State
	State() tasks.State
}

// Trigger reacts to committed actions: it marks the touched group as active
// and writes the encoded state back to the host document.
type Trigger struct {
	doc Document
	log *zap.Logger

	mu     sync.Mutex
	failed error
}

// NewTrigger returns a trigger persisting to doc. A nil doc is allowed;
// saves are then logged and dropped.
func NewTrigger(doc Document, log *zap.Logger) *Trigger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Trigger{doc: doc, log: log}
}

// React runs the reactions for a, which d has already committed.
func (t *Trigger) React(d Dispatcher, a tasks.Action) {
	if name, ok := ActivityGroup(a); ok {
		d.Dispatch(tasks.GroupMarkedActive{GroupName: name})
	}
	if SaveWorthy(a) {
		t.persist(d.State(), a)
	}
}

// ActivityGroup returns the group an action counts as activity on.
func ActivityGroup(a tasks.Action) (string, bool) {
	switch a := a.(type) {
	case tasks.TaskAdded:
		return a.GroupName, true
	case tasks.TaskModified:
		return a.GroupName, true
	case tasks.TaskToggled:
		return a.GroupName, true
	case tasks.TaskDeleted:
		return a.GroupName, true
	case tasks.AllCompletedReopened:
		return a.GroupName, true
	case tasks.AllCompletedDeleted:
		return a.GroupName, true
	case tasks.TasksReordered:
		return a.GroupName, true
	case tasks.GroupAdded:
		return a.GroupName, true
	case tasks.GroupDeleted:
		return a.GroupName, true
	case tasks.GroupsMerged:
		return a.GroupName, true
	case tasks.GroupCollapsed:
		return a.GroupName, true
	default:
		return "", false
	}
}

// SaveWorthy reports whether a changes persisted data.
func SaveWorthy(a tasks.Action) bool {
	if _, ok := ActivityGroup(a); ok {
		return true
	}
	switch a.(type) {
	case tasks.PrioritiesEnabledSet, tasks.PriorityFilterSet,
		tasks.GroupRenamed, tasks.GroupsReordered,
		tasks.GroupHideCompletedSet, tasks.GroupProgressSet,
		tasks.ThemeSet, tasks.LegacyMigrated:
		return true
	default:
		return false
	}
}

func (t *Trigger) persist(s tasks.State, cause tasks.Action) {
	log := t.log.With(zap.String("action", cause.Type()))
	if !s.Initialized {
		log.Debug("save skipped, state not initialized", zap.Bool("migration_pending", s.MigrationPending()))
		return
	}
	err := t.Save(s)
	t.mu.Lock()
	t.failed = err
	t.mu.Unlock()
	if err != nil {
		log.Warn("save failed", zap.Error(err))
		return
	}
	log.Debug("document saved")
}

// Err returns the error of the most recent reactive save, or nil if it
// succeeded or none has run.
func (t *Trigger) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}

// Save encodes s with its previews and persists it to the document.
func (t *Trigger) Save(s tasks.State) error {
	if t.doc == nil {
		return ErrUnavailable
	}
	text, err := tasks.Encode(s)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	html, err := tasks.RichPreview(s.Groups)
	if err != nil {
		t.log.Warn("render preview", zap.Error(err))
		html = ""
	}
	if err := t.doc.WriteRaw(text, tasks.PlainPreview(s.Groups), html); err != nil {
		return fmt.Errorf("stage document: %w", err)
	}
	if err := t.doc.NotifyChanged(); err != nil {
		return fmt.Errorf("persist document: %w", err)
	}
	return nil
}
