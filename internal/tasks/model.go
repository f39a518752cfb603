package tasks

import (
	"encoding/json"
	"time"
)

// DefaultSchemaVersion tags documents written by this package.
const DefaultSchemaVersion = "1.0.0"

var timeNow = func() time.Time { return time.Now().UTC() }

type Priority string

const (
	PriorityNone   Priority = "none"
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists the task priorities in cycling order.
var Priorities = []Priority{PriorityNone, PriorityLow, PriorityMedium, PriorityHigh}

// Normalize maps the empty priority of older documents to PriorityNone.
func (p Priority) Normalize() Priority {
	if p == "" {
		return PriorityNone
	}
	return p
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

type PriorityFilter string

const (
	FilterAll    PriorityFilter = "all"
	FilterLow    PriorityFilter = "low"
	FilterMedium PriorityFilter = "medium"
	FilterHigh   PriorityFilter = "high"
)

func (f PriorityFilter) Valid() bool {
	switch f {
	case FilterAll, FilterLow, FilterMedium, FilterHigh:
		return true
	default:
		return false
	}
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

type Task struct {
	ID          string     `json:"id" yaml:"id"`
	Description string     `json:"description" yaml:"description"`
	Completed   bool       `json:"completed" yaml:"completed"`
	Priority    Priority   `json:"priority,omitempty" yaml:"priority,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"created_at"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty" yaml:"updated_at,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty" yaml:"completed_at,omitempty"`
}

type Group struct {
	Name          string     `json:"name" yaml:"name"`
	Tasks         []Task     `json:"tasks" yaml:"tasks"`
	Collapsed     bool       `json:"collapsed,omitempty" yaml:"collapsed,omitempty"`
	HideCompleted bool       `json:"hideCompleted" yaml:"hide_completed"`
	ShowProgress  bool       `json:"showProgress,omitempty" yaml:"show_progress,omitempty"`
	Draft         string     `json:"draft,omitempty" yaml:"draft,omitempty"`
	LastActive    *time.Time `json:"lastActive,omitempty" yaml:"last_active,omitempty"`
}

// UnmarshalJSON backfills hideCompleted (default true) and an empty task
// list for groups written before those fields existed.
func (g *Group) UnmarshalJSON(b []byte) error {
	type plain Group
	var raw struct {
		plain
		HideCompleted *bool `json:"hideCompleted"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*g = Group(raw.plain)
	g.HideCompleted = true
	if raw.HideCompleted != nil {
		g.HideCompleted = *raw.HideCompleted
	}
	if g.Tasks == nil {
		g.Tasks = []Task{}
	}
	return nil
}

// State is the aggregate root owned by the reducer.
type State struct {
	SchemaVersion     string
	Groups            []Group
	PriorityFilter    PriorityFilter
	PrioritiesEnabled bool
	Theme             Theme

	// Initialized reports whether the state reflects a decoded document.
	Initialized bool
	// LegacyContent holds a parsed legacy checklist awaiting confirmation.
	LegacyContent *Group
	LastError     string
}

// NewState returns the state of an engine that has not loaded anything yet.
func NewState() State {
	return State{
		SchemaVersion:     DefaultSchemaVersion,
		Groups:            []Group{},
		PriorityFilter:    FilterAll,
		PrioritiesEnabled: true,
	}
}

// Group returns the group with the given name.
func (s State) Group(name string) (Group, bool) {
	if i := s.groupIndex(name); i >= 0 {
		return s.Groups[i], true
	}
	return Group{}, false
}

// MigrationPending reports whether a legacy checklist awaits confirmation.
func (s State) MigrationPending() bool {
	return s.LegacyContent != nil
}

func (s State) groupIndex(name string) int {
	for i := range s.Groups {
		if s.Groups[i].Name == name {
			return i
		}
	}
	return -1
}

// FindTask returns the task with the given id.
func (g Group) FindTask(id string) (Task, bool) {
	if i := g.taskIndex(id); i >= 0 {
		return g.Tasks[i], true
	}
	return Task{}, false
}

func (g Group) taskIndex(id string) int {
	for i := range g.Tasks {
		if g.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}
