package tasks

// Action is a discrete state transition request handled by Reduce.
type Action interface {
	Type() string
}

// NewTask is the caller-supplied part of a task being added.
type NewTask struct {
	ID          string
	Description string
	Priority    Priority
}

type TaskAdded struct {
	GroupName string
	Task      NewTask
}

// TaskModified updates the fields that are non-nil.
type TaskModified struct {
	GroupName   string
	ID          string
	Description *string
	Priority    *Priority
}

type TaskDeleted struct {
	GroupName string
	ID        string
}

type TaskToggled struct {
	GroupName string
	ID        string
}

type AllCompletedReopened struct {
	GroupName string
}

type AllCompletedDeleted struct {
	GroupName string
}

// TasksReordered moves a task within a group. SameSection is false when the
// drag crossed between the open and completed sections.
type TasksReordered struct {
	GroupName   string
	From        int
	To          int
	SameSection bool
}

type GroupAdded struct {
	GroupName string
}

type GroupsReordered struct {
	From int
	To   int
}

type GroupDeleted struct {
	GroupName string
}

// GroupsMerged folds GroupName into MergeWith: the survivor carries
// MergeWith's name with MergeWith's tasks first.
type GroupsMerged struct {
	GroupName string
	MergeWith string
}

type GroupRenamed struct {
	GroupName string
	NewName   string
}

type GroupCollapsed struct {
	GroupName string
	Collapsed bool
}

type GroupHideCompletedSet struct {
	GroupName string
	Hide      bool
}

type GroupProgressSet struct {
	GroupName string
	Show      bool
}

type GroupDraftSet struct {
	GroupName string
	Draft     string
}

type GroupMarkedActive struct {
	GroupName string
}

type PrioritiesEnabledSet struct {
	Enabled bool
}

type PriorityFilterSet struct {
	Filter PriorityFilter
}

type ThemeSet struct {
	Theme Theme
}

// ContentLoaded decodes raw host text into the state.
type ContentLoaded struct {
	Raw string
}

// LegacyMigrated resolves a pending legacy migration.
type LegacyMigrated struct {
	Continue bool
}

func (TaskAdded) Type() string             { return "tasks/taskAdded" }
func (TaskModified) Type() string          { return "tasks/taskModified" }
func (TaskDeleted) Type() string           { return "tasks/taskDeleted" }
func (TaskToggled) Type() string           { return "tasks/taskToggled" }
func (AllCompletedReopened) Type() string  { return "tasks/openAllCompleted" }
func (AllCompletedDeleted) Type() string   { return "tasks/deleteAllCompleted" }
func (TasksReordered) Type() string        { return "tasks/tasksReordered" }
func (GroupAdded) Type() string            { return "tasks/groupAdded" }
func (GroupsReordered) Type() string       { return "tasks/groupReordered" }
func (GroupDeleted) Type() string          { return "tasks/groupDeleted" }
func (GroupsMerged) Type() string          { return "tasks/groupMerged" }
func (GroupRenamed) Type() string          { return "tasks/groupRenamed" }
func (GroupCollapsed) Type() string        { return "tasks/groupCollapsed" }
func (GroupHideCompletedSet) Type() string { return "tasks/groupHideCompletedToggled" }
func (GroupProgressSet) Type() string      { return "tasks/groupProgressToggled" }
func (GroupDraftSet) Type() string         { return "tasks/groupDraft" }
func (GroupMarkedActive) Type() string     { return "tasks/groupLastActive" }
func (PrioritiesEnabledSet) Type() string  { return "tasks/setPrioritiesEnabled" }
func (PriorityFilterSet) Type() string     { return "tasks/setPriorityFilter" }
func (ThemeSet) Type() string              { return "tasks/setTheme" }
func (ContentLoaded) Type() string         { return "tasks/loaded" }
func (LegacyMigrated) Type() string        { return "tasks/legacyContentMigrated" }

// GroupMutation reports whether the action changes groups or tasks. Such
// actions are ignored while a legacy migration is pending.
func GroupMutation(a Action) bool {
	switch a.(type) {
	case TaskAdded, TaskModified, TaskDeleted, TaskToggled,
		AllCompletedReopened, AllCompletedDeleted, TasksReordered,
		GroupAdded, GroupsReordered, GroupDeleted, GroupsMerged, GroupRenamed,
		GroupCollapsed, GroupHideCompletedSet, GroupProgressSet, GroupDraftSet,
		GroupMarkedActive:
		return true
	default:
		return false
	}
}
