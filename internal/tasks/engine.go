package tasks

import (
	"fmt"
	"slices"
	"time"
)

// Reduce applies a to s and returns the resulting state. It never modifies
// s. Actions whose target group or task does not exist return s unchanged,
// as do group and task mutations while a legacy migration is pending.
func Reduce(s State, a Action) State {
	if s.LegacyContent != nil && GroupMutation(a) {
		return s
	}
	switch a := a.(type) {
	case TaskAdded:
		return updateGroup(s, a.GroupName, func(g *Group) bool {
			if g.taskIndex(a.Task.ID) >= 0 {
				return false
			}
			priority := a.Task.Priority
			if priority == "" {
				priority = PriorityNone
			}
			task := Task{
				ID:          a.Task.ID,
				Description: a.Task.Description,
				Priority:    priority,
				CreatedAt:   timeNow(),
			}
			g.Draft = ""
			g.Tasks = append([]Task{task}, g.Tasks...)
			return true
		})
	case TaskModified:
		return updateTask(s, a.GroupName, a.ID, func(g *Group, i int) {
			t := &g.Tasks[i]
			if a.Description != nil {
				t.Description = *a.Description
			}
			if a.Priority != nil {
				t.Priority = *a.Priority
			}
			t.UpdatedAt = stamp()
		})
	case TaskDeleted:
		return updateTask(s, a.GroupName, a.ID, func(g *Group, i int) {
			g.Tasks = slices.Delete(g.Tasks, i, i+1)
		})
	case TaskToggled:
		return updateTask(s, a.GroupName, a.ID, func(g *Group, i int) {
			t := g.Tasks[i]
			t.Completed = !t.Completed
			t.UpdatedAt = stamp()
			if t.Completed {
				t.CompletedAt = stamp()
			} else {
				t.CompletedAt = nil
			}
			rest := slices.Delete(g.Tasks, i, i+1)
			g.Tasks = append([]Task{t}, rest...)
		})
	case AllCompletedReopened:
		return updateGroup(s, a.GroupName, func(g *Group) bool {
			for i := range g.Tasks {
				g.Tasks[i].Completed = false
				g.Tasks[i].CompletedAt = nil
			}
			return true
		})
	case AllCompletedDeleted:
		return updateGroup(s, a.GroupName, func(g *Group) bool {
			open := make([]Task, 0, len(g.Tasks))
			for _, t := range g.Tasks {
				if !t.Completed {
					open = append(open, t)
				}
			}
			g.Tasks = open
			return true
		})
	case TasksReordered:
		if !a.SameSection {
			return s
		}
		return updateGroup(s, a.GroupName, func(g *Group) bool {
			if !CanMove(len(g.Tasks), a.From, a.To) {
				return false
			}
			g.Tasks = Move(g.Tasks, a.From, a.To)
			return true
		})
	case GroupAdded:
		if s.groupIndex(a.GroupName) >= 0 {
			return s
		}
		next := s
		next.Groups = append(slices.Clone(s.Groups), Group{
			Name:          a.GroupName,
			Tasks:         []Task{},
			HideCompleted: true,
		})
		return next
	case GroupsReordered:
		if !CanMove(len(s.Groups), a.From, a.To) {
			return s
		}
		next := s
		next.Groups = Move(s.Groups, a.From, a.To)
		return next
	case GroupDeleted:
		i := s.groupIndex(a.GroupName)
		if i < 0 {
			return s
		}
		next := s
		next.Groups = slices.Delete(slices.Clone(s.Groups), i, i+1)
		return next
	case GroupsMerged:
		return mergeGroups(s, a.GroupName, a.MergeWith)
	case GroupRenamed:
		if a.GroupName == a.NewName {
			return s
		}
		return updateGroup(s, a.GroupName, func(g *Group) bool {
			g.Name = a.NewName
			return true
		})
	case GroupCollapsed:
		return updateGroup(s, a.GroupName, func(g *Group) bool {
			g.Collapsed = a.Collapsed
			return true
		})
	case GroupHideCompletedSet:
		return updateGroup(s, a.GroupName, func(g *Group) bool {
			g.HideCompleted = a.Hide
			return true
		})
	case GroupProgressSet:
		return updateGroup(s, a.GroupName, func(g *Group) bool {
			g.ShowProgress = a.Show
			return true
		})
	case GroupDraftSet:
		return updateGroup(s, a.GroupName, func(g *Group) bool {
			g.Draft = a.Draft
			return true
		})
	case GroupMarkedActive:
		return updateGroup(s, a.GroupName, func(g *Group) bool {
			g.LastActive = stamp()
			return true
		})
	case PrioritiesEnabledSet:
		next := s
		next.PrioritiesEnabled = a.Enabled
		if !a.Enabled {
			next.PriorityFilter = FilterAll
		}
		return next
	case PriorityFilterSet:
		next := s
		next.PriorityFilter = a.Filter
		return next
	case ThemeSet:
		next := s
		next.Theme = a.Theme
		return next
	case ContentLoaded:
		return decode(s, a.Raw)
	case LegacyMigrated:
		return migrateLegacy(s, a.Continue)
	default:
		return s
	}
}

// updateGroup copies s and the named group's task list, then lets fn edit
// the copy. fn returns false to abandon the change.
func updateGroup(s State, name string, fn func(g *Group) bool) State {
	i := s.groupIndex(name)
	if i < 0 {
		return s
	}
	groups := slices.Clone(s.Groups)
	g := groups[i]
	g.Tasks = slices.Clone(g.Tasks)
	if !fn(&g) {
		return s
	}
	groups[i] = g
	next := s
	next.Groups = groups
	return next
}

func updateTask(s State, groupName, id string, fn func(g *Group, i int)) State {
	return updateGroup(s, groupName, func(g *Group) bool {
		i := g.taskIndex(id)
		if i < 0 {
			return false
		}
		fn(g, i)
		return true
	})
}

func mergeGroups(s State, name, mergeWith string) State {
	if name == mergeWith {
		return s
	}
	source := s.groupIndex(name)
	target := s.groupIndex(mergeWith)
	if source < 0 || target < 0 {
		return s
	}
	groups := slices.Clone(s.Groups)
	merged := groups[source]
	merged.Name = mergeWith
	tasks := make([]Task, 0, len(groups[target].Tasks)+len(merged.Tasks))
	tasks = append(tasks, groups[target].Tasks...)
	merged.Tasks = append(tasks, merged.Tasks...)
	groups[source] = merged
	next := s
	next.Groups = slices.Delete(groups, target, target+1)
	return next
}

func migrateLegacy(s State, proceed bool) State {
	if s.LegacyContent == nil {
		return s
	}
	next := s
	next.LegacyContent = nil
	if proceed {
		group := *s.LegacyContent
		group.Name = uniqueGroupName(s, group.Name)
		next.Groups = append(slices.Clone(s.Groups), group)
		next.Initialized = true
		next.LastError = ""
		return next
	}
	next.Groups = []Group{}
	next.Initialized = false
	next.LastError = MigrationCanceledMessage
	return next
}

func uniqueGroupName(s State, name string) string {
	if s.groupIndex(name) < 0 {
		return name
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", name, n)
		if s.groupIndex(candidate) < 0 {
			return candidate
		}
	}
}

func stamp() *time.Time {
	now := timeNow()
	return &now
}
