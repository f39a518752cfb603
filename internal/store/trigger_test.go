package store

import (
	"testing"

	"github.com/amirbrooks/taskgroups/internal/tasks"
)

func TestActivityGroup(t *testing.T) {
	active := []tasks.Action{
		tasks.TaskAdded{GroupName: "G"},
		tasks.TaskModified{GroupName: "G"},
		tasks.TaskToggled{GroupName: "G"},
		tasks.TaskDeleted{GroupName: "G"},
		tasks.AllCompletedReopened{GroupName: "G"},
		tasks.AllCompletedDeleted{GroupName: "G"},
		tasks.TasksReordered{GroupName: "G"},
		tasks.GroupAdded{GroupName: "G"},
		tasks.GroupDeleted{GroupName: "G"},
		tasks.GroupsMerged{GroupName: "G", MergeWith: "H"},
		tasks.GroupCollapsed{GroupName: "G"},
	}
	for _, a := range active {
		name, ok := ActivityGroup(a)
		if !ok || name != "G" {
			t.Fatalf("%s: expected activity on G, got %q/%v", a.Type(), name, ok)
		}
		if !SaveWorthy(a) {
			t.Fatalf("%s: activity actions must be save-worthy", a.Type())
		}
	}

	quiet := []tasks.Action{
		tasks.GroupRenamed{GroupName: "G", NewName: "H"},
		tasks.GroupDraftSet{GroupName: "G"},
		tasks.GroupMarkedActive{GroupName: "G"},
		tasks.PriorityFilterSet{Filter: tasks.FilterHigh},
		tasks.ContentLoaded{},
	}
	for _, a := range quiet {
		if _, ok := ActivityGroup(a); ok {
			t.Fatalf("%s must not count as activity", a.Type())
		}
	}
}

func TestSaveWorthy(t *testing.T) {
	save := []tasks.Action{
		tasks.PrioritiesEnabledSet{},
		tasks.PriorityFilterSet{},
		tasks.GroupRenamed{},
		tasks.GroupsReordered{},
		tasks.GroupHideCompletedSet{},
		tasks.GroupProgressSet{},
		tasks.ThemeSet{},
		tasks.LegacyMigrated{},
	}
	for _, a := range save {
		if !SaveWorthy(a) {
			t.Fatalf("%s should be saved", a.Type())
		}
	}
	for _, a := range []tasks.Action{tasks.GroupDraftSet{}, tasks.GroupMarkedActive{}, tasks.ContentLoaded{}} {
		if SaveWorthy(a) {
			t.Fatalf("%s must not be saved", a.Type())
		}
	}
}

type stubDispatcher struct {
	state      tasks.State
	dispatched []tasks.Action
}

func (d *stubDispatcher) Dispatch(a tasks.Action) tasks.State {
	d.dispatched = append(d.dispatched, a)
	d.state = tasks.Reduce(d.state, a)
	return d.state
}

func (d *stubDispatcher) State() tasks.State { return d.state }

func TestReactMarksActiveBeforeSaving(t *testing.T) {
	doc := &fakeDocument{}
	d := &stubDispatcher{state: tasks.Reduce(tasks.NewState(), tasks.ContentLoaded{Raw: `{"groups":[{"name":"X","tasks":[]}]}`})}
	trigger := NewTrigger(doc, nil)

	a := tasks.GroupCollapsed{GroupName: "X", Collapsed: true}
	d.Dispatch(a)
	trigger.React(d, a)

	if len(d.dispatched) != 2 {
		t.Fatalf("expected one follow-up dispatch, got %d", len(d.dispatched)-1)
	}
	if got, ok := d.dispatched[1].(tasks.GroupMarkedActive); !ok || got.GroupName != "X" {
		t.Fatalf("expected GroupMarkedActive{X}, got %#v", d.dispatched[1])
	}
	saves := doc.saves()
	if len(saves) != 1 {
		t.Fatalf("expected one save, got %d", len(saves))
	}
	back := tasks.Reduce(tasks.NewState(), tasks.ContentLoaded{Raw: saves[0].text})
	g, ok := back.Group("X")
	if !ok || g.LastActive == nil || !g.Collapsed {
		t.Fatalf("saved document must carry the activity stamp: %s", saves[0].text)
	}
}
