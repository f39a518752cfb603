package tasks

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

const (
	previewGroups        = 3
	previewTasksPerGroup = 5
)

// FilterByPriority returns the tasks matching filter. FilterAll keeps every
// task.
func FilterByPriority(tasks []Task, filter PriorityFilter) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if filter == FilterAll || filter == "" || string(t.Priority.Normalize()) == string(filter) {
			out = append(out, t)
		}
	}
	return out
}

// Partition splits tasks into open and completed, keeping order.
func Partition(tasks []Task) (open, completed []Task) {
	open = []Task{}
	completed = []Task{}
	for _, t := range tasks {
		if t.Completed {
			completed = append(completed, t)
		} else {
			open = append(open, t)
		}
	}
	return open, completed
}

// PriorityCounts counts open tasks per priority across all groups.
func PriorityCounts(groups []Group) map[Priority]int {
	counts := map[Priority]int{PriorityLow: 0, PriorityMedium: 0, PriorityHigh: 0}
	for _, g := range groups {
		for _, t := range g.Tasks {
			if t.Completed {
				continue
			}
			p := t.Priority.Normalize()
			if _, ok := counts[p]; ok {
				counts[p]++
			}
		}
	}
	return counts
}

// Progress returns the completed and total task counts of g.
func Progress(g Group) (done, total int) {
	for _, t := range g.Tasks {
		if t.Completed {
			done++
		}
	}
	return done, len(g.Tasks)
}

// GroupView is the read projection of one group as presented to users.
type GroupView struct {
	Group     Group
	Open      []Task
	Completed []Task
	Done      int
	Total     int
}

// VisibleTasks applies the state's priority filter to g and splits the
// result into sections. Completed is empty when g hides completed tasks.
func VisibleTasks(s State, g Group) GroupView {
	filter := s.PriorityFilter
	if !s.PrioritiesEnabled {
		filter = FilterAll
	}
	open, completed := Partition(FilterByPriority(g.Tasks, filter))
	if g.HideCompleted {
		completed = []Task{}
	}
	done, total := Progress(g)
	return GroupView{Group: g, Open: open, Completed: completed, Done: done, Total: total}
}

// PlainPreview summarizes groups in one line for the host's note list.
func PlainPreview(groups []Group) string {
	done, total := 0, 0
	for _, g := range groups {
		d, t := Progress(g)
		done += d
		total += t
	}
	if total == 0 {
		return "No tasks"
	}
	return fmt.Sprintf("%d/%d tasks completed", done, total)
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, `*`, `\*`, `_`, `\_`, "`", "\\`",
	`[`, `\[`, `]`, `\]`, `<`, `\<`, `#`, `\#`,
)

// PreviewMarkdown renders the most recently active groups as a GFM
// checklist, open tasks first.
func PreviewMarkdown(groups []Group) string {
	ordered := make([]Group, len(groups))
	copy(ordered, groups)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].LastActive, ordered[j].LastActive
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.After(*b)
	})
	if len(ordered) > previewGroups {
		ordered = ordered[:previewGroups]
	}

	var b strings.Builder
	for i, g := range ordered {
		if i > 0 {
			b.WriteString("\n")
		}
		done, total := Progress(g)
		b.WriteString(fmt.Sprintf("**%s** (%d/%d)\n\n", markdownEscaper.Replace(g.Name), done, total))
		open, completed := Partition(g.Tasks)
		shown := append(open, completed...)
		more := 0
		if len(shown) > previewTasksPerGroup {
			more = len(shown) - previewTasksPerGroup
			shown = shown[:previewTasksPerGroup]
		}
		for _, t := range shown {
			mark := " "
			if t.Completed {
				mark = "x"
			}
			b.WriteString(fmt.Sprintf("- [%s] %s\n", mark, markdownEscaper.Replace(oneLine(t.Description))))
		}
		if more > 0 {
			b.WriteString(fmt.Sprintf("\n… and %d more\n", more))
		}
	}
	return b.String()
}

// RichPreview renders PreviewMarkdown as HTML.
func RichPreview(groups []Group) (string, error) {
	var buf bytes.Buffer
	if err := markdown().Convert([]byte(PreviewMarkdown(groups)), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return "(untitled)"
	}
	return s
}
