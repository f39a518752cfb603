package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/amirbrooks/taskgroups/internal/tasks"
)

// palette is the set of colors used for one theme.
type palette struct {
	Title   lipgloss.Color
	Text    lipgloss.Color
	Dim     lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color
}

var palettes = map[tasks.Theme]palette{
	tasks.ThemeDark: {
		Title:   lipgloss.Color("#7aa2f7"),
		Text:    lipgloss.Color("#c0caf5"),
		Dim:     lipgloss.Color("#565f89"),
		Success: lipgloss.Color("#9ece6a"),
		Warning: lipgloss.Color("#e0af68"),
		Error:   lipgloss.Color("#f7768e"),
		Info:    lipgloss.Color("#7dcfff"),
	},
	tasks.ThemeLight: {
		Title:   lipgloss.Color("#2e7de9"),
		Text:    lipgloss.Color("#3760bf"),
		Dim:     lipgloss.Color("#848cb5"),
		Success: lipgloss.Color("#587539"),
		Warning: lipgloss.Color("#8c6c3e"),
		Error:   lipgloss.Color("#f52a65"),
		Info:    lipgloss.Color("#007197"),
	},
}

type styles struct {
	title    lipgloss.Style
	text     lipgloss.Style
	dim      lipgloss.Style
	done     lipgloss.Style
	notice   lipgloss.Style
	priority map[tasks.Priority]lipgloss.Style
}

// newStyles builds styles for w; color is dropped when w is not a terminal.
func newStyles(w io.Writer, theme tasks.Theme) styles {
	p, ok := palettes[theme]
	if !ok {
		p = palettes[tasks.ThemeDark]
	}
	r := lipgloss.NewRenderer(w)
	return styles{
		title:  r.NewStyle().Foreground(p.Title).Bold(true),
		text:   r.NewStyle().Foreground(p.Text),
		dim:    r.NewStyle().Foreground(p.Dim),
		done:   r.NewStyle().Foreground(p.Dim).Strikethrough(true),
		notice: r.NewStyle().Foreground(p.Warning).Bold(true),
		priority: map[tasks.Priority]lipgloss.Style{
			tasks.PriorityLow:    r.NewStyle().Foreground(p.Info),
			tasks.PriorityMedium: r.NewStyle().Foreground(p.Warning),
			tasks.PriorityHigh:   r.NewStyle().Foreground(p.Error).Bold(true),
		},
	}
}

var priorityMarks = map[tasks.Priority]string{
	tasks.PriorityLow:    "!",
	tasks.PriorityMedium: "!!",
	tasks.PriorityHigh:   "!!!",
}

// renderState lists every group of s, or only the group named only.
func renderState(w io.Writer, s tasks.State, only string) string {
	st := newStyles(w, s.Theme)
	var b strings.Builder

	if s.PrioritiesEnabled {
		counts := tasks.PriorityCounts(s.Groups)
		b.WriteString(st.dim.Render(fmt.Sprintf("Open by priority: high %d, medium %d, low %d (filter: %s)",
			counts[tasks.PriorityHigh], counts[tasks.PriorityMedium], counts[tasks.PriorityLow], s.PriorityFilter)))
		b.WriteString("\n\n")
	}

	if len(s.Groups) == 0 {
		b.WriteString(st.dim.Render("No groups yet. Add one with: taskgroups group add <name>"))
		b.WriteString("\n")
		return b.String()
	}

	first := true
	for i, g := range s.Groups {
		if only != "" && g.Name != only {
			continue
		}
		if !first {
			b.WriteString("\n")
		}
		first = false
		writeGroup(&b, st, s, i, g)
	}
	return b.String()
}

func writeGroup(b *strings.Builder, st styles, s tasks.State, index int, g tasks.Group) {
	view := tasks.VisibleTasks(s, g)
	header := fmt.Sprintf("%d. %s", index, st.title.Render(g.Name))
	if g.ShowProgress {
		header += "  " + st.dim.Render(fmt.Sprintf("%d/%d", view.Done, view.Total))
	}
	if g.Collapsed {
		header += "  " + st.dim.Render("(collapsed)")
	}
	b.WriteString(header + "\n")
	if g.Collapsed {
		return
	}
	if g.Draft != "" {
		b.WriteString("   " + st.dim.Render("draft: "+g.Draft) + "\n")
	}
	if len(view.Open) == 0 && len(view.Completed) == 0 {
		b.WriteString("   " + st.dim.Render("(no tasks)") + "\n")
		return
	}
	for _, t := range view.Open {
		writeTask(b, st, s, g, t)
	}
	for _, t := range view.Completed {
		writeTask(b, st, s, g, t)
	}
	if g.HideCompleted && view.Done > 0 {
		b.WriteString("   " + st.dim.Render(fmt.Sprintf("(%d completed hidden)", view.Done)) + "\n")
	}
}

func writeTask(b *strings.Builder, st styles, s tasks.State, g tasks.Group, t tasks.Task) {
	position := 0
	for i := range g.Tasks {
		if g.Tasks[i].ID == t.ID {
			position = i
			break
		}
	}
	box, desc := "[ ]", st.text.Render(t.Description)
	if t.Completed {
		box, desc = "[x]", st.done.Render(t.Description)
	}
	line := fmt.Sprintf("   %2d %s %s", position, box, desc)
	if s.PrioritiesEnabled {
		if mark, ok := priorityMarks[t.Priority.Normalize()]; ok {
			line += " " + st.priority[t.Priority.Normalize()].Render(mark)
		}
	}
	line += "  " + st.dim.Render(shortID(t.ID))
	b.WriteString(line + "\n")
}

// renderMigrationNotice describes a legacy checklist awaiting migration.
func renderMigrationNotice(w io.Writer, s tasks.State) string {
	st := newStyles(w, s.Theme)
	var b strings.Builder
	b.WriteString(st.notice.Render("This note holds a plain checklist from an older editor."))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%d items will be moved into the group %q:\n", len(s.LegacyContent.Tasks), s.LegacyContent.Name)
	for _, t := range s.LegacyContent.Tasks {
		box := "[ ]"
		if t.Completed {
			box = "[x]"
		}
		fmt.Fprintf(&b, "   %s %s\n", box, t.Description)
	}
	b.WriteString("\nRun 'taskgroups migrate --continue' to convert it or 'taskgroups migrate --cancel' to leave it untouched.\n")
	return b.String()
}
