package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/amirbrooks/taskgroups/internal/tasks"
)

func findGroup(s tasks.State, name string) (tasks.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return tasks.Group{}, fmt.Errorf("%w: group name is empty", ErrInvalid)
	}
	g, ok := s.Group(name)
	if !ok {
		return tasks.Group{}, fmt.Errorf("%w: group %q", ErrNotFound, name)
	}
	return g, nil
}

// findTask resolves selector as an exact task id or a unique,
// case-insensitive id prefix within g.
func findTask(g tasks.Group, selector string) (tasks.Task, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return tasks.Task{}, fmt.Errorf("%w: task id is empty", ErrInvalid)
	}
	if t, ok := g.FindTask(selector); ok {
		return t, nil
	}
	prefix := strings.ToLower(selector)
	var matches []tasks.Task
	for _, t := range g.Tasks {
		if strings.HasPrefix(strings.ToLower(t.ID), prefix) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return tasks.Task{}, fmt.Errorf("%w: task %q in group %q", ErrNotFound, selector, g.Name)
	case 1:
		return matches[0], nil
	default:
		sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
		return tasks.Task{}, &MatchConflictError{
			Reason:  fmt.Sprintf("id prefix %q matches %d tasks", selector, len(matches)),
			Matches: matches,
		}
	}
}

func parsePriority(s string) (tasks.Priority, error) {
	p := tasks.Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: priority must be none|low|medium|high, got %q", ErrInvalid, s)
	}
	return p, nil
}

func parseFilter(s string) (tasks.PriorityFilter, error) {
	f := tasks.PriorityFilter(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: filter must be all|low|medium|high, got %q", ErrInvalid, s)
	}
	return f, nil
}

func parseTheme(s string) (tasks.Theme, error) {
	switch t := tasks.Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case tasks.ThemeLight, tasks.ThemeDark:
		return t, nil
	default:
		return "", fmt.Errorf("%w: theme must be light|dark, got %q", ErrInvalid, s)
	}
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: expected on|off, got %q", ErrInvalid, s)
	}
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: index %q is not a number", ErrInvalid, s)
	}
	return i, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
