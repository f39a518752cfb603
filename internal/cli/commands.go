package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/amirbrooks/taskgroups/internal/config"
	"github.com/amirbrooks/taskgroups/internal/store"
	"github.com/amirbrooks/taskgroups/internal/tasks"
)

func newFlagSet(a *app, name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// mutate opens the document, runs fn against an editable state and waits
// for the resulting saves. fn returns the message printed on success.
func mutate(a *app, cmd string, fn func(sess *session, s tasks.State) (string, error)) int {
	sess, err := a.open()
	if err != nil {
		return a.fail(cmd, err)
	}
	defer sess.Close()
	s := sess.store.State()
	if err := ready(s); err != nil {
		return a.fail(cmd, err)
	}
	msg, err := fn(sess, s)
	if err != nil {
		return a.fail(cmd, err)
	}
	sess.store.Flush()
	if err := sess.trigger.Err(); err != nil {
		return a.fail(cmd, err)
	}
	if msg != "" {
		a.printf("%s\n", msg)
	}
	return ExitOK
}

func cmdShow(a *app, args []string) int {
	fs := newFlagSet(a, "show")
	only := fs.String("group", "", "Only show this group")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	sess, err := a.open()
	if err != nil {
		return a.fail("show", err)
	}
	defer sess.Close()

	s := sess.store.State()
	if s.MigrationPending() {
		fmt.Fprint(a.stdout, renderMigrationNotice(a.stdout, s))
		return ExitOK
	}
	if !s.Initialized {
		return a.fail("show", ready(s))
	}
	if *only != "" {
		if _, err := findGroup(s, *only); err != nil {
			return a.fail("show", err)
		}
	}
	fmt.Fprint(a.stdout, renderState(a.stdout, s, *only))
	return ExitOK
}

func cmdPreview(a *app, args []string) int {
	sess, err := a.open()
	if err != nil {
		return a.fail("preview", err)
	}
	defer sess.Close()
	s := sess.store.State()
	if err := ready(s); err != nil {
		return a.fail("preview", err)
	}
	html, err := tasks.RichPreview(s.Groups)
	if err != nil {
		return a.fail("preview", err)
	}
	fmt.Fprintln(a.stdout, tasks.PlainPreview(s.Groups))
	fmt.Fprintln(a.stdout)
	fmt.Fprint(a.stdout, html)
	return ExitOK
}

func cmdGroup(a *app, args []string) int {
	const groupUsage = "taskgroups group <add|rm|rename|merge|move|collapse|expand|hide-completed|show-progress> ..."
	if len(args) == 0 {
		return a.usage(groupUsage)
	}
	sub, rest := args[0], args[1:]
	cmd := "group " + sub
	switch sub {
	case "add":
		if len(rest) < 1 {
			return a.usage("taskgroups group add <name>")
		}
		name := strings.TrimSpace(strings.Join(rest, " "))
		if name == "" {
			return a.usage("taskgroups group add <name>")
		}
		return mutate(a, cmd, func(sess *session, s tasks.State) (string, error) {
			if _, ok := s.Group(name); ok {
				return "", fmt.Errorf("%w: group %q already exists", ErrConflict, name)
			}
			sess.store.Dispatch(tasks.GroupAdded{GroupName: name})
			return "Added group " + name, nil
		})
	case "rm":
		if len(rest) != 1 {
			return a.usage("taskgroups group rm <name>")
		}
		return mutate(a, cmd, func(sess *session, s tasks.State) (string, error) {
			g, err := findGroup(s, rest[0])
			if err != nil {
				return "", err
			}
			sess.store.Dispatch(tasks.GroupDeleted{GroupName: g.Name})
			return fmt.Sprintf("Deleted group %s (%d tasks)", g.Name, len(g.Tasks)), nil
		})
	case "rename":
		if len(rest) != 2 {
			return a.usage("taskgroups group rename <name> <new-name>")
		}
		newName := strings.TrimSpace(rest[1])
		return mutate(a, cmd, func(sess *session, s tasks.State) (string, error) {
			g, err := findGroup(s, rest[0])
			if err != nil {
				return "", err
			}
			if newName == "" {
				return "", fmt.Errorf("%w: new group name is empty", ErrInvalid)
			}
			if newName == g.Name {
				return "Nothing to rename", nil
			}
			if _, ok := s.Group(newName); ok {
				return "", fmt.Errorf("%w: group %q already exists", ErrConflict, newName)
			}
			sess.store.Dispatch(tasks.GroupRenamed{GroupName: g.Name, NewName: newName})
			return fmt.Sprintf("Renamed %s -> %s", g.Name, newName), nil
		})
	case "merge":
		if len(rest) != 2 {
			return a.usage("taskgroups group merge <name> <into>")
		}
		return mutate(a, cmd, func(sess *session, s tasks.State) (string, error) {
			src, err := findGroup(s, rest[0])
			if err != nil {
				return "", err
			}
			dst, err := findGroup(s, rest[1])
			if err != nil {
				return "", err
			}
			if src.Name == dst.Name {
				return "", fmt.Errorf("%w: cannot merge a group into itself", ErrInvalid)
			}
			sess.store.Dispatch(tasks.GroupsMerged{GroupName: src.Name, MergeWith: dst.Name})
			return fmt.Sprintf("Merged %s into %s", src.Name, dst.Name), nil
		})
	case "move":
		fs := newFlagSet(a, cmd)
		if err := fs.Parse(rest); err != nil {
			return ExitUsage
		}
		if fs.NArg() != 2 {
			return a.usage("taskgroups group move <from> <to>")
		}
		from, err := parseIndex(fs.Arg(0))
		if err != nil {
			return a.fail(cmd, err)
		}
		to, err := parseIndex(fs.Arg(1))
		if err != nil {
			return a.fail(cmd, err)
		}
		return mutate(a, cmd, func(sess *session, s tasks.State) (string, error) {
			if from >= len(s.Groups) || from < -len(s.Groups) {
				return "", fmt.Errorf("%w: no group at index %d", ErrInvalid, from)
			}
			if !tasks.CanMove(len(s.Groups), from, to) {
				return "Nothing to move", nil
			}
			sess.store.Dispatch(tasks.GroupsReordered{From: from, To: to})
			return "Moved group", nil
		})
	case "collapse", "expand":
		if len(rest) != 1 {
			return a.usage("taskgroups group " + sub + " <name>")
		}
		collapsed := sub == "collapse"
		return mutate(a, cmd, func(sess *session, s tasks.State) (string, error) {
			g, err := findGroup(s, rest[0])
			if err != nil {
				return "", err
			}
			sess.store.Dispatch(tasks.GroupCollapsed{GroupName: g.Name, Collapsed: collapsed})
			if collapsed {
				return "Collapsed " + g.Name, nil
			}
			return "Expanded " + g.Name, nil
		})
	case "hide-completed", "show-progress":
		if len(rest) != 2 {
			return a.usage("taskgroups group " + sub + " <name> on|off")
		}
		on, err := parseSwitch(rest[1])
		if err != nil {
			return a.fail(cmd, err)
		}
		return mutate(a, cmd, func(sess *session, s tasks.State) (string, error) {
			g, err := findGroup(s, rest[0])
			if err != nil {
				return "", err
			}
			if sub == "hide-completed" {
				sess.store.Dispatch(tasks.GroupHideCompletedSet{GroupName: g.Name, Hide: on})
			} else {
				sess.store.Dispatch(tasks.GroupProgressSet{GroupName: g.Name, Show: on})
			}
			return fmt.Sprintf("%s %s: %s", g.Name, sub, onOff(on)), nil
		})
	default:
		fmt.Fprintf(a.stderr, "Unknown group command: %s\n", sub)
		return a.usage(groupUsage)
	}
}

func cmdAdd(a *app, args []string) int {
	fs := newFlagSet(a, "add")
	priority := fs.String("priority", string(tasks.PriorityNone), "Priority (none|low|medium|high)")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return a.usage(`taskgroups add <group> "<text>" [--priority low|medium|high]`)
	}
	text := strings.TrimSpace(strings.Join(rest[1:], " "))
	if text == "" {
		return a.usage(`taskgroups add <group> "<text>" [--priority low|medium|high]`)
	}
	p, err := parsePriority(*priority)
	if err != nil {
		return a.fail("add", err)
	}
	return mutate(a, "add", func(sess *session, s tasks.State) (string, error) {
		g, err := findGroup(s, rest[0])
		if err != nil {
			return "", err
		}
		id := uuid.NewString()
		sess.store.Dispatch(tasks.TaskAdded{
			GroupName: g.Name,
			Task:      tasks.NewTask{ID: id, Description: text, Priority: p},
		})
		return fmt.Sprintf("%s [%s] %s", shortID(id), g.Name, text), nil
	})
}

func cmdEdit(a *app, args []string) int {
	fs := newFlagSet(a, "edit")
	desc := fs.String("desc", "", "New description")
	priority := fs.String("priority", "", "New priority (none|low|medium|high)")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if fs.NArg() != 2 || (!fs.Changed("desc") && !fs.Changed("priority")) {
		return a.usage(`taskgroups edit <group> <id> [--desc "<text>"] [--priority <p>]`)
	}
	action := tasks.TaskModified{}
	if fs.Changed("desc") {
		d := strings.TrimSpace(*desc)
		if d == "" {
			return a.fail("edit", fmt.Errorf("%w: description is empty", ErrInvalid))
		}
		action.Description = &d
	}
	if fs.Changed("priority") {
		p, err := parsePriority(*priority)
		if err != nil {
			return a.fail("edit", err)
		}
		action.Priority = &p
	}
	return mutate(a, "edit", func(sess *session, s tasks.State) (string, error) {
		g, err := findGroup(s, fs.Arg(0))
		if err != nil {
			return "", err
		}
		t, err := findTask(g, fs.Arg(1))
		if err != nil {
			return "", err
		}
		action.GroupName, action.ID = g.Name, t.ID
		sess.store.Dispatch(action)
		return "Updated " + shortID(t.ID), nil
	})
}

func cmdToggle(a *app, args []string, doneOnly bool) int {
	cmd := "toggle"
	if doneOnly {
		cmd = "done"
	}
	if len(args) != 2 {
		return a.usage("taskgroups " + cmd + " <group> <id>")
	}
	return mutate(a, cmd, func(sess *session, s tasks.State) (string, error) {
		g, err := findGroup(s, args[0])
		if err != nil {
			return "", err
		}
		t, err := findTask(g, args[1])
		if err != nil {
			return "", err
		}
		if doneOnly && t.Completed {
			return "Already done " + shortID(t.ID), nil
		}
		sess.store.Dispatch(tasks.TaskToggled{GroupName: g.Name, ID: t.ID})
		if t.Completed {
			return "Reopened " + shortID(t.ID), nil
		}
		return "Done " + shortID(t.ID), nil
	})
}

func cmdRemove(a *app, args []string) int {
	if len(args) != 2 {
		return a.usage("taskgroups rm <group> <id>")
	}
	return mutate(a, "rm", func(sess *session, s tasks.State) (string, error) {
		g, err := findGroup(s, args[0])
		if err != nil {
			return "", err
		}
		t, err := findTask(g, args[1])
		if err != nil {
			return "", err
		}
		sess.store.Dispatch(tasks.TaskDeleted{GroupName: g.Name, ID: t.ID})
		return "Deleted " + shortID(t.ID), nil
	})
}

func cmdReopenAll(a *app, args []string) int {
	if len(args) != 1 {
		return a.usage("taskgroups reopen-all <group>")
	}
	return mutate(a, "reopen-all", func(sess *session, s tasks.State) (string, error) {
		g, err := findGroup(s, args[0])
		if err != nil {
			return "", err
		}
		done, _ := tasks.Progress(g)
		sess.store.Dispatch(tasks.AllCompletedReopened{GroupName: g.Name})
		return fmt.Sprintf("Reopened %d tasks in %s", done, g.Name), nil
	})
}

func cmdClearDone(a *app, args []string) int {
	if len(args) != 1 {
		return a.usage("taskgroups clear-done <group>")
	}
	return mutate(a, "clear-done", func(sess *session, s tasks.State) (string, error) {
		g, err := findGroup(s, args[0])
		if err != nil {
			return "", err
		}
		done, _ := tasks.Progress(g)
		sess.store.Dispatch(tasks.AllCompletedDeleted{GroupName: g.Name})
		return fmt.Sprintf("Deleted %d completed tasks from %s", done, g.Name), nil
	})
}

func cmdMoveTask(a *app, args []string) int {
	fs := newFlagSet(a, "mv")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if fs.NArg() != 3 {
		return a.usage("taskgroups mv <group> <from> <to>")
	}
	from, err := parseIndex(fs.Arg(1))
	if err != nil {
		return a.fail("mv", err)
	}
	to, err := parseIndex(fs.Arg(2))
	if err != nil {
		return a.fail("mv", err)
	}
	return mutate(a, "mv", func(sess *session, s tasks.State) (string, error) {
		g, err := findGroup(s, fs.Arg(0))
		if err != nil {
			return "", err
		}
		n := len(g.Tasks)
		src, ok := resolvePosition(n, from)
		if !ok {
			return "", fmt.Errorf("%w: no task at index %d in %s", ErrInvalid, from, g.Name)
		}
		dst, _ := resolvePosition(n, to)
		if g.Tasks[src].Completed != g.Tasks[dst].Completed {
			return "", fmt.Errorf("%w: tasks can only be reordered among open or among completed tasks", ErrInvalid)
		}
		if !tasks.CanMove(n, from, to) {
			return "Nothing to move", nil
		}
		sess.store.Dispatch(tasks.TasksReordered{GroupName: g.Name, From: from, To: to, SameSection: true})
		return "Moved " + shortID(g.Tasks[src].ID), nil
	})
}

// resolvePosition maps a possibly negative index onto [0, n), clamping
// out-of-range targets. ok is false when i does not name an element.
func resolvePosition(n, i int) (int, bool) {
	ok := true
	if i < 0 {
		i += n
	}
	if i < 0 {
		i, ok = 0, false
	}
	if i > n-1 {
		i, ok = n-1, false
	}
	return i, ok && n > 0
}

func cmdDraft(a *app, args []string) int {
	if len(args) < 1 {
		return a.usage(`taskgroups draft <group> "<text>"`)
	}
	text := strings.Join(args[1:], " ")
	return mutate(a, "draft", func(sess *session, s tasks.State) (string, error) {
		g, err := findGroup(s, args[0])
		if err != nil {
			return "", err
		}
		sess.store.Dispatch(tasks.GroupDraftSet{GroupName: g.Name, Draft: text})
		// Drafts are not persisted on their own; save them explicitly.
		if err := sess.trigger.Save(sess.store.State()); err != nil {
			return "", err
		}
		return "Saved draft for " + g.Name, nil
	})
}

func cmdPriorities(a *app, args []string) int {
	if len(args) != 1 {
		return a.usage("taskgroups priorities on|off")
	}
	on, err := parseSwitch(args[0])
	if err != nil {
		return a.fail("priorities", err)
	}
	return mutate(a, "priorities", func(sess *session, s tasks.State) (string, error) {
		sess.store.Dispatch(tasks.PrioritiesEnabledSet{Enabled: on})
		return "Priorities " + onOff(on), nil
	})
}

func cmdFilter(a *app, args []string) int {
	if len(args) != 1 {
		return a.usage("taskgroups filter all|low|medium|high")
	}
	f, err := parseFilter(args[0])
	if err != nil {
		return a.fail("filter", err)
	}
	return mutate(a, "filter", func(sess *session, s tasks.State) (string, error) {
		if !s.PrioritiesEnabled && f != tasks.FilterAll {
			return "", fmt.Errorf("%w: priorities are disabled; run 'taskgroups priorities on' first", ErrConflict)
		}
		sess.store.Dispatch(tasks.PriorityFilterSet{Filter: f})
		return "Filter " + string(f), nil
	})
}

func cmdTheme(a *app, args []string) int {
	if len(args) != 1 {
		return a.usage("taskgroups theme light|dark")
	}
	theme, err := parseTheme(args[0])
	if err != nil {
		return a.fail("theme", err)
	}
	return mutate(a, "theme", func(sess *session, s tasks.State) (string, error) {
		sess.store.Dispatch(tasks.ThemeSet{Theme: theme})
		return "Theme " + string(theme), nil
	})
}

func cmdMigrate(a *app, args []string) int {
	fs := newFlagSet(a, "migrate")
	proceed := fs.Bool("continue", false, "Convert the legacy checklist")
	cancel := fs.Bool("cancel", false, "Leave the legacy checklist untouched")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if *proceed == *cancel {
		return a.usage("taskgroups migrate --continue|--cancel")
	}
	sess, err := a.open()
	if err != nil {
		return a.fail("migrate", err)
	}
	defer sess.Close()
	s := sess.store.State()
	if !s.MigrationPending() {
		return a.fail("migrate", fmt.Errorf("%w: no legacy checklist to migrate", ErrNotFound))
	}
	count := len(s.LegacyContent.Tasks)
	next := sess.store.Dispatch(tasks.LegacyMigrated{Continue: *proceed})
	sess.store.Flush()
	if err := sess.trigger.Err(); err != nil {
		return a.fail("migrate", err)
	}
	if *cancel {
		fmt.Fprintln(a.stderr, next.LastError)
		return ExitOK
	}
	a.printf("Migrated %d tasks into %s\n", count, next.Groups[len(next.Groups)-1].Name)
	return ExitOK
}

func cmdExport(a *app, args []string) int {
	fs := newFlagSet(a, "export")
	asYAML := fs.Bool("yaml", false, "Write YAML instead of JSON")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	sess, err := a.open()
	if err != nil {
		return a.fail("export", err)
	}
	defer sess.Close()
	s := sess.store.State()
	if err := ready(s); err != nil {
		return a.fail("export", err)
	}
	if *asYAML {
		b, err := yaml.Marshal(tasks.PayloadOf(s))
		if err != nil {
			return a.fail("export", err)
		}
		fmt.Fprint(a.stdout, string(b))
		return ExitOK
	}
	text, err := tasks.Encode(s)
	if err != nil {
		return a.fail("export", err)
	}
	fmt.Fprintln(a.stdout, text)
	return ExitOK
}

// cmdImport replaces the document with a JSON or JSONC file. It also
// recovers a note whose current content cannot be parsed.
func cmdImport(a *app, args []string) int {
	if len(args) != 1 {
		return a.usage("taskgroups import <file.json|file.jsonc>")
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return a.fail("import", err)
	}
	raw := string(jsonc.ToJSON(b))
	if _, err := tasks.ParsePayload(raw); err != nil {
		return a.fail("import", fmt.Errorf("%w: %s: %v", ErrInvalid, args[0], err))
	}
	sess, err := a.open()
	if err != nil {
		return a.fail("import", err)
	}
	defer sess.Close()
	s := sess.store.Dispatch(tasks.ContentLoaded{Raw: raw})
	if err := ready(s); err != nil {
		return a.fail("import", err)
	}
	if err := sess.trigger.Save(s); err != nil {
		return a.fail("import", err)
	}
	done, total := 0, 0
	for _, g := range s.Groups {
		d, t := tasks.Progress(g)
		done, total = done+d, total+t
	}
	a.printf("Imported %d groups (%d/%d tasks completed)\n", len(s.Groups), done, total)
	return ExitOK
}

func cmdHistory(a *app, args []string) int {
	sess, err := a.open()
	if err != nil {
		return a.fail("history", err)
	}
	defer sess.Close()
	switch doc := sess.doc.(type) {
	case *store.FileDocument:
		if meta, err := doc.Meta(); err == nil {
			fmt.Fprintf(a.stdout, "current  %s  %s\n", meta.Revision, meta.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		revs, err := doc.Revisions()
		if err != nil {
			return a.fail("history", err)
		}
		if len(revs) == 0 {
			fmt.Fprintln(a.stdout, "No earlier revisions")
			return ExitOK
		}
		for _, r := range revs {
			size := int64(0)
			if fi, err := os.Stat(r.Path); err == nil {
				size = fi.Size()
			}
			fmt.Fprintf(a.stdout, "%s  %s  %d bytes\n", r.ID, r.SavedAt.Format("2006-01-02 15:04:05"), size)
		}
		return ExitOK
	case *store.SQLiteDocument:
		rev, err := doc.Revision()
		if err != nil {
			return a.fail("history", err)
		}
		if rev == "" {
			rev = "(never saved)"
		}
		fmt.Fprintf(a.stdout, "current  %s\n", rev)
		fmt.Fprintln(a.stdout, "The sqlite backend keeps only the latest revision")
		return ExitOK
	default:
		return a.fail("history", fmt.Errorf("%w: backend has no history", ErrInvalid))
	}
}

func cmdConfig(a *app, args []string) int {
	if len(args) == 0 || args[0] != "show" {
		return a.usage("taskgroups config show")
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return a.fail("config", err)
	}
	path := a.gf.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	status := "missing, using defaults"
	if _, err := os.Stat(path); err == nil {
		status = "loaded"
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return a.fail("config", err)
	}
	fmt.Fprintf(a.stdout, "# %s (%s)\n", path, status)
	fmt.Fprint(a.stdout, string(b))
	return ExitOK
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
