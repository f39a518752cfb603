package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/amirbrooks/taskgroups/internal/config"
	"github.com/amirbrooks/taskgroups/internal/logging"
	"github.com/amirbrooks/taskgroups/internal/store"
	"github.com/amirbrooks/taskgroups/internal/tasks"
)

// Exit codes
const (
	ExitOK       = 0
	ExitUsage    = 2
	ExitNotFound = 3
	ExitConflict = 4
	ExitInternal = 10
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
)

// MatchConflictError provides details when a selector matches multiple tasks.
// It still satisfies errors.Is(err, ErrConflict).
type MatchConflictError struct {
	Reason  string
	Matches []tasks.Task
}

func (e *MatchConflictError) Error() string {
	if e == nil || strings.TrimSpace(e.Reason) == "" {
		return "conflict"
	}
	return "conflict: " + e.Reason
}

func (e *MatchConflictError) Is(target error) bool {
	return target == ErrConflict
}

type GlobalFlags struct {
	ConfigPath string
	DocPath    string
	Backend    string
	Quiet      bool
	Verbose    bool
}

type app struct {
	gf     GlobalFlags
	stdout io.Writer
	stderr io.Writer
}

// session is an open document with its store. Close waits for pending
// saves.
type session struct {
	cfg     config.Config
	log     *zap.Logger
	doc     store.Document
	trigger *store.Trigger
	store   *store.Store
	closers []func() error
}

func Run(args []string) int {
	return Execute(args, os.Stdout, os.Stderr)
}

// Execute runs the command line args writing to stdout and stderr.
func Execute(args []string, stdout, stderr io.Writer) int {
	gf, rest, err := extractGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return ExitUsage
	}
	a := &app{gf: gf, stdout: stdout, stderr: stderr}

	if len(rest) == 0 {
		a.printHelp(stderr)
		return ExitUsage
	}

	cmd := rest[0]
	cmdArgs := rest[1:]

	switch cmd {
	case "help", "--help", "-h":
		a.printHelp(stdout)
		return ExitOK
	case "config", "cfg":
		return cmdConfig(a, cmdArgs)
	case "show", "ls":
		return cmdShow(a, cmdArgs)
	case "preview":
		return cmdPreview(a, cmdArgs)
	case "group":
		return cmdGroup(a, cmdArgs)
	case "add":
		return cmdAdd(a, cmdArgs)
	case "edit":
		return cmdEdit(a, cmdArgs)
	case "toggle":
		return cmdToggle(a, cmdArgs, false)
	case "done":
		return cmdToggle(a, cmdArgs, true)
	case "rm":
		return cmdRemove(a, cmdArgs)
	case "reopen-all":
		return cmdReopenAll(a, cmdArgs)
	case "clear-done":
		return cmdClearDone(a, cmdArgs)
	case "mv", "move":
		return cmdMoveTask(a, cmdArgs)
	case "draft":
		return cmdDraft(a, cmdArgs)
	case "priorities":
		return cmdPriorities(a, cmdArgs)
	case "filter":
		return cmdFilter(a, cmdArgs)
	case "theme":
		return cmdTheme(a, cmdArgs)
	case "migrate":
		return cmdMigrate(a, cmdArgs)
	case "export":
		return cmdExport(a, cmdArgs)
	case "import":
		return cmdImport(a, cmdArgs)
	case "history":
		return cmdHistory(a, cmdArgs)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		a.printHelp(stderr)
		return ExitUsage
	}
}

func (a *app) printHelp(w io.Writer) {
	fmt.Fprint(w, `taskgroups — grouped task lists stored in a single note

Usage:
  taskgroups [global flags] <command> [args]

Global flags:
  --config <path>  Config file (default: ~/.taskgroups/config.yaml)
  --doc <path>     Document path (file) or database path (sqlite)
  --backend <b>    file|sqlite
  --quiet
  --verbose

Commands:
  show [--group <name>]
  preview
  group add|rm|collapse|expand <name>
  group rename <name> <new-name>
  group merge <name> <into>
  group move <from> <to>
  group hide-completed|show-progress <name> on|off
  add <group> "<text>" [--priority none|low|medium|high]
  edit <group> <id> [--desc "<text>"] [--priority <p>]
  toggle <group> <id>
  done <group> <id>
  rm <group> <id>
  reopen-all <group>
  clear-done <group>
  mv <group> <from> <to>          (use -- before negative indices)
  draft <group> "<text>"
  priorities on|off
  filter all|low|medium|high
  theme light|dark
  migrate --continue|--cancel
  export [--yaml]
  import <file.json|file.jsonc>
  history
  config show

Task ids may be abbreviated to any unique prefix.
`)
}

func extractGlobalFlags(args []string) (GlobalFlags, []string, error) {
	// Allow flags anywhere by scanning and stripping known globals.
	gf := GlobalFlags{}
	out := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			out = append(out, args[i:]...)
			break
		}
		name, value, hasValue := strings.Cut(a, "=")
		switch name {
		case "--config", "--doc", "--backend":
			if !hasValue {
				if i+1 >= len(args) {
					return gf, nil, fmt.Errorf("%s requires a value", name)
				}
				value = args[i+1]
				i++
			}
			switch name {
			case "--config":
				gf.ConfigPath = value
			case "--doc":
				gf.DocPath = value
			case "--backend":
				gf.Backend = value
			}
		case "--quiet":
			gf.Quiet = true
		case "--verbose":
			gf.Verbose = true
		default:
			out = append(out, a)
		}
	}

	if gf.Quiet && gf.Verbose {
		return gf, nil, errors.New("--quiet and --verbose are mutually exclusive")
	}
	return gf, out, nil
}

func (a *app) loadConfig() (config.Config, error) {
	cfg, err := config.Load(a.gf.ConfigPath)
	if err != nil {
		return cfg, err
	}
	if a.gf.Backend != "" {
		cfg.Document.Backend = a.gf.Backend
	}
	if a.gf.DocPath != "" {
		cfg.Document.Path = a.gf.DocPath
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg, nil
}

// open loads the configured document into a new store.
func (a *app) open() (*session, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log, logging.Options{Console: a.stderr, Quiet: a.gf.Quiet, Verbose: a.gf.Verbose})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	sess := &session{cfg: cfg, log: log}

	switch cfg.Document.Backend {
	case config.BackendSQLite:
		doc, err := store.OpenSQLiteDocument(cfg.Document.Path, cfg.Document.Name)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.Document.Path, err)
		}
		sess.doc = doc
		sess.closers = append(sess.closers, doc.Close)
	default:
		sess.doc = store.NewFileDocument(cfg.Document.Path, cfg.Document.Revisions)
	}

	sess.trigger = store.NewTrigger(sess.doc, log)
	sess.store = store.New(tasks.NewState(), sess.trigger, log)
	if _, err := sess.store.Load(sess.doc); err != nil {
		sess.Close()
		return nil, err
	}
	log.Debug("document loaded",
		zap.String("backend", cfg.Document.Backend),
		zap.String("path", cfg.Document.Path),
	)
	return sess, nil
}

func (s *session) Close() {
	s.store.Close()
	for _, c := range s.closers {
		if err := c(); err != nil {
			s.log.Warn("close document", zap.Error(err))
		}
	}
	_ = s.log.Sync()
}

// ready fails unless the loaded document can be edited.
func ready(s tasks.State) error {
	if s.MigrationPending() {
		return fmt.Errorf("%w: the note holds a legacy checklist; run 'taskgroups migrate --continue' or 'taskgroups migrate --cancel'", ErrConflict)
	}
	if !s.Initialized {
		msg := s.LastError
		if msg == "" {
			msg = "document not loaded"
		}
		return fmt.Errorf("%w: %s", tasks.ErrInvalidContent, msg)
	}
	return nil
}

func (a *app) fail(cmd string, err error) int {
	fmt.Fprintf(a.stderr, "%s: %v\n", cmd, err)
	var mc *MatchConflictError
	if errors.As(err, &mc) {
		for _, t := range mc.Matches {
			fmt.Fprintf(a.stderr, "  %s  %s\n", t.ID, t.Description)
		}
	}
	return exitCode(err)
}

func (a *app) usage(text string) int {
	fmt.Fprintln(a.stderr, "Usage: "+text)
	return ExitUsage
}

func (a *app) printf(format string, args ...any) {
	if a.gf.Quiet {
		return
	}
	fmt.Fprintf(a.stdout, format, args...)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrNotFound):
		return ExitNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, tasks.ErrInvalidContent):
		return ExitConflict
	case errors.Is(err, ErrInvalid):
		return ExitUsage
	default:
		return ExitInternal
	}
}
