package store

import (
	"crypto/rand"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/amirbrooks/taskgroups/internal/tasks"
)

type randReader struct{}

func (randReader) Read(p []byte) (int, error) { return rand.Read(p) }

var (
	timeNow = func() time.Time { return time.Now().UTC() }

	// Revision ids sort by creation order, including within one millisecond.
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(randReader{}, 0)
)

// Store owns the task state. Transitions are applied synchronously under a
// mutex; reactions to committed actions run on a single worker goroutine in
// commit order.
type Store struct {
	mu      sync.Mutex
	state   tasks.State
	trigger *Trigger
	log     *zap.Logger

	qmu    sync.Mutex
	cond   *sync.Cond
	queue  []tasks.Action
	busy   bool
	closed bool
	done   chan struct{}
}

// New starts a store at initial. trigger and log may be nil.
func New(initial tasks.State, trigger *Trigger, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		state:   initial,
		trigger: trigger,
		log:     log,
		done:    make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.qmu)
	go s.run()
	return s
}

// Dispatch commits a and returns the new state. Reactions to a are queued
// behind any pending ones.
func (s *Store) Dispatch(a tasks.Action) tasks.State {
	s.mu.Lock()
	next := tasks.Reduce(s.state, a)
	s.state = next
	s.mu.Unlock()

	s.log.Debug("action committed",
		zap.String("action", a.Type()),
		zap.Int("groups", len(next.Groups)),
		zap.Bool("initialized", next.Initialized),
	)

	s.qmu.Lock()
	if s.closed {
		s.qmu.Unlock()
		s.log.Warn("store closed, reactions skipped", zap.String("action", a.Type()))
		return next
	}
	s.queue = append(s.queue, a)
	s.cond.Broadcast()
	s.qmu.Unlock()
	return next
}

// State returns the current state.
func (s *Store) State() tasks.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Load reads doc and dispatches its content.
func (s *Store) Load(doc Document) (tasks.State, error) {
	if doc == nil {
		return s.State(), ErrUnavailable
	}
	raw, err := doc.ReadRaw()
	if err != nil {
		return s.State(), fmt.Errorf("read document: %w", err)
	}
	return s.Dispatch(tasks.ContentLoaded{Raw: raw}), nil
}

// Flush blocks until every queued reaction has run. It must not be called
// from a reaction.
func (s *Store) Flush() {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	for len(s.queue) > 0 || s.busy {
		s.cond.Wait()
	}
}

// Close drains the reaction queue and stops the worker.
func (s *Store) Close() {
	s.qmu.Lock()
	if s.closed {
		s.qmu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.cond.Broadcast()
	s.qmu.Unlock()
	<-s.done
}

func (s *Store) run() {
	defer close(s.done)
	for {
		s.qmu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.qmu.Unlock()
			return
		}
		a := s.queue[0]
		s.queue = s.queue[1:]
		s.busy = true
		s.qmu.Unlock()

		if s.trigger != nil {
			s.trigger.React(s, a)
		}

		s.qmu.Lock()
		s.busy = false
		s.cond.Broadcast()
		s.qmu.Unlock()
	}
}

func newULID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(timeNow()), ulidEntropy)
	if err != nil {
		// fallback
		return fmt.Sprintf("%d", timeNow().UnixNano())
	}
	return strings.ToUpper(id.String())
}

// ExpandHome resolves a leading "~" against the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~"+string(os.PathSeparator)) || path == "~" {
		home, _ := os.UserHomeDir()
		if home != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func atomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	// Rename is atomic on same filesystem.
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
