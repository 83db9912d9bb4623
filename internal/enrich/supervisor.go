// Package enrich runs background inventory extraction for sessions.
//
// Each session has at most one in-flight extraction task. Launching a new
// task cancels its predecessor, and a superseded task never writes its
// results back: the supervisor checks currency under its own lock
// immediately before merging, so a slow old task cannot clobber the work
// of a newer one.
package enrich

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/quotemill/internal/domain"
	"github.com/soyeahso/quotemill/internal/inventory"
	"github.com/soyeahso/quotemill/internal/logging"
	"github.com/soyeahso/quotemill/internal/provider"
	"github.com/soyeahso/quotemill/internal/session"
)

// DefaultCadence is the turn interval at which extraction runs even
// without a keyword hit.
const DefaultCadence = 3

// DefaultTimeout bounds a single extraction task.
const DefaultTimeout = 60 * time.Second

// Config tunes the supervisor's trigger heuristics.
type Config struct {
	// Keywords trigger extraction when any appears anywhere in the
	// message window. Matching is case-insensitive.
	Keywords []string

	// Cadence forces extraction every N turns. Zero disables the
	// periodic trigger.
	Cadence int

	// Timeout bounds a single extraction task.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Cadence == 0 {
		c.Cadence = DefaultCadence
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if len(c.Keywords) == 0 {
		c.Keywords = []string{"vm", "database", "storage", "server", "kubernetes", "cache", "app"}
	}
	return c
}

type task struct {
	id     uuid.UUID
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor owns the per-session background extraction tasks.
type Supervisor struct {
	cfg       Config
	extractor provider.Extractor
	sessions  session.Store
	log       *logging.Logger

	mu     sync.Mutex
	active map[string]*task
}

// NewSupervisor creates a supervisor using the given extractor and
// session store.
func NewSupervisor(cfg Config, extractor provider.Extractor, sessions session.Store, log *logging.Logger) *Supervisor {
	return &Supervisor{
		cfg:       cfg.withDefaults(),
		extractor: extractor,
		sessions:  sessions,
		log:       log.Sub("enrich"),
		active:    make(map[string]*task),
	}
}

// Trigger evaluates the trigger heuristics for a finished turn and, if
// they fire, launches a background extraction over the given message
// window. A running task for the same session is cancelled first.
func (s *Supervisor) Trigger(sessionID string, window []domain.Message, turn int, completed bool) {
	if !s.shouldTrigger(window, turn, completed) {
		return
	}
	s.launch(sessionID, window)
}

func (s *Supervisor) shouldTrigger(window []domain.Message, turn int, completed bool) bool {
	if completed {
		return true
	}
	if s.cfg.Cadence > 0 && turn%s.cfg.Cadence == 0 {
		return true
	}
	// The keyword scan covers the whole window: a resource named in
	// the assistant's reply counts as much as one the user typed.
	for _, msg := range window {
		lower := strings.ToLower(msg.Content)
		for _, kw := range s.cfg.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}

func (s *Supervisor) launch(sessionID string, window []domain.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	t := &task{id: uuid.New(), cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	if prev, ok := s.active[sessionID]; ok {
		prev.cancel()
	}
	s.active[sessionID] = t
	s.mu.Unlock()

	s.sessions.Update(sessionID, func(sess *domain.Session) {
		sess.TaskStatus = domain.TaskQueued
		sess.TaskError = ""
	})

	s.log.Debug().Str("session", sessionID).Str("task", t.id.String()).Msg("extraction task launched")
	go s.run(ctx, t, sessionID, window)
}

func (s *Supervisor) run(ctx context.Context, t *task, sessionID string, window []domain.Message) {
	defer close(t.done)
	defer t.cancel()

	if !s.setStatusIfCurrent(sessionID, t, domain.TaskProcessing, "") {
		return
	}

	items, err := s.extractor.ExtractItems(ctx, window)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled {
			// Superseded or explicitly cancelled. The successor owns
			// the session's task status now.
			s.finish(sessionID, t)
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			s.setStatusIfCurrent(sessionID, t, domain.TaskError, "enrichment timed out")
			s.finish(sessionID, t)
			return
		}
		s.log.Warn().Err(err).Str("session", sessionID).Msg("extraction failed")
		s.setStatusIfCurrent(sessionID, t, domain.TaskError, err.Error())
		s.finish(sessionID, t)
		return
	}

	s.merge(ctx, sessionID, t, items)
	s.finish(sessionID, t)
}

// merge applies the extracted items if, and only if, this task is still
// the session's current one and was not cancelled mid-flight. The check
// and the write happen under the supervisor lock so a successor launched
// in between cannot race with the merge.
func (s *Supervisor) merge(ctx context.Context, sessionID string, t *task, items []domain.InventoryItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active[sessionID] != t {
		return
	}
	if ctx.Err() != nil {
		// Cancelled or timed out between extraction and merge.
		if ctx.Err() == context.DeadlineExceeded {
			s.sessions.Update(sessionID, func(sess *domain.Session) {
				sess.TaskStatus = domain.TaskError
				sess.TaskError = "enrichment timed out"
			})
		}
		return
	}

	var res inventory.Result
	now := time.Now()
	s.sessions.Update(sessionID, func(sess *domain.Session) {
		sess.Items, res = inventory.Merge(sess.Items, items)
		sess.TaskStatus = domain.TaskComplete
		sess.TaskError = ""
		sess.LastUpdateAt = &now
	})

	s.log.Debug().
		Str("session", sessionID).
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Strs("rejected", res.Rejected).
		Msg("inventory merged")
}

// setStatusIfCurrent writes the task status only while this task is
// still the session's current one.
func (s *Supervisor) setStatusIfCurrent(sessionID string, t *task, status domain.TaskStatus, errMsg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active[sessionID] != t {
		return false
	}
	s.sessions.Update(sessionID, func(sess *domain.Session) {
		sess.TaskStatus = status
		sess.TaskError = errMsg
	})
	return true
}

// finish removes the task from the registry if it is still current.
func (s *Supervisor) finish(sessionID string, t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[sessionID] == t {
		delete(s.active, sessionID)
	}
}

// Status reports the session's task status and error message.
func (s *Supervisor) Status(sessionID string) (domain.TaskStatus, string) {
	sess := s.sessions.Get(sessionID)
	if sess == nil {
		return domain.TaskIdle, ""
	}
	if sess.TaskStatus == "" {
		return domain.TaskIdle, sess.TaskError
	}
	return sess.TaskStatus, sess.TaskError
}

// Wait blocks until the session's in-flight task (if any) has fully
// settled, meaning its results are merged or discarded. Returns
// immediately when no task is running.
func (s *Supervisor) Wait(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	t, ok := s.active[sessionID]
	s.mu.Unlock()

	if !ok {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return nil
	}
}

// Cancel aborts the session's in-flight task, if any, without waiting
// for it to unwind.
func (s *Supervisor) Cancel(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.active[sessionID]; ok {
		t.cancel()
	}
}
