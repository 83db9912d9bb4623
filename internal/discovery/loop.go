// Package discovery runs the turn-limited requirements conversation.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/quotemill/internal/domain"
	"github.com/soyeahso/quotemill/internal/enrich"
	"github.com/soyeahso/quotemill/internal/logging"
	"github.com/soyeahso/quotemill/internal/provider"
	"github.com/soyeahso/quotemill/internal/session"
)

// DefaultMaxTurns bounds the discovery conversation.
const DefaultMaxTurns = 20

// DefaultTailWindow is how many trailing messages are handed to the
// enrichment supervisor each turn.
const DefaultTailWindow = 6

// ErrSessionCompleted is returned when a turn arrives for a session
// whose discovery already finished.
var ErrSessionCompleted = errors.New("session already completed")

// ErrTurnLimitExceeded is returned when a turn would push the session
// past its turn limit.
var ErrTurnLimitExceeded = errors.New("turn limit exceeded")

// Config tunes the discovery loop.
type Config struct {
	MaxTurns   int
	TailWindow int
}

func (c Config) withDefaults() Config {
	if c.MaxTurns == 0 {
		c.MaxTurns = DefaultMaxTurns
	}
	if c.TailWindow == 0 {
		c.TailWindow = DefaultTailWindow
	}
	return c
}

// TurnResult is what a single conversation turn produces.
type TurnResult struct {
	Reply     string
	TurnCount int
	State     domain.DiscoveryState
	Done      bool
}

// Loop drives the requirements conversation one turn at a time.
//
// Turns for the same session must not run concurrently; the transport
// layer serializes them.
type Loop struct {
	cfg      Config
	reasoner provider.Reasoner
	sup      *enrich.Supervisor
	sessions session.Store
	log      *logging.Logger
}

// NewLoop creates a discovery loop.
func NewLoop(cfg Config, reasoner provider.Reasoner, sup *enrich.Supervisor, sessions session.Store, log *logging.Logger) *Loop {
	return &Loop{
		cfg:      cfg.withDefaults(),
		reasoner: reasoner,
		sup:      sup,
		sessions: sessions,
		log:      log.Sub("discovery"),
	}
}

// Turn runs one conversation turn: record the user message, consult the
// reasoner, detect the completion envelope, and hand the trailing
// message window to the enrichment supervisor.
func (l *Loop) Turn(ctx context.Context, sessionID, text string) (*TurnResult, error) {
	sess := l.sessions.GetOrCreate(sessionID)

	switch sess.State {
	case domain.StateCompleted:
		return nil, ErrSessionCompleted
	case domain.StateTurnLimitExceeded:
		return nil, ErrTurnLimitExceeded
	}

	turn := sess.TurnCount + 1
	if turn > l.cfg.MaxTurns {
		l.sessions.Update(sessionID, func(s *domain.Session) {
			s.State = domain.StateTurnLimitExceeded
		})
		l.log.Info().Str("session", sessionID).Int("max_turns", l.cfg.MaxTurns).Msg("turn limit reached")
		return nil, ErrTurnLimitExceeded
	}

	now := time.Now()
	var history []domain.Message
	l.sessions.Update(sessionID, func(s *domain.Session) {
		s.Messages = append(s.Messages, domain.Message{Role: "user", Content: text, Timestamp: now})
		s.TurnCount = turn
		s.State = domain.StateProcessing
		history = append([]domain.Message(nil), s.Messages...)
	})

	reply, err := l.reasoner.Ask(ctx, history)
	if err != nil {
		l.sessions.Update(sessionID, func(s *domain.Session) {
			s.State = domain.StateAwaitingInput
		})
		return nil, fmt.Errorf("reasoner: %w", err)
	}

	env := ParseEnvelope(reply)
	if env.State == EnvelopeMalformed {
		l.log.Warn().Str("session", sessionID).Int("turn", turn).Msg("malformed completion envelope, continuing")
	}

	completed := env.State == EnvelopeWellFormed && env.Done
	visible := reply
	if completed {
		visible = StripEnvelope(reply)
		if visible == "" {
			visible = env.Summary
		}
	}

	var window []domain.Message
	l.sessions.Update(sessionID, func(s *domain.Session) {
		s.Messages = append(s.Messages, domain.Message{Role: "assistant", Content: visible, Timestamp: time.Now()})
		if completed {
			s.Done = true
			s.RequirementsText = env.Summary
			s.FinalItems = env.Items
			s.State = domain.StateCompleted
		} else {
			s.State = domain.StateAwaitingInput
		}
		window = tail(s.Messages, l.cfg.TailWindow)
	})

	l.sup.Trigger(sessionID, window, turn, completed)

	state := domain.StateAwaitingInput
	if completed {
		state = domain.StateCompleted
	}
	return &TurnResult{Reply: visible, TurnCount: turn, State: state, Done: completed}, nil
}

func tail(msgs []domain.Message, n int) []domain.Message {
	if len(msgs) <= n {
		return append([]domain.Message(nil), msgs...)
	}
	return append([]domain.Message(nil), msgs[len(msgs)-n:]...)
}
