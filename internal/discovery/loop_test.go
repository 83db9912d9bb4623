package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/quotemill/internal/domain"
	"github.com/soyeahso/quotemill/internal/enrich"
	"github.com/soyeahso/quotemill/internal/logging"
	"github.com/soyeahso/quotemill/internal/provider"
	"github.com/soyeahso/quotemill/internal/session"
)

type loopFixture struct {
	loop  *Loop
	store *session.MemoryStore
	sup   *enrich.Supervisor
}

func newLoopFixture(t *testing.T, cfg Config, reasoner provider.Reasoner, ext provider.Extractor) *loopFixture {
	t.Helper()
	log := logging.New(io.Discard, "silent")
	store := session.NewMemoryStore()
	if ext == nil {
		ext = &provider.MockExtractor{}
	}
	sup := enrich.NewSupervisor(enrich.Config{Keywords: []string{"zz-nomatch"}, Cadence: 1000}, ext, store, log)
	return &loopFixture{
		loop:  NewLoop(cfg, reasoner, sup, store, log),
		store: store,
		sup:   sup,
	}
}

func TestTurnLimitExceeded(t *testing.T) {
	reasoner := &provider.MockReasoner{
		AskFunc: func(ctx context.Context, history []domain.Message) (string, error) {
			return "tell me more", nil
		},
	}
	f := newLoopFixture(t, Config{MaxTurns: 3}, reasoner, nil)

	for i := 1; i <= 3; i++ {
		res, err := f.loop.Turn(context.Background(), "s1", fmt.Sprintf("turn %d", i))
		require.NoError(t, err)
		assert.Equal(t, i, res.TurnCount)
		assert.Equal(t, domain.StateAwaitingInput, res.State)
	}

	_, err := f.loop.Turn(context.Background(), "s1", "one too many")
	require.ErrorIs(t, err, ErrTurnLimitExceeded)

	sess := f.store.Get("s1")
	assert.Equal(t, 3, sess.TurnCount)
	assert.Equal(t, domain.StateTurnLimitExceeded, sess.State)

	// terminal: every further turn fails the same way
	_, err = f.loop.Turn(context.Background(), "s1", "still here")
	assert.ErrorIs(t, err, ErrTurnLimitExceeded)
}

func TestTurnCompletion(t *testing.T) {
	replies := []string{
		"what do you need?",
		"Great, we are done.\n```json\n{\"requirements\": \"one VM in eastus\", \"done\": true, \"items\": [{\"name\": \"Virtual Machines\", \"region\": \"eastus\", \"quantity\": 1}]}\n```",
	}
	var call int
	reasoner := &provider.MockReasoner{
		AskFunc: func(ctx context.Context, history []domain.Message) (string, error) {
			r := replies[call]
			call++
			return r, nil
		},
	}
	f := newLoopFixture(t, Config{}, reasoner, nil)

	res, err := f.loop.Turn(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.False(t, res.Done)

	res, err = f.loop.Turn(context.Background(), "s1", "one vm please")
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, domain.StateCompleted, res.State)
	assert.Equal(t, "Great, we are done.", res.Reply)

	sess := f.store.Get("s1")
	assert.True(t, sess.Done)
	assert.Equal(t, "one VM in eastus", sess.RequirementsText)
	require.Len(t, sess.FinalItems, 1)
	assert.Equal(t, "Virtual Machines", sess.FinalItems[0].Name)

	_, err = f.loop.Turn(context.Background(), "s1", "anything else")
	assert.ErrorIs(t, err, ErrSessionCompleted)
}

func TestMalformedEnvelopeContinues(t *testing.T) {
	reasoner := &provider.MockReasoner{
		AskFunc: func(ctx context.Context, history []domain.Message) (string, error) {
			return "```json\n{\"requirements\": \"x\", \"done\": \"yes\"}\n```", nil
		},
	}
	f := newLoopFixture(t, Config{}, reasoner, nil)

	res, err := f.loop.Turn(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.False(t, res.Done)
	assert.Equal(t, domain.StateAwaitingInput, res.State)
	assert.False(t, f.store.Get("s1").Done)
}

func TestReasonerErrorPropagates(t *testing.T) {
	reasoner := &provider.MockReasoner{
		AskFunc: func(ctx context.Context, history []domain.Message) (string, error) {
			return "", errors.New("upstream 503")
		},
	}
	f := newLoopFixture(t, Config{}, reasoner, nil)

	_, err := f.loop.Turn(context.Background(), "s1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream 503")
	assert.Equal(t, domain.StateAwaitingInput, f.store.Get("s1").State)
}

func TestTriggerWindowIsBounded(t *testing.T) {
	var call int
	reasoner := &provider.MockReasoner{
		AskFunc: func(ctx context.Context, history []domain.Message) (string, error) {
			call++
			if call == 3 {
				return "```json\n{\"requirements\": \"done\", \"done\": true}\n```", nil
			}
			return "noted", nil
		},
	}

	captured := make(chan []domain.Message, 1)
	ext := &provider.MockExtractor{
		ExtractFunc: func(ctx context.Context, window []domain.Message) ([]domain.InventoryItem, error) {
			captured <- window
			return nil, nil
		},
	}
	f := newLoopFixture(t, Config{TailWindow: 2}, reasoner, ext)

	for _, msg := range []string{"one", "two", "three"} {
		_, err := f.loop.Turn(context.Background(), "s1", msg)
		require.NoError(t, err)
	}
	require.NoError(t, f.sup.Wait(context.Background(), "s1"))

	window := <-captured
	require.Len(t, window, 2)
	assert.Equal(t, "user", window[0].Role)
	assert.Equal(t, "three", window[0].Content)
}
