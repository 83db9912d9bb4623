package store

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/quotemill/internal/domain"
	"github.com/soyeahso/quotemill/internal/logging"
	"github.com/soyeahso/quotemill/internal/session"
)

var _ session.Store = (*SQLiteStore)(nil)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", logging.New(io.Discard, "silent"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := NewSQLiteStore(testDB(t))

	created := s.GetOrCreate("s1")
	require.NotNil(t, created)
	assert.Equal(t, domain.StateAwaitingInput, created.State)
	assert.Equal(t, domain.TaskIdle, created.TaskStatus)

	now := time.Now()
	ok := s.Update("s1", func(sess *domain.Session) {
		sess.TurnCount = 4
		sess.State = domain.StateCompleted
		sess.Done = true
		sess.RequirementsText = "two VMs and a cache"
		sess.Messages = []domain.Message{
			{Role: "user", Content: "hi", Timestamp: now},
			{Role: "assistant", Content: "hello", Timestamp: now},
		}
		sess.Items = []domain.InventoryItem{
			{Name: "Virtual Machines", Region: "eastus", Variant: "D2s", Quantity: 2, Attributes: map[string]string{"os": "linux"}},
		}
		sess.FinalItems = []domain.InventoryItem{
			{Name: "Cache", Region: "eastus", Quantity: 1},
		}
		sess.TaskStatus = domain.TaskComplete
		sess.LastUpdateAt = &now
		sess.Pricing = &domain.PricingResult{
			Items:    []domain.PricedItem{{Name: "Virtual Machines", Region: "eastus", Quantity: 2, UnitPrice: 0.1, LineCost: 0.2}},
			Total:    0.2,
			Currency: "USD",
			PricedAt: now,
		}
		sess.Document = "# Quote"
	})
	require.True(t, ok)

	got := s.Get("s1")
	require.NotNil(t, got)
	assert.Equal(t, 4, got.TurnCount)
	assert.Equal(t, domain.StateCompleted, got.State)
	assert.True(t, got.Done)
	assert.Equal(t, "two VMs and a cache", got.RequirementsText)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "linux", got.Items[0].Attributes["os"])
	require.Len(t, got.FinalItems, 1)
	assert.Equal(t, domain.TaskComplete, got.TaskStatus)
	require.NotNil(t, got.LastUpdateAt)
	require.NotNil(t, got.Pricing)
	assert.Equal(t, 0.2, got.Pricing.Total)
	assert.Equal(t, "# Quote", got.Document)
}

func TestSQLiteStoreGetOrCreateIsIdempotent(t *testing.T) {
	s := NewSQLiteStore(testDB(t))

	first := s.GetOrCreate("s1")
	s.Update("s1", func(sess *domain.Session) { sess.TurnCount = 2 })
	second := s.GetOrCreate("s1")

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.TurnCount)
}

func TestSQLiteStoreGetMissing(t *testing.T) {
	s := NewSQLiteStore(testDB(t))
	assert.Nil(t, s.Get("nope"))
	assert.False(t, s.Update("nope", func(*domain.Session) {}))
}

func TestSQLiteStoreDelete(t *testing.T) {
	db := testDB(t)
	s := NewSQLiteStore(db)

	s.GetOrCreate("s1")
	s.Update("s1", func(sess *domain.Session) {
		sess.Messages = []domain.Message{{Role: "user", Content: "hi", Timestamp: time.Now()}}
	})

	s.Delete("s1")
	assert.Nil(t, s.Get("s1"))

	// cascade removed the messages too
	var count int
	require.NoError(t, db.SQL().QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count))
	assert.Zero(t, count)
}

func TestSQLiteStoreList(t *testing.T) {
	s := NewSQLiteStore(testDB(t))

	s.GetOrCreate("a")
	s.GetOrCreate("b")
	s.Update("a", func(sess *domain.Session) { sess.TurnCount = 1 })

	ids := s.List()
	require.Len(t, ids, 2)
	assert.Equal(t, "a", ids[0])
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	db := testDB(t)

	s := NewSQLiteStore(db)
	s.GetOrCreate("s1")
	s.Update("s1", func(sess *domain.Session) { sess.Done = true })

	// a second store over the same database sees the session
	again := NewSQLiteStore(db)
	got := again.Get("s1")
	require.NotNil(t, got)
	assert.True(t, got.Done)
}
