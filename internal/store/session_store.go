package store

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/soyeahso/quotemill/internal/domain"
)

// SQLiteStore implements session.Store backed by SQLite. Sessions
// survive process restarts; in-flight enrichment tasks do not, so task
// status is persisted as-is and simply read back.
//
// A single mutex serializes read-modify-write cycles, matching the
// store contract that Update runs its closure exclusively.
type SQLiteStore struct {
	db *DB
	mu sync.Mutex
}

// NewSQLiteStore creates a session store using the given database.
func NewSQLiteStore(db *DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetOrCreate finds an existing session or creates a fresh one.
func (s *SQLiteStore) GetOrCreate(id string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess := s.load(id); sess != nil {
		return sess
	}

	now := time.Now()
	sess := &domain.Session{
		ID:         id,
		CreatedAt:  now,
		UpdatedAt:  now,
		State:      domain.StateAwaitingInput,
		TaskStatus: domain.TaskIdle,
	}
	if err := s.insert(sess); err != nil {
		s.db.log.Error().Err(err).Str("session", id).Msg("failed to create session")
	}
	return sess
}

// Get returns a session snapshot, or nil if not found.
func (s *SQLiteStore) Get(id string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

// Update applies fn to the session inside the store lock and writes the
// result back. Returns false if the session does not exist.
func (s *SQLiteStore) Update(id string, fn func(*domain.Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.load(id)
	if sess == nil {
		return false
	}
	fn(sess)
	sess.UpdatedAt = time.Now()
	if err := s.save(sess); err != nil {
		s.db.log.Error().Err(err).Str("session", id).Msg("failed to save session")
		return false
	}
	return true
}

// Delete removes a session and its messages.
func (s *SQLiteStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.sql.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		s.db.log.Error().Err(err).Str("session", id).Msg("failed to delete session")
	}
}

// List returns all session IDs, most recently updated first.
func (s *SQLiteStore) List() []string {
	rows, err := s.db.sql.Query(`SELECT id FROM sessions ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (s *SQLiteStore) load(id string) *domain.Session {
	var (
		sess                    domain.Session
		done                    int
		itemsJSON, finalJSON    string
		pricingJSON, lastUpdate *string
		state, taskStatus       string
		createdAt, updatedAt    string
	)
	err := s.db.sql.QueryRow(
		`SELECT id, turn_count, state, done, requirements, items, final_items,
		        task_status, task_error, last_update_at, pricing, document,
		        created_at, updated_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(
		&sess.ID, &sess.TurnCount, &state, &done, &sess.RequirementsText,
		&itemsJSON, &finalJSON, &taskStatus, &sess.TaskError,
		&lastUpdate, &pricingJSON, &sess.Document, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil
	}

	sess.State = domain.DiscoveryState(state)
	sess.TaskStatus = domain.TaskStatus(taskStatus)
	sess.Done = done != 0
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	_ = json.Unmarshal([]byte(itemsJSON), &sess.Items)
	_ = json.Unmarshal([]byte(finalJSON), &sess.FinalItems)
	if pricingJSON != nil && *pricingJSON != "" {
		var pr domain.PricingResult
		if json.Unmarshal([]byte(*pricingJSON), &pr) == nil {
			sess.Pricing = &pr
		}
	}
	if lastUpdate != nil && *lastUpdate != "" {
		if t, err := time.Parse(time.RFC3339Nano, *lastUpdate); err == nil {
			sess.LastUpdateAt = &t
		}
	}

	sess.Messages = s.loadMessages(id)
	return &sess
}

func (s *SQLiteStore) insert(sess *domain.Session) error {
	_, err := s.db.sql.Exec(
		`INSERT INTO sessions (id, state, task_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sess.ID, string(sess.State), string(sess.TaskStatus),
		sess.CreatedAt.Format(time.RFC3339Nano), sess.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) save(sess *domain.Session) error {
	itemsJSON := marshalOr(sess.Items, "[]")
	finalJSON := marshalOr(sess.FinalItems, "[]")

	var pricingJSON *string
	if sess.Pricing != nil {
		p := marshalOr(sess.Pricing, "")
		pricingJSON = &p
	}
	var lastUpdate *string
	if sess.LastUpdateAt != nil {
		t := sess.LastUpdateAt.Format(time.RFC3339Nano)
		lastUpdate = &t
	}

	tx, err := s.db.sql.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(
		`UPDATE sessions SET turn_count = ?, state = ?, done = ?, requirements = ?,
		        items = ?, final_items = ?, task_status = ?, task_error = ?,
		        last_update_at = ?, pricing = ?, document = ?, updated_at = ?
		 WHERE id = ?`,
		sess.TurnCount, string(sess.State), boolToInt(sess.Done), sess.RequirementsText,
		itemsJSON, finalJSON, string(sess.TaskStatus), sess.TaskError,
		lastUpdate, pricingJSON, sess.Document,
		sess.UpdatedAt.Format(time.RFC3339Nano), sess.ID,
	); err != nil {
		tx.Rollback()
		return err
	}

	// Messages are rewritten wholesale. Conversations are short (turn
	// limited) so this stays cheap and keeps save logic uniform.
	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, sess.ID); err != nil {
		tx.Rollback()
		return err
	}
	for _, msg := range sess.Messages {
		ts := msg.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := tx.Exec(
			`INSERT INTO messages (session_id, role, content, timestamp) VALUES (?, ?, ?, ?)`,
			sess.ID, msg.Role, msg.Content, ts.Format(time.RFC3339Nano),
		); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) loadMessages(sessionID string) []domain.Message {
	rows, err := s.db.sql.Query(
		`SELECT role, content, timestamp FROM messages WHERE session_id = ? ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var msg domain.Message
		var ts string
		if err := rows.Scan(&msg.Role, &msg.Content, &ts); err != nil {
			continue
		}
		msg.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		msgs = append(msgs, msg)
	}
	return msgs
}

func marshalOr(v any, fallback string) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(data)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
