package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions and messages",
		SQL: `
			CREATE TABLE sessions (
				id             TEXT PRIMARY KEY,
				turn_count     INTEGER NOT NULL DEFAULT 0,
				state          TEXT NOT NULL DEFAULT 'awaiting_input',
				done           INTEGER NOT NULL DEFAULT 0,
				requirements   TEXT NOT NULL DEFAULT '',
				items          TEXT NOT NULL DEFAULT '[]',
				final_items    TEXT NOT NULL DEFAULT '[]',
				task_status    TEXT NOT NULL DEFAULT 'idle',
				task_error     TEXT NOT NULL DEFAULT '',
				last_update_at TEXT,
				pricing        TEXT,
				document       TEXT NOT NULL DEFAULT '',
				created_at     TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_sessions_updated ON sessions (updated_at);

			CREATE TABLE messages (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				role        TEXT NOT NULL,
				content     TEXT NOT NULL,
				timestamp   TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_messages_session ON messages (session_id, id);
		`,
	},
}
