// Package store owns conversation and feedback persistence on SQLite.
// Appends are serialized per session so overlapping requests on the same
// session cannot interleave history.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/svaidyan/arthamitra/internal/logger"
)

var (
	// ErrSessionNotFound is returned by Get for an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidRating is returned when a feedback rating is not 0 or 1.
	ErrInvalidRating = errors.New("rating must be 0 (negative) or 1 (positive)")
)

// Turn is one message within a session. Immutable once written.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Question  string    `json:"question,omitempty"`
	RLUsed    bool      `json:"rl_used"`
	Augmented bool      `json:"augmented"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a persisted conversation with its turns.
type Session struct {
	ID           string    `json:"session_id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	Turns        []Turn    `json:"turns,omitempty"`
}

// Summary is the listing view of a session.
type Summary struct {
	ID           string    `json:"session_id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	TurnCount    int       `json:"turn_count"`
}

// Store is the SQLite-backed session store and feedback recorder.
type Store struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	last_activity DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL CHECK(role IN ('user', 'assistant')),
	content TEXT NOT NULL,
	question TEXT,
	rl_used INTEGER NOT NULL DEFAULT 0,
	augmented INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS feedback (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	rating INTEGER NOT NULL CHECK(rating IN (0, 1)),
	session_id TEXT,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, id);
CREATE INDEX IF NOT EXISTS idx_sessions_activity ON sessions(last_activity DESC);
CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback(created_at DESC);
`

// Open opens (creating if needed) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_busy_timeout=10000&_fk=1")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	logger.L.Info("session store ready", "path", path)
	return &Store{db: db, locks: make(map[string]*sync.Mutex)}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// sessionLock returns the append mutex for a session id.
func (s *Store) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

// Create provisions a session with the given id and title. Creating an id
// that already exists is a no-op.
func (s *Store) Create(ctx context.Context, sessionID, title string) error {
	if len(title) > 50 {
		title = title[:50]
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, title, created_at, last_activity)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		sessionID, title, now, now)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Append writes turns to a session in order. An unknown session id is created
// implicitly: clients may mint ids locally before the first exchange
// completes. Appends for the same session are serialized.
func (s *Store) Append(ctx context.Context, sessionID string, turns ...Turn) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, title, created_at, last_activity)
		VALUES (?, 'New Chat', ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		sessionID, now, now); err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}

	for _, turn := range turns {
		createdAt := turn.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO turns (session_id, role, content, question, rl_used, augmented, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sessionID, turn.Role, turn.Content, turn.Question,
			boolToInt(turn.RLUsed), boolToInt(turn.Augmented), createdAt); err != nil {
			return fmt.Errorf("append turn: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET last_activity = ? WHERE id = ?`, now, sessionID); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	return tx.Commit()
}

// Get returns a session with all its turns, or ErrSessionNotFound.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, created_at, last_activity FROM sessions WHERE id = ?`,
		sessionID).Scan(&session.ID, &session.Title, &session.CreatedAt, &session.LastActivity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, COALESCE(question, ''), rl_used, augmented, created_at
		FROM turns WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var turn Turn
		var rlUsed, augmented int
		if err := rows.Scan(&turn.Role, &turn.Content, &turn.Question, &rlUsed, &augmented, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.RLUsed = rlUsed != 0
		turn.Augmented = augmented != 0
		session.Turns = append(session.Turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	return &session, nil
}

// ListAll returns session summaries ordered by most recent activity.
func (s *Store) ListAll(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.title, s.created_at, s.last_activity, COUNT(t.id)
		FROM sessions s LEFT JOIN turns t ON t.session_id = s.id
		GROUP BY s.id
		ORDER BY s.last_activity DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0)
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.CreatedAt, &sum.LastActivity, &sum.TurnCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// Delete removes a session and all its turns atomically. Deleting an absent
// session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete turns: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
