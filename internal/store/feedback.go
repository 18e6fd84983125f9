package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// FeedbackRecord is one user rating of a question/answer pair. The texts are
// copied, not referenced: deleting a session never invalidates feedback.
type FeedbackRecord struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Rating    int       `json:"rating"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordFeedback appends one feedback record and returns its id. Ratings
// other than 0 and 1 fail with ErrInvalidRating. Records are append-only.
func (s *Store) RecordFeedback(ctx context.Context, question, answer string, rating int, sessionID string) (int64, error) {
	if rating != 0 && rating != 1 {
		return 0, ErrInvalidRating
	}

	sid := sql.NullString{String: sessionID, Valid: sessionID != ""}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (question, answer, rating, session_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		question, answer, rating, sid, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("record feedback: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("feedback id: %w", err)
	}
	return id, nil
}

// ListFeedback returns feedback records, newest first. limit <= 0 returns all.
func (s *Store) ListFeedback(ctx context.Context, limit int) ([]FeedbackRecord, error) {
	query := `SELECT id, question, answer, rating, COALESCE(session_id, ''), created_at
		FROM feedback ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	records := make([]FeedbackRecord, 0)
	for rows.Next() {
		var r FeedbackRecord
		if err := rows.Scan(&r.ID, &r.Question, &r.Answer, &r.Rating, &r.SessionID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
