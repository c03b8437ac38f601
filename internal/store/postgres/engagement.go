package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/store"
)

// MarkAttended inserts an attendance record; a repeat mark is a no-op.
func (s *Store) MarkAttended(ctx context.Context, a models.Attendance) (bool, error) {
	tag, err := s.pool.Exec(ctx, `INSERT INTO attendance (event_id, user_id, marked_by, marked_at)
		VALUES ($1, $2, $3, $4) ON CONFLICT (event_id, user_id) DO NOTHING`, a.EventID, a.UserID, a.MarkedBy, a.MarkedAt)
	if isForeignKeyViolation(err) {
		return false, store.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("insert attendance: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListAttendance returns attendance records in marking order.
func (s *Store) ListAttendance(ctx context.Context, eventID string) ([]models.Attendance, error) {
	rows, err := s.pool.Query(ctx, `SELECT event_id, user_id, marked_by, marked_at FROM attendance
		WHERE event_id = $1 ORDER BY marked_at`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()
	list := []models.Attendance{}
	for rows.Next() {
		var a models.Attendance
		if err := rows.Scan(&a.EventID, &a.UserID, &a.MarkedBy, &a.MarkedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// CountAttendance counts attendance records for an event.
func (s *Store) CountAttendance(ctx context.Context, eventID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM attendance WHERE event_id = $1`, eventID).Scan(&n)
	return n, err
}

// UpsertFeedback stores the user's feedback, replacing an earlier entry.
func (s *Store) UpsertFeedback(ctx context.Context, f *models.Feedback) error {
	const q = `INSERT INTO feedback (id, event_id, user_id, rating, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (event_id, user_id) DO UPDATE SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at`
	err := s.pool.QueryRow(ctx, q, f.ID, f.EventID, f.UserID, f.Rating, f.Comment, f.UpdatedAt).
		Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if isForeignKeyViolation(err) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("upsert feedback: %w", err)
	}
	return nil
}

// FeedbackSummary returns count and average rating.
func (s *Store) FeedbackSummary(ctx context.Context, eventID string) (models.FeedbackSummary, error) {
	var sum models.FeedbackSummary
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(AVG(rating), 0)::float8 FROM feedback WHERE event_id = $1`, eventID).
		Scan(&sum.Count, &sum.AverageRating)
	return sum, err
}

// CreatePoll inserts a poll.
func (s *Store) CreatePoll(ctx context.Context, p *models.Poll) error {
	options, err := json.Marshal(p.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO polls (id, event_id, question, options, closed, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, p.ID, p.EventID, p.Question, options, p.Closed, p.CreatedBy, p.CreatedAt)
	if isForeignKeyViolation(err) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert poll: %w", err)
	}
	return nil
}

const pollColumns = `id, event_id, question, options, closed, created_by, created_at`

func scanPoll(row pgx.Row) (*models.Poll, error) {
	var (
		p       models.Poll
		options []byte
	)
	if err := row.Scan(&p.ID, &p.EventID, &p.Question, &options, &p.Closed, &p.CreatedBy, &p.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(options, &p.Options); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	return &p, nil
}

// GetPoll returns a poll by id.
func (s *Store) GetPoll(ctx context.Context, id string) (*models.Poll, error) {
	p, err := scanPoll(s.pool.QueryRow(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// ListPolls returns an event's polls in creation order.
func (s *Store) ListPolls(ctx context.Context, eventID string) ([]models.Poll, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pollColumns+` FROM polls WHERE event_id = $1 ORDER BY created_at`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	defer rows.Close()
	list := []models.Poll{}
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// ClosePoll marks a poll closed.
func (s *Store) ClosePoll(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE polls SET closed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("close poll: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AnswerPoll records a user's answer. One per user per poll.
func (s *Store) AnswerPoll(ctx context.Context, a models.PollAnswer) error {
	const q = `INSERT INTO poll_answers (poll_id, user_id, option_index, answered_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (poll_id, user_id) DO UPDATE SET option_index = EXCLUDED.option_index, answered_at = EXCLUDED.answered_at`
	_, err := s.pool.Exec(ctx, q, a.PollID, a.UserID, a.Option, a.AnsweredAt)
	if isForeignKeyViolation(err) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("answer poll: %w", err)
	}
	return nil
}

// PollCounts returns the number of answers per option.
func (s *Store) PollCounts(ctx context.Context, pollID string, options int) ([]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT option_index, COUNT(*) FROM poll_answers WHERE poll_id = $1 GROUP BY option_index`, pollID)
	if err != nil {
		return nil, fmt.Errorf("poll counts: %w", err)
	}
	defer rows.Close()
	counts := make([]int, options)
	for rows.Next() {
		var idx, n int
		if err := rows.Scan(&idx, &n); err != nil {
			return nil, err
		}
		if idx >= 0 && idx < options {
			counts[idx] = n
		}
	}
	return counts, rows.Err()
}
