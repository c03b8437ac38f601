package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flowchartsman/retry"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/store"
)

const eventColumns = `id, event_code, organizer_id, title, description, event_date, event_time,
	venue, event_type, area, image, mp4_video, m4_audio, access_type, organizer_pin, attendee_pin,
	capacity, registered_count, attending_count, budget, tasks, collaborators, access_permissions,
	status, version, created_at, updated_at`

type eventChildren struct {
	budget, tasks, collaborators, permissions []byte
}

func marshalChildren(e *models.Event) (eventChildren, error) {
	var (
		c   eventChildren
		err error
	)
	e.Normalize()
	if c.budget, err = json.Marshal(e.Budget); err != nil {
		return c, fmt.Errorf("marshal budget: %w", err)
	}
	if c.tasks, err = json.Marshal(e.Tasks); err != nil {
		return c, fmt.Errorf("marshal tasks: %w", err)
	}
	if c.collaborators, err = json.Marshal(e.Collaborators); err != nil {
		return c, fmt.Errorf("marshal collaborators: %w", err)
	}
	if c.permissions, err = json.Marshal(e.AccessPermissions); err != nil {
		return c, fmt.Errorf("marshal permissions: %w", err)
	}
	return c, nil
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var (
		e              models.Event
		c              eventChildren
		access, status string
	)
	err := row.Scan(&e.ID, &e.Code, &e.OrganizerID, &e.Title, &e.Description, &e.Date, &e.Time,
		&e.Venue, &e.EventType, &e.Area, &e.Image, &e.MP4Video, &e.M4Audio, &access, &e.OrganizerPIN, &e.AttendeePIN,
		&e.Capacity, &e.RegisteredCount, &e.AttendingCount, &c.budget, &c.tasks, &c.collaborators, &c.permissions,
		&status, &e.Version, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.AccessType = models.AccessType(access)
	e.Status = models.EventStatus(status)
	if err := json.Unmarshal(c.budget, &e.Budget); err != nil {
		return nil, fmt.Errorf("unmarshal budget: %w", err)
	}
	if err := json.Unmarshal(c.tasks, &e.Tasks); err != nil {
		return nil, fmt.Errorf("unmarshal tasks: %w", err)
	}
	if err := json.Unmarshal(c.collaborators, &e.Collaborators); err != nil {
		return nil, fmt.Errorf("unmarshal collaborators: %w", err)
	}
	if err := json.Unmarshal(c.permissions, &e.AccessPermissions); err != nil {
		return nil, fmt.Errorf("unmarshal permissions: %w", err)
	}
	e.Normalize()
	return &e, nil
}

// CreateEvent inserts a new aggregate with version 1.
func (s *Store) CreateEvent(ctx context.Context, e *models.Event) error {
	c, err := marshalChildren(e)
	if err != nil {
		return err
	}
	const q = `INSERT INTO events (id, event_code, organizer_id, title, description, event_date, event_time,
		venue, event_type, area, image, mp4_video, m4_audio, access_type, organizer_pin, attendee_pin,
		capacity, budget, tasks, collaborators, access_permissions, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $23)
		RETURNING version`
	err = s.pool.QueryRow(ctx, q, e.ID, e.Code, e.OrganizerID, e.Title, e.Description, e.Date, e.Time,
		e.Venue, e.EventType, e.Area, e.Image, e.MP4Video, e.M4Audio, string(e.AccessType), e.OrganizerPIN, e.AttendeePIN,
		e.Capacity, c.budget, c.tasks, c.collaborators, c.permissions, string(e.Status), e.CreatedAt).Scan(&e.Version)
	if isUniqueViolation(err, "events_event_code_key") {
		return store.ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// EventCodeExists reports whether code is already assigned.
func (s *Store) EventCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE event_code = $1)`, code).Scan(&exists)
	return exists, err
}

// GetEvent returns the aggregate by id.
func (s *Store) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// GetEventByCode returns the aggregate by its exact event code.
func (s *Store) GetEventByCode(ctx context.Context, code string) (*models.Event, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE event_code = $1`, code))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// ListEvents pages events ordered by date.
func (s *Store) ListEvents(ctx context.Context, f store.EventFilter) ([]models.Event, int, error) {
	const where = ` WHERE ($1::text = '' OR status = $1) AND ($2::text = '' OR organizer_id = $2)
		AND ($3::text = '' OR area = $3) AND ($4::text = '' OR event_type = $4)`
	args := []any{string(f.Status), f.OrganizerID, f.Area, f.EventType}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	rows, err := s.pool.Query(ctx, `SELECT `+eventColumns+` FROM events`+where+
		` ORDER BY event_date, created_at OFFSET $5 LIMIT $6`, append(args, f.Offset, limitArg(f.Limit))...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	list := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *e)
	}
	return list, total, rows.Err()
}

// MutateEvent is an optimistic read-modify-write on the aggregate. fn runs
// on an unlocked read; the write then takes the event row lock, the same one
// registration writes hold, checks the version and compares the new capacity
// with the active registrations counted under that lock. A version mismatch
// re-reads and re-applies fn; any other failure stops immediately.
func (s *Store) MutateEvent(ctx context.Context, id string, fn func(*models.Event) error) (*models.Event, error) {
	var (
		out   *models.Event
		fatal error
	)
	retrier := retry.NewRetrier(s.mutateTries, s.mutateDelay, 10*s.mutateDelay)
	err := retrier.Run(func() error {
		cur, err := s.GetEvent(ctx, id)
		if err != nil {
			fatal = err
			return nil
		}
		next := cur.Clone()
		if err := fn(next); err != nil {
			fatal = err
			return nil
		}
		next.ID, next.Code, next.OrganizerID = cur.ID, cur.Code, cur.OrganizerID
		next.RegisteredCount, next.AttendingCount = cur.RegisteredCount, cur.AttendingCount
		err = s.writeEvent(ctx, cur.Version, next)
		if errors.Is(err, store.ErrVersionConflict) {
			return err
		}
		if err != nil {
			fatal = err
			return nil
		}
		out = next
		return nil
	})
	if fatal != nil {
		return nil, fatal
	}
	if err != nil {
		s.logger.Warn("event update gave up after version conflicts", zap.String("event_id", id))
		return nil, store.ErrVersionConflict
	}
	return out, nil
}

// writeEvent stores next if the row is still at version.
func (s *Store) writeEvent(ctx context.Context, version int64, next *models.Event) error {
	c, err := marshalChildren(next)
	if err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked int64
	err = tx.QueryRow(ctx, `SELECT version FROM events WHERE id = $1 FOR UPDATE`, next.ID).Scan(&locked)
	if err != nil {
		return notFound(err)
	}
	if locked != version {
		return store.ErrVersionConflict
	}
	var active int
	err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status = 'registered'`, next.ID).
		Scan(&active)
	if err != nil {
		return fmt.Errorf("count registrations: %w", err)
	}
	if next.Capacity < active {
		return store.ErrCapacityTooLow
	}

	const q = `UPDATE events SET title = $3, description = $4, event_date = $5, event_time = $6, venue = $7,
		event_type = $8, area = $9, image = $10, mp4_video = $11, m4_audio = $12, access_type = $13,
		capacity = $14, budget = $15, tasks = $16, collaborators = $17, access_permissions = $18, status = $19,
		version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at`
	err = tx.QueryRow(ctx, q, next.ID, version, next.Title, next.Description, next.Date, next.Time, next.Venue,
		next.EventType, next.Area, next.Image, next.MP4Video, next.M4Audio, string(next.AccessType),
		next.Capacity, c.budget, c.tasks, c.collaborators, c.permissions, string(next.Status)).
		Scan(&next.Version, &next.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteEvent removes the row; children cascade through foreign keys.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetAttendingCount overwrites the attending cache.
func (s *Store) SetAttendingCount(ctx context.Context, id string, n int) error {
	tag, err := s.pool.Exec(ctx, `UPDATE events SET attending_count = $2 WHERE id = $1`, id, n)
	if err != nil {
		return fmt.Errorf("set attending count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
