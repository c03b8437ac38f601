package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/store"
)

const registrationColumns = `id, event_id, user_id, status, used_pin, registered_at, created_at, updated_at`

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var (
		r      models.Registration
		status string
	)
	if err := row.Scan(&r.ID, &r.EventID, &r.UserID, &status, &r.UsedPIN, &r.RegisteredAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = models.RegistrationStatus(status)
	return &r, nil
}

// lockedEvent is the event row state visible inside a registration transaction.
type lockedEvent struct {
	capacity int
	cached   int
	active   int
}

// withEventLock runs fn in a transaction that holds the event row lock and
// has already counted the active registrations. fn returns the counter value
// to persist; it is written even when fn also returns an error so that a
// drifted cache is repaired on rejected attempts too.
func (s *Store) withEventLock(ctx context.Context, eventID string, fn func(tx pgx.Tx, ev lockedEvent) (int, error)) (lockedEvent, error) {
	var ev lockedEvent
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ev, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `SELECT capacity, registered_count FROM events WHERE id = $1 FOR UPDATE`, eventID).
		Scan(&ev.capacity, &ev.cached)
	if err != nil {
		return ev, notFound(err)
	}
	err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status = 'registered'`, eventID).
		Scan(&ev.active)
	if err != nil {
		return ev, fmt.Errorf("count registrations: %w", err)
	}

	count, fnErr := fn(tx, ev)
	if fnErr != nil && !errors.Is(fnErr, store.ErrCapacityExceeded) && !errors.Is(fnErr, store.ErrAlreadyRegistered) {
		return ev, fnErr
	}
	if _, err := tx.Exec(ctx, `UPDATE events SET registered_count = $2 WHERE id = $1`, eventID, count); err != nil {
		return ev, fmt.Errorf("write registered_count: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return ev, fmt.Errorf("commit: %w", err)
	}
	return ev, fnErr
}

// Register admits a user under the event row lock.
func (s *Store) Register(ctx context.Context, p store.RegisterParams) (*store.RegisterResult, error) {
	res := &store.RegisterResult{}
	ev, err := s.withEventLock(ctx, p.EventID, func(tx pgx.Tx, ev lockedEvent) (int, error) {
		if ev.active >= ev.capacity {
			return ev.active, store.ErrCapacityExceeded
		}
		existing, err := scanRegistration(tx.QueryRow(ctx,
			`SELECT `+registrationColumns+` FROM registrations WHERE event_id = $1 AND user_id = $2`, p.EventID, p.UserID))
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			const q = `INSERT INTO registrations (id, event_id, user_id, status, used_pin, registered_at, created_at, updated_at)
				VALUES ($1, $2, $3, 'registered', $4, $5, $5, $5)
				RETURNING ` + registrationColumns
			res.Registration, err = scanRegistration(tx.QueryRow(ctx, q, uuid.New().String(), p.EventID, p.UserID, p.UsedPIN, p.Now))
			if err != nil {
				return ev.active, fmt.Errorf("insert registration: %w", err)
			}
		case err != nil:
			return ev.active, fmt.Errorf("load registration: %w", err)
		case existing.Status == models.RegistrationRegistered:
			return ev.active, store.ErrAlreadyRegistered
		default:
			const q = `UPDATE registrations SET status = 'registered', used_pin = $2, registered_at = $3, updated_at = $3
				WHERE id = $1
				RETURNING ` + registrationColumns
			res.Registration, err = scanRegistration(tx.QueryRow(ctx, q, existing.ID, p.UsedPIN, p.Now))
			if err != nil {
				return ev.active, fmt.Errorf("reactivate registration: %w", err)
			}
			res.Reactivated = true
		}
		return ev.active + 1, nil
	})
	if err != nil {
		return nil, err
	}
	res.Count = store.CountChange{Cached: ev.cached, Actual: ev.active, After: ev.active + 1}
	return res, nil
}

// GetRegistration returns a registration by id.
func (s *Store) GetRegistration(ctx context.Context, id string) (*models.Registration, error) {
	r, err := scanRegistration(s.pool.QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

// FindRegistration returns the registration for an (event, user) pair.
func (s *Store) FindRegistration(ctx context.Context, eventID, userID string) (*models.Registration, error) {
	r, err := scanRegistration(s.pool.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE event_id = $1 AND user_id = $2`, eventID, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

// CancelRegistration flips an active registration to cancelled.
func (s *Store) CancelRegistration(ctx context.Context, id string, now time.Time) (*store.CancelResult, error) {
	var eventID string
	if err := s.pool.QueryRow(ctx, `SELECT event_id FROM registrations WHERE id = $1`, id).Scan(&eventID); err != nil {
		return nil, notFound(err)
	}
	res := &store.CancelResult{}
	ev, err := s.withEventLock(ctx, eventID, func(tx pgx.Tx, ev lockedEvent) (int, error) {
		const q = `UPDATE registrations SET status = 'cancelled', updated_at = $2
			WHERE id = $1 AND status = 'registered'
			RETURNING ` + registrationColumns
		r, err := scanRegistration(tx.QueryRow(ctx, q, id, now))
		if err != nil {
			return ev.active, notFound(err)
		}
		res.Registration = r
		return ev.active - 1, nil
	})
	if err != nil {
		return nil, err
	}
	res.Count = store.CountChange{Cached: ev.cached, Actual: ev.active, After: ev.active - 1}
	return res, nil
}

// ListUserRegistrations joins registrations with their events; the inner
// join drops registrations whose event no longer exists.
func (s *Store) ListUserRegistrations(ctx context.Context, userID string, status models.RegistrationStatus, offset, limit int) ([]models.UserRegistration, int, error) {
	const where = ` FROM registrations r JOIN events e ON e.id = r.event_id
		WHERE r.user_id = $1 AND ($2::text = '' OR r.status = $2)`

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*)`+where, userID, string(status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count user registrations: %w", err)
	}
	rows, err := s.pool.Query(ctx, `SELECT r.id, r.event_id, r.user_id, r.status, r.used_pin, r.registered_at, r.created_at, r.updated_at,
		e.event_code, e.title, e.event_date, e.event_time, e.venue, e.event_type, e.area, e.image, e.access_type, e.status`+
		where+` ORDER BY r.registered_at DESC OFFSET $3 LIMIT $4`, userID, string(status), offset, limitArg(limit))
	if err != nil {
		return nil, 0, fmt.Errorf("list user registrations: %w", err)
	}
	defer rows.Close()
	list := []models.UserRegistration{}
	for rows.Next() {
		var ur models.UserRegistration
		var regStatus, access, eventStatus string
		err := rows.Scan(&ur.ID, &ur.EventID, &ur.UserID, &regStatus, &ur.UsedPIN, &ur.RegisteredAt, &ur.CreatedAt, &ur.UpdatedAt,
			&ur.Event.Code, &ur.Event.Title, &ur.Event.Date, &ur.Event.Time, &ur.Event.Venue, &ur.Event.EventType,
			&ur.Event.Area, &ur.Event.Image, &access, &eventStatus)
		if err != nil {
			return nil, 0, err
		}
		ur.Status = models.RegistrationStatus(regStatus)
		ur.Event.ID = ur.EventID
		ur.Event.AccessType = models.AccessType(access)
		ur.Event.Status = models.EventStatus(eventStatus)
		list = append(list, ur)
	}
	return list, total, rows.Err()
}

// ListEventRegistrations returns an event's registrations, oldest first.
func (s *Store) ListEventRegistrations(ctx context.Context, eventID string, status models.RegistrationStatus) ([]models.Registration, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+registrationColumns+` FROM registrations
		WHERE event_id = $1 AND ($2::text = '' OR status = $2) ORDER BY registered_at`, eventID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list event registrations: %w", err)
	}
	defer rows.Close()
	list := []models.Registration{}
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *r)
	}
	return list, rows.Err()
}

// CountRegistrations counts an event's registrations with status (all if empty).
func (s *Store) CountRegistrations(ctx context.Context, eventID string, status models.RegistrationStatus) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND ($2::text = '' OR status = $2)`,
		eventID, string(status)).Scan(&n)
	return n, err
}

// ReconcileRegisteredCount rewrites registered_count from the registration rows.
func (s *Store) ReconcileRegisteredCount(ctx context.Context, eventID string) (store.CountChange, error) {
	ev, err := s.withEventLock(ctx, eventID, func(_ pgx.Tx, ev lockedEvent) (int, error) {
		return ev.active, nil
	})
	if err != nil {
		return store.CountChange{}, err
	}
	return store.CountChange{Cached: ev.cached, Actual: ev.active, After: ev.active}, nil
}
