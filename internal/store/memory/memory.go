// Package memory is a single-process Store guarded by one mutex. It backs
// the service tests and STORE_BACKEND=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/store"
)

// Store implements store.Store in memory.
type Store struct {
	mu sync.Mutex

	events map[string]*models.Event
	codes  map[string]string

	regs   map[string]*models.Registration
	byPair map[pairKey]string

	attendance map[string]map[string]models.Attendance
	feedback   map[string]map[string]*models.Feedback
	polls      map[string]*models.Poll
	answers    map[string]map[string]models.PollAnswer
}

type pairKey struct{ eventID, userID string }

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		events:     make(map[string]*models.Event),
		codes:      make(map[string]string),
		regs:       make(map[string]*models.Registration),
		byPair:     make(map[pairKey]string),
		attendance: make(map[string]map[string]models.Attendance),
		feedback:   make(map[string]map[string]*models.Feedback),
		polls:      make(map[string]*models.Poll),
		answers:    make(map[string]map[string]models.PollAnswer),
	}
}

func (s *Store) CreateEvent(_ context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[e.Code]; ok {
		return store.ErrCodeTaken
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.Normalize()
	e.Version = 1
	s.events[e.ID] = e.Clone()
	s.codes[e.Code] = e.ID
	return nil
}

func (s *Store) EventCodeExists(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.codes[code]
	return ok, nil
}

func (s *Store) GetEvent(_ context.Context, id string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return e.Clone(), nil
}

func (s *Store) GetEventByCode(_ context.Context, code string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.codes[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.events[id].Clone(), nil
}

func (s *Store) ListEvents(_ context.Context, f store.EventFilter) ([]models.Event, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Event
	for _, e := range s.events {
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.OrganizerID != "" && e.OrganizerID != f.OrganizerID {
			continue
		}
		if f.Area != "" && e.Area != f.Area {
			continue
		}
		if f.EventType != "" && e.EventType != f.EventType {
			continue
		}
		out = append(out, *e.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	total := len(out)
	return page(out, f.Offset, f.Limit), total, nil
}

func (s *Store) MutateEvent(_ context.Context, id string, fn func(*models.Event) error) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if next.Capacity < s.activeCount(id) {
		return nil, store.ErrCapacityTooLow
	}
	next.ID = cur.ID
	next.Code = cur.Code
	next.OrganizerID = cur.OrganizerID
	next.RegisteredCount = cur.RegisteredCount
	next.AttendingCount = cur.AttendingCount
	next.CreatedAt = cur.CreatedAt
	next.Version = cur.Version + 1
	next.UpdatedAt = time.Now().UTC()
	next.Normalize()
	s.events[id] = next
	return next.Clone(), nil
}

func (s *Store) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.codes, e.Code)
	delete(s.events, id)
	for rid, r := range s.regs {
		if r.EventID == id {
			delete(s.byPair, pairKey{r.EventID, r.UserID})
			delete(s.regs, rid)
		}
	}
	delete(s.attendance, id)
	delete(s.feedback, id)
	for pid, p := range s.polls {
		if p.EventID == id {
			delete(s.answers, pid)
			delete(s.polls, pid)
		}
	}
	return nil
}

func (s *Store) SetAttendingCount(_ context.Context, id string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return store.ErrNotFound
	}
	e.AttendingCount = n
	return nil
}

// OverrideRegisteredCount writes the cached counter without touching the
// registration set. Tests use it to simulate drift.
func (s *Store) OverrideRegisteredCount(id string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.events[id]; ok {
		e.RegisteredCount = n
	}
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
