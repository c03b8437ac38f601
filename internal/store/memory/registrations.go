package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/store"
)

// activeCount must be called with s.mu held.
func (s *Store) activeCount(eventID string) int {
	n := 0
	for _, r := range s.regs {
		if r.EventID == eventID && r.Status == models.RegistrationRegistered {
			n++
		}
	}
	return n
}

func (s *Store) Register(_ context.Context, p store.RegisterParams) (*store.RegisterResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[p.EventID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cached := e.RegisteredCount
	active := s.activeCount(p.EventID)
	if active >= e.Capacity {
		e.RegisteredCount = active
		return nil, store.ErrCapacityExceeded
	}

	res := &store.RegisterResult{}
	if id, ok := s.byPair[pairKey{p.EventID, p.UserID}]; ok {
		r := s.regs[id]
		if r.Status == models.RegistrationRegistered {
			e.RegisteredCount = active
			return nil, store.ErrAlreadyRegistered
		}
		r.Status = models.RegistrationRegistered
		r.UsedPIN = p.UsedPIN
		r.RegisteredAt = p.Now
		r.UpdatedAt = p.Now
		res.Registration = cloneReg(r)
		res.Reactivated = true
	} else {
		r := &models.Registration{
			ID:           uuid.New().String(),
			EventID:      p.EventID,
			UserID:       p.UserID,
			Status:       models.RegistrationRegistered,
			UsedPIN:      p.UsedPIN,
			RegisteredAt: p.Now,
			CreatedAt:    p.Now,
			UpdatedAt:    p.Now,
		}
		s.regs[r.ID] = r
		s.byPair[pairKey{p.EventID, p.UserID}] = r.ID
		res.Registration = cloneReg(r)
	}
	e.RegisteredCount = active + 1
	res.Count = store.CountChange{Cached: cached, Actual: active, After: active + 1}
	return res, nil
}

func (s *Store) GetRegistration(_ context.Context, id string) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneReg(r), nil
}

func (s *Store) FindRegistration(_ context.Context, eventID, userID string) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPair[pairKey{eventID, userID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneReg(s.regs[id]), nil
}

func (s *Store) CancelRegistration(_ context.Context, id string, now time.Time) (*store.CancelResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regs[id]
	if !ok || r.Status != models.RegistrationRegistered {
		return nil, store.ErrNotFound
	}
	e, ok := s.events[r.EventID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cached := e.RegisteredCount
	active := s.activeCount(r.EventID)
	r.Status = models.RegistrationCancelled
	r.UpdatedAt = now
	e.RegisteredCount = active - 1
	return &store.CancelResult{
		Registration: cloneReg(r),
		Count:        store.CountChange{Cached: cached, Actual: active, After: active - 1},
	}, nil
}

func (s *Store) ListUserRegistrations(_ context.Context, userID string, status models.RegistrationStatus, offset, limit int) ([]models.UserRegistration, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UserRegistration
	for _, r := range s.regs {
		if r.UserID != userID || (status != "" && r.Status != status) {
			continue
		}
		e, ok := s.events[r.EventID]
		if !ok {
			continue
		}
		out = append(out, models.UserRegistration{Registration: *r, Event: e.Summary()})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RegisteredAt.After(out[j].RegisteredAt)
	})
	return page(out, offset, limit), len(out), nil
}

func (s *Store) ListEventRegistrations(_ context.Context, eventID string, status models.RegistrationStatus) ([]models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Registration{}
	for _, r := range s.regs {
		if r.EventID == eventID && (status == "" || r.Status == status) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})
	return out, nil
}

func (s *Store) CountRegistrations(_ context.Context, eventID string, status models.RegistrationStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.regs {
		if r.EventID == eventID && (status == "" || r.Status == status) {
			n++
		}
	}
	return n, nil
}

func (s *Store) ReconcileRegisteredCount(_ context.Context, eventID string) (store.CountChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return store.CountChange{}, store.ErrNotFound
	}
	active := s.activeCount(eventID)
	c := store.CountChange{Cached: e.RegisteredCount, Actual: active, After: active}
	e.RegisteredCount = active
	return c, nil
}

func cloneReg(r *models.Registration) *models.Registration {
	c := *r
	return &c
}
