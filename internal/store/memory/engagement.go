package memory

import (
	"context"
	"sort"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/store"
)

func (s *Store) MarkAttended(_ context.Context, a models.Attendance) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[a.EventID]; !ok {
		return false, store.ErrNotFound
	}
	m, ok := s.attendance[a.EventID]
	if !ok {
		m = make(map[string]models.Attendance)
		s.attendance[a.EventID] = m
	}
	if _, ok := m[a.UserID]; ok {
		return false, nil
	}
	m[a.UserID] = a
	return true, nil
}

func (s *Store) ListAttendance(_ context.Context, eventID string) ([]models.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Attendance{}
	for _, a := range s.attendance[eventID] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarkedAt.Before(out[j].MarkedAt) })
	return out, nil
}

func (s *Store) CountAttendance(_ context.Context, eventID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attendance[eventID]), nil
}

func (s *Store) UpsertFeedback(_ context.Context, f *models.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[f.EventID]; !ok {
		return store.ErrNotFound
	}
	m, ok := s.feedback[f.EventID]
	if !ok {
		m = make(map[string]*models.Feedback)
		s.feedback[f.EventID] = m
	}
	if prev, ok := m[f.UserID]; ok {
		f.ID = prev.ID
		f.CreatedAt = prev.CreatedAt
	}
	c := *f
	m[f.UserID] = &c
	return nil
}

func (s *Store) FeedbackSummary(_ context.Context, eventID string) (models.FeedbackSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum models.FeedbackSummary
	total := 0
	for _, f := range s.feedback[eventID] {
		sum.Count++
		total += f.Rating
	}
	if sum.Count > 0 {
		sum.AverageRating = float64(total) / float64(sum.Count)
	}
	return sum, nil
}

func (s *Store) CreatePoll(_ context.Context, p *models.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[p.EventID]; !ok {
		return store.ErrNotFound
	}
	c := *p
	c.Options = append([]string(nil), p.Options...)
	s.polls[p.ID] = &c
	return nil
}

func (s *Store) GetPoll(_ context.Context, id string) (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *p
	c.Options = append([]string(nil), p.Options...)
	return &c, nil
}

func (s *Store) ListPolls(_ context.Context, eventID string) ([]models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Poll{}
	for _, p := range s.polls {
		if p.EventID == eventID {
			c := *p
			c.Options = append([]string(nil), p.Options...)
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ClosePoll(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Closed = true
	return nil
}

func (s *Store) AnswerPoll(_ context.Context, a models.PollAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.polls[a.PollID]; !ok {
		return store.ErrNotFound
	}
	m, ok := s.answers[a.PollID]
	if !ok {
		m = make(map[string]models.PollAnswer)
		s.answers[a.PollID] = m
	}
	m[a.UserID] = a
	return nil
}

func (s *Store) PollCounts(_ context.Context, pollID string, options int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make([]int, options)
	for _, a := range s.answers[pollID] {
		if a.Option >= 0 && a.Option < options {
			counts[a.Option]++
		}
	}
	return counts, nil
}
