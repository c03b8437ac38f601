package memory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/store"
	"github.com/aura-events/backend/internal/store/memory"
)

func seed(t *testing.T, st *memory.Store, code string, capacity int) *models.Event {
	t.Helper()
	e := &models.Event{
		Code:        code,
		OrganizerID: "org",
		Title:       "Meetup " + code,
		Date:        time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
		Capacity:    capacity,
		Status:      models.EventUpcoming,
	}
	require.NoError(t, st.CreateEvent(context.Background(), e))
	return e
}

func reg(eventID, userID string) store.RegisterParams {
	return store.RegisterParams{EventID: eventID, UserID: userID, Now: time.Now().UTC()}
}

func TestCreateEventRejectsTakenCode(t *testing.T) {
	st := memory.New()
	seed(t, st, "ABC123", 5)

	err := st.CreateEvent(context.Background(), &models.Event{Code: "ABC123", Capacity: 5})
	assert.ErrorIs(t, err, store.ErrCodeTaken)

	ok, err := st.EventCodeExists(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMutateEventKeepsLedgerFields(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	e := seed(t, st, "MUT001", 5)
	_, err := st.Register(ctx, reg(e.ID, "u1"))
	require.NoError(t, err)

	out, err := st.MutateEvent(ctx, e.ID, func(ev *models.Event) error {
		ev.Title = "Renamed"
		ev.RegisteredCount = 99
		ev.OrganizerID = "someone-else"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", out.Title)
	assert.Equal(t, 1, out.RegisteredCount)
	assert.Equal(t, "org", out.OrganizerID)
	assert.Equal(t, int64(2), out.Version)

	boom := errors.New("boom")
	_, err = st.MutateEvent(ctx, e.ID, func(ev *models.Event) error {
		ev.Title = "lost"
		return boom
	})
	assert.ErrorIs(t, err, boom)
	got, err := st.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
}

func TestRegisterGuardsCapacityUnderContention(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	e := seed(t, st, "CAP010", 10)

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := st.Register(ctx, reg(e.ID, fmt.Sprintf("user-%d", i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	admitted, full := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			admitted++
		case errors.Is(err, store.ErrCapacityExceeded):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 10, admitted)
	assert.Equal(t, 30, full)

	got, err := st.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.RegisteredCount)
	n, err := st.CountRegistrations(ctx, e.ID, models.RegistrationRegistered)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestCancelAndReactivate(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	e := seed(t, st, "REA001", 1)

	first, err := st.Register(ctx, reg(e.ID, "u1"))
	require.NoError(t, err)
	_, err = st.Register(ctx, reg(e.ID, "u1"))
	assert.ErrorIs(t, err, store.ErrCapacityExceeded)

	c, err := st.CancelRegistration(ctx, first.Registration.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, c.Count.After)
	_, err = st.CancelRegistration(ctx, first.Registration.ID, time.Now())
	assert.ErrorIs(t, err, store.ErrNotFound)

	again, err := st.Register(ctx, reg(e.ID, "u1"))
	require.NoError(t, err)
	assert.True(t, again.Reactivated)
	assert.Equal(t, first.Registration.ID, again.Registration.ID)
	assert.Equal(t, 1, again.Count.After)
}

func TestAlreadyRegistered(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	e := seed(t, st, "DUP001", 5)
	_, err := st.Register(ctx, reg(e.ID, "u1"))
	require.NoError(t, err)
	_, err = st.Register(ctx, reg(e.ID, "u1"))
	assert.ErrorIs(t, err, store.ErrAlreadyRegistered)
}

func TestReconcileRepairsDrift(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	e := seed(t, st, "DRF001", 5)
	_, err := st.Register(ctx, reg(e.ID, "u1"))
	require.NoError(t, err)
	st.OverrideRegisteredCount(e.ID, 4)

	c, err := st.ReconcileRegisteredCount(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, c.Drifted())
	assert.Equal(t, 4, c.Cached)
	assert.Equal(t, 1, c.After)

	c, err = st.ReconcileRegisteredCount(ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, c.Drifted())
}

func TestDeleteEventCascades(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	e := seed(t, st, "DEL001", 5)
	r, err := st.Register(ctx, reg(e.ID, "u1"))
	require.NoError(t, err)
	_, err = st.MarkAttended(ctx, models.Attendance{EventID: e.ID, UserID: "u1", MarkedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, st.CreatePoll(ctx, &models.Poll{ID: "p1", EventID: e.ID, Options: []string{"a", "b"}}))

	require.NoError(t, st.DeleteEvent(ctx, e.ID))

	_, err = st.GetEvent(ctx, e.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetRegistration(ctx, r.Registration.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetPoll(ctx, "p1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	n, err := st.CountAttendance(ctx, e.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	ok, err := st.EventCodeExists(ctx, "DEL001")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngagementRecords(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	e := seed(t, st, "ENG001", 5)

	added, err := st.MarkAttended(ctx, models.Attendance{EventID: e.ID, UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, added)
	added, err = st.MarkAttended(ctx, models.Attendance{EventID: e.ID, UserID: "u1"})
	require.NoError(t, err)
	assert.False(t, added)

	require.NoError(t, st.UpsertFeedback(ctx, &models.Feedback{ID: "f1", EventID: e.ID, UserID: "u1", Rating: 2}))
	f := &models.Feedback{ID: "f2", EventID: e.ID, UserID: "u1", Rating: 4}
	require.NoError(t, st.UpsertFeedback(ctx, f))
	assert.Equal(t, "f1", f.ID)
	require.NoError(t, st.UpsertFeedback(ctx, &models.Feedback{ID: "f3", EventID: e.ID, UserID: "u2", Rating: 5}))
	sum, err := st.FeedbackSummary(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count)
	assert.InDelta(t, 4.5, sum.AverageRating, 0.001)

	require.NoError(t, st.CreatePoll(ctx, &models.Poll{ID: "p1", EventID: e.ID, Options: []string{"a", "b"}}))
	require.NoError(t, st.AnswerPoll(ctx, models.PollAnswer{PollID: "p1", UserID: "u1", Option: 0}))
	require.NoError(t, st.AnswerPoll(ctx, models.PollAnswer{PollID: "p1", UserID: "u1", Option: 1}))
	require.NoError(t, st.AnswerPoll(ctx, models.PollAnswer{PollID: "p1", UserID: "u2", Option: 1}))
	counts, err := st.PollCounts(ctx, "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, counts)
}
