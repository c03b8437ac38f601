package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-events/backend/internal/apperr"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/registrations"
	"github.com/aura-events/backend/internal/store"
	"github.com/aura-events/backend/internal/store/memory"
)

func TestSubmitAndSummarize(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.CreateEvent(ctx, &models.Event{
		ID: "e1", Code: "FEEDBK", OrganizerID: "org", Capacity: 5, AccessType: models.AccessOpen, Status: models.EventCompleted,
	}))
	ledger := registrations.NewService(st, registrations.Paging{}, nil)
	org := models.Caller{UserID: "org", Role: models.RoleOrganizer}
	a := models.Caller{UserID: "a", Role: models.RoleAttendee}
	b := models.Caller{UserID: "b", Role: models.RoleAttendee}
	for _, c := range []models.Caller{a, b} {
		_, err := st.Register(ctx, storeParams("e1", c.UserID))
		require.NoError(t, err)
	}
	svc := NewService(st, ledger, nil)

	_, err := svc.Submit(ctx, a, "e1", Input{Rating: 6})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.Submit(ctx, a, "e1", Input{Rating: 0})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.Submit(ctx, models.Caller{UserID: "x"}, "e1", Input{Rating: 3})
	assert.Equal(t, apperr.CodeNotRegistered, apperr.CodeOf(err))

	first, err := svc.Submit(ctx, a, "e1", Input{Rating: 2, Comment: " meh "})
	require.NoError(t, err)
	assert.Equal(t, "meh", first.Comment)
	_, err = svc.Submit(ctx, a, "e1", Input{Rating: 4})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, b, "e1", Input{Rating: 5})
	require.NoError(t, err)

	sum, err := svc.Summary(ctx, org, "e1")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count)
	assert.InDelta(t, 4.5, sum.AverageRating, 0.001)

	_, err = svc.Summary(ctx, a, "e1")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func storeParams(eventID, userID string) store.RegisterParams {
	return store.RegisterParams{EventID: eventID, UserID: userID, Now: time.Now()}
}
