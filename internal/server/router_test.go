package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-events/backend/internal/auth"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/store/memory"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type harness struct {
	t      *testing.T
	router *gin.Engine
	jwt    *auth.JWTService
}

func newHarness(t *testing.T) *harness {
	gin.SetMode(gin.TestMode)
	jwtService := auth.NewJWTService("test-secret", 1)
	deps := Deps{Store: memory.New(), JWT: jwtService, CORS: "http://localhost:3000"}
	return &harness{t: t, router: NewRouter(deps, NewServices(deps)), jwt: jwtService}
}

func (h *harness) do(caller *models.Caller, method, path string, body any) (int, envelope) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		token, err := h.jwt.Generate(*caller)
		require.NoError(h.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func TestHealthIsPublic(t *testing.T) {
	h := newHarness(t)
	code, env := h.do(nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	code, _ = h.do(nil, http.MethodGet, "/events", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestEventLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	org := &models.Caller{UserID: "org", Role: models.RoleOrganizer}
	alice := &models.Caller{UserID: "alice", Role: models.RoleAttendee}
	bob := &models.Caller{UserID: "bob", Role: models.RoleAttendee}

	code, _ := h.do(alice, http.MethodPost, "/events", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env := h.do(org, http.MethodPost, "/events", map[string]any{
		"title": "Workshop", "date": "2026-12-01", "time": "10:00", "venue": "Lab",
		"event_type": "workshop", "area": "North", "access_type": "invite-only", "capacity": 1,
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var ev models.Event
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	require.NotEmpty(t, ev.AttendeePIN)

	code, env = h.do(alice, http.MethodPost, "/events/code/"+ev.Code+"/register", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "PIN_REQUIRED", env.Code)

	code, env = h.do(alice, http.MethodPost, "/events/"+ev.ID+"/register", map[string]string{"pin": "wrong"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "PIN_MISMATCH", env.Code)

	code, env = h.do(alice, http.MethodPost, "/events/"+ev.ID+"/register", map[string]string{"pin": ev.AttendeePIN})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var out struct {
		Registration models.Registration `json:"registration"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))

	code, env = h.do(bob, http.MethodPost, "/events/"+ev.ID+"/register", map[string]string{"pin": ev.AttendeePIN})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CAPACITY_EXCEEDED", env.Code)

	code, env = h.do(alice, http.MethodGet, "/events/"+ev.ID, nil)
	require.Equal(t, http.StatusOK, code)
	var seen models.Event
	require.NoError(t, json.Unmarshal(env.Data, &seen))
	assert.Empty(t, seen.AttendeePIN)
	assert.Equal(t, 1, seen.RegisteredCount)

	code, env = h.do(org, http.MethodPost, "/events/"+ev.ID+"/tasks", map[string]any{"title": "Book venue", "budget": 500, "assigned_to": "alice"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var task models.Task
	require.NoError(t, json.Unmarshal(env.Data, &task))

	code, _ = h.do(alice, http.MethodPatch, "/events/"+ev.ID+"/tasks/"+task.ID, map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, code)

	code, env = h.do(org, http.MethodGet, "/events/"+ev.ID+"/budget", nil)
	require.Equal(t, http.StatusOK, code)
	var b struct {
		Spent    float64          `json:"spent"`
		Expenses []models.Expense `json:"expenses"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &b))
	assert.Equal(t, 500.0, b.Spent)
	assert.Len(t, b.Expenses, 1)

	code, _ = h.do(org, http.MethodPut, "/events/"+ev.ID+"/budget/income", map[string]any{"amount": 250})
	assert.Equal(t, http.StatusOK, code)
	code, _ = h.do(org, http.MethodPut, "/events/"+ev.ID+"/budget/income", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = h.do(org, http.MethodGet, "/events/"+ev.ID+"/dashboard", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	code, _ = h.do(alice, http.MethodGet, "/events/"+ev.ID+"/dashboard", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = h.do(bob, http.MethodDelete, "/registrations/"+out.Registration.ID, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = h.do(alice, http.MethodDelete, "/registrations/"+out.Registration.ID, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = h.do(alice, http.MethodDelete, "/registrations/"+out.Registration.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = h.do(alice, http.MethodGet, "/me/registrations?status=cancelled", nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 1, page.Total)

	code, _ = h.do(org, http.MethodDelete, "/events/"+ev.ID, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = h.do(org, http.MethodGet, "/events/"+ev.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPollsOverHTTP(t *testing.T) {
	h := newHarness(t)
	org := &models.Caller{UserID: "org", Role: models.RoleOrganizer}
	alice := &models.Caller{UserID: "alice", Role: models.RoleAttendee}

	_, env := h.do(org, http.MethodPost, "/events", map[string]any{
		"title": "Talk", "date": "2026-12-02", "time": "09:00", "venue": "Room 1",
		"event_type": "talk", "area": "South",
	})
	var ev models.Event
	require.NoError(t, json.Unmarshal(env.Data, &ev))

	code, env := h.do(org, http.MethodPost, "/events/"+ev.ID+"/polls", map[string]any{"question": "Topic?", "options": []string{"Go", "Rust"}})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var poll models.Poll
	require.NoError(t, json.Unmarshal(env.Data, &poll))

	code, env = h.do(alice, http.MethodPost, "/polls/"+poll.ID+"/answer", map[string]any{"option": 0})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "NOT_REGISTERED", env.Code)

	code, _ = h.do(alice, http.MethodPost, "/events/"+ev.ID+"/register", nil)
	require.Equal(t, http.StatusCreated, code)
	code, _ = h.do(alice, http.MethodPost, "/polls/"+poll.ID+"/answer", map[string]any{"option": 0})
	assert.Equal(t, http.StatusOK, code)

	code, _ = h.do(org, http.MethodPost, "/polls/"+poll.ID+"/close", nil)
	assert.Equal(t, http.StatusOK, code)
	code, env = h.do(alice, http.MethodPost, "/polls/"+poll.ID+"/answer", map[string]any{"option": 1})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "POLL_CLOSED", env.Code)
}
