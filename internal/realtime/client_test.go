package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-events/backend/internal/apperr"
	"github.com/aura-events/backend/internal/models"
)

func liveServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validate := func(token string) (models.Caller, error) {
		if token == "bad" {
			return models.Caller{}, errors.New("bad token")
		}
		return models.Caller{UserID: token, Role: models.RoleAttendee}, nil
	}
	authorize := func(_ context.Context, caller models.Caller, _ string) error {
		if caller.UserID == "stranger" {
			return apperr.Unauthorized("not allowed")
		}
		return nil
	}
	r := gin.New()
	r.GET("/events/:id/live", NewHandler(hub, validate, authorize, nil, nil).Serve)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestLiveFeedStreamsUpdates(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := liveServer(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/events/e1/live?token=alice"), nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello Message
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, KindConnected, hello.Kind)
	assert.Equal(t, "e1", hello.EventID)

	require.Eventually(t, func() bool { return hub.Watchers("e1") == 1 }, time.Second, 10*time.Millisecond)
	hub.Publish(context.Background(), "e1", "registration_count", map[string]int{"registered_count": 7})

	var update Message
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, "registration_count", update.Kind)
	assert.JSONEq(t, `{"registered_count":7}`, string(update.Data))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Watchers("e1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestLiveFeedRejects(t *testing.T) {
	srv := liveServer(t, NewHub(nil, nil))

	cases := map[string]int{
		"/events/e1/live":                http.StatusUnauthorized,
		"/events/e1/live?token=bad":      http.StatusUnauthorized,
		"/events/e1/live?token=stranger": http.StatusForbidden,
	}
	for path, status := range cases {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, path), nil)
		require.Error(t, err, path)
		require.NotNil(t, resp, path)
		assert.Equal(t, status, resp.StatusCode, path)
		resp.Body.Close()
	}
}
