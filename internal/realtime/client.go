package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/response"
)

// KindConnected is sent to a client once it joins.
const KindConnected = "connected"

// TokenValidator turns the token query parameter into a caller.
type TokenValidator func(token string) (models.Caller, error)

// Authorizer decides whether caller may watch eventID.
type Authorizer func(ctx context.Context, caller models.Caller, eventID string) error

// Client is one websocket watching an event. Clients only receive.
type Client struct {
	ID      string
	EventID string
	UserID  string
	hub     *Hub
	conn    *websocket.Conn
	send    chan Message
	logger  *zap.Logger
}

// Handler upgrades GET /events/:id/live?token= connections.
type Handler struct {
	hub       *Hub
	validate  TokenValidator
	authorize Authorizer
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

// NewHandler creates the live feed handler. checkOrigin may be nil to
// accept every origin.
func NewHandler(hub *Hub, validate TokenValidator, authorize Authorizer, checkOrigin func(*http.Request) bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		hub:       hub,
		validate:  validate,
		authorize: authorize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

// Serve authenticates with the token query parameter, since browsers
// cannot set headers on websocket requests, then runs the client.
func (h *Handler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Unauthorized(c, "token required")
		return
	}
	caller, err := h.validate(token)
	if err != nil {
		response.Unauthorized(c, "invalid or expired token")
		return
	}
	eventID := c.Param("id")
	if err := h.authorize(c.Request.Context(), caller, eventID); err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{
		ID:      uuid.New().String(),
		EventID: eventID,
		UserID:  caller.UserID,
		hub:     h.hub,
		conn:    conn,
		send:    make(chan Message, sendBuffer),
		logger:  h.logger,
	}
	h.hub.Register(client)
	client.send <- Message{Kind: KindConnected, EventID: eventID, At: h.hub.now()}
	go client.writePump()
	client.readPump()
}

// readPump drains control frames until the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("watcher connection closed", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
