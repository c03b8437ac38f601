package attendance

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/apperr"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/pkg/response"
)

// MarkRequest is the body for POST /events/:id/attendance.
type MarkRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// Handler handles attendance endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an attendance handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Mark handles POST /events/:id/attendance.
func (h *Handler) Mark(c *gin.Context) {
	var req MarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m, err := h.svc.MarkAttended(c.Request.Context(), middleware.MustCaller(c), c.Param("id"), req.UserID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			h.logger.Error("mark attendance failed", zap.Error(err))
		}
		response.Error(c, err)
		return
	}
	if m.New {
		response.Created(c, m)
		return
	}
	response.OK(c, m)
}

// List handles GET /events/:id/attendance.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.ListAttendees(c.Request.Context(), middleware.MustCaller(c), c.Param("id"))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			h.logger.Error("list attendance failed", zap.Error(err))
		}
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"attendees": list})
}
