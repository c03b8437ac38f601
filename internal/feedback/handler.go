package feedback

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/apperr"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/pkg/response"
)

// Handler handles feedback endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a feedback handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Submit handles POST /events/:id/feedback.
func (h *Handler) Submit(c *gin.Context) {
	var req Input
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	f, err := h.svc.Submit(c.Request.Context(), middleware.MustCaller(c), c.Param("id"), req)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			h.logger.Error("submit feedback failed", zap.Error(err))
		}
		response.Error(c, err)
		return
	}
	response.OK(c, f)
}

// Summary handles GET /events/:id/feedback.
func (h *Handler) Summary(c *gin.Context) {
	sum, err := h.svc.Summary(c.Request.Context(), middleware.MustCaller(c), c.Param("id"))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			h.logger.Error("feedback summary failed", zap.Error(err))
		}
		response.Error(c, err)
		return
	}
	response.OK(c, sum)
}
