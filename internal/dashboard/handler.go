package dashboard

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/apperr"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/pkg/response"
)

// Handler handles GET /events/:id/dashboard.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a dashboard handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Get handles GET /events/:id/dashboard (organizer or collaborator).
func (h *Handler) Get(c *gin.Context) {
	d, err := h.svc.Build(c.Request.Context(), middleware.MustCaller(c), c.Param("id"))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			h.logger.Error("dashboard failed", zap.Error(err), zap.String("event_id", c.Param("id")))
		}
		response.Error(c, err)
		return
	}
	response.OK(c, d)
}
