package polls

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/apperr"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/pkg/response"
)

// AnswerRequest is the body for POST /polls/:id/answer. Option is the
// zero-based index of the chosen option.
type AnswerRequest struct {
	Option *int `json:"option" binding:"required"`
}

// Handler handles poll HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a polls handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		h.logger.Error("poll request failed", zap.Error(err), zap.String("path", c.FullPath()))
	}
	response.Error(c, err)
}

// Create handles POST /events/:id/polls (managers).
func (h *Handler) Create(c *gin.Context) {
	var req CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.svc.Create(c.Request.Context(), middleware.MustCaller(c), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, p)
}

// List handles GET /events/:id/polls (managers).
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), middleware.MustCaller(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"polls": list})
}

// Close handles POST /polls/:id/close (managers).
func (h *Handler) Close(c *gin.Context) {
	sum, err := h.svc.Close(c.Request.Context(), middleware.MustCaller(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, sum)
}

// Answer handles POST /polls/:id/answer (registrants).
func (h *Handler) Answer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: option is required")
		return
	}
	a, err := h.svc.Answer(c.Request.Context(), middleware.MustCaller(c), c.Param("id"), *req.Option)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, a)
}
