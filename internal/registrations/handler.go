package registrations

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/apperr"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/response"
)

// RegisterRequest is the body for POST /events/:id/register.
type RegisterRequest struct {
	PIN string `json:"pin"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// bindOptional accepts an empty body.
func bindOptional(c *gin.Context, req *RegisterRequest) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(req); err != nil {
		return apperr.Validation("invalid request: %v", err)
	}
	return nil
}

func (h *Handler) fail(c *gin.Context, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		h.logger.Error("registration request failed", zap.Error(err), zap.String("path", c.FullPath()))
	}
	response.Error(c, err)
}

// Register handles POST /events/:id/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := bindOptional(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	out, err := h.svc.Register(c.Request.Context(), middleware.MustCaller(c), c.Param("id"), req.PIN)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, out)
}

// RegisterByCode handles POST /events/code/:code/register.
func (h *Handler) RegisterByCode(c *gin.Context) {
	var req RegisterRequest
	if err := bindOptional(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	out, err := h.svc.RegisterByCode(c.Request.Context(), middleware.MustCaller(c), c.Param("code"), req.PIN)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, out)
}

// Cancel handles DELETE /registrations/:id.
func (h *Handler) Cancel(c *gin.Context) {
	r, err := h.svc.Cancel(c.Request.Context(), middleware.MustCaller(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, r)
}

// ListMine handles GET /me/registrations?status=&page=&limit=.
func (h *Handler) ListMine(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	p, err := h.svc.ListForUser(c.Request.Context(), middleware.MustCaller(c), c.Query("status"), page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Paginated(c, p.Items, p.Total, p.Page, p.Limit)
}

// ListByEvent handles GET /events/:id/registrations?status=.
func (h *Handler) ListByEvent(c *gin.Context) {
	status := models.RegistrationStatus(c.Query("status"))
	switch status {
	case "", models.RegistrationRegistered, models.RegistrationCancelled:
	default:
		response.BadRequest(c, "status must be registered or cancelled")
		return
	}
	list, err := h.svc.ListForEvent(c.Request.Context(), middleware.MustCaller(c), c.Param("id"), status)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// Reconcile handles POST /events/:id/registrations/reconcile.
func (h *Handler) Reconcile(c *gin.Context) {
	change, err := h.svc.Reconcile(c.Request.Context(), middleware.MustCaller(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{
		"previous_count":   change.Cached,
		"registered_count": change.After,
		"repaired":         change.Drifted(),
	})
}
