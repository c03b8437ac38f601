package events

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/apperr"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/store"
	"github.com/aura-events/backend/pkg/response"
)

// CollaboratorRequest is the body for POST /events/:id/collaborators.
type CollaboratorRequest struct {
	UserID string `json:"user_id"`
}

// PermissionRequest is the body for PUT /events/:id/permissions.
type PermissionRequest struct {
	UserID     string            `json:"user_id"`
	Permission models.Permission `json:"permission"`
}

// MediaRequest is the body for POST /events/:id/media/upload-url.
type MediaRequest struct {
	Kind        string `json:"kind"`
	ContentType string `json:"content_type"`
}

// NotifyRequest is the body for POST /events/:id/notify.
type NotifyRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an event handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		h.logger.Error("event request failed", zap.Error(err), zap.String("path", c.FullPath()))
	}
	response.Error(c, err)
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return false
	}
	return true
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	var req CreateInput
	if !bind(c, &req) {
		return
	}
	e, err := h.svc.CreateEvent(c.Request.Context(), middleware.MustCaller(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, e)
}

// List handles GET /events?status=&organizer_id=&area=&event_type=&page=&limit=.
func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	f := store.EventFilter{
		Status:      models.EventStatus(c.Query("status")),
		OrganizerID: c.Query("organizer_id"),
		Area:        c.Query("area"),
		EventType:   c.Query("event_type"),
		Offset:      (page - 1) * limit,
		Limit:       limit,
	}
	list, total, err := h.svc.ListEvents(c.Request.Context(), middleware.MustCaller(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Paginated(c, list, total, page, limit)
}

// GetByID handles GET /events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	e, err := h.svc.GetEvent(c.Request.Context(), middleware.MustCaller(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, e)
}

// GetByCode handles GET /events/code/:code.
func (h *Handler) GetByCode(c *gin.Context) {
	e, err := h.svc.GetEventByCode(c.Request.Context(), middleware.MustCaller(c), c.Param("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, e)
}

// Update handles PATCH /events/:id.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateInput
	if !bind(c, &req) {
		return
	}
	e, err := h.svc.UpdateEvent(c.Request.Context(), middleware.MustCaller(c), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, e)
}

// Delete handles DELETE /events/:id.
func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.DeleteEvent(c.Request.Context(), middleware.MustCaller(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddCollaborator handles POST /events/:id/collaborators.
func (h *Handler) AddCollaborator(c *gin.Context) {
	var req CollaboratorRequest
	if !bind(c, &req) {
		return
	}
	e, err := h.svc.AddCollaborator(c.Request.Context(), middleware.MustCaller(c), c.Param("id"), req.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, e)
}

// GrantAccess handles PUT /events/:id/permissions.
func (h *Handler) GrantAccess(c *gin.Context) {
	var req PermissionRequest
	if !bind(c, &req) {
		return
	}
	e, err := h.svc.GrantAccess(c.Request.Context(), middleware.MustCaller(c), c.Param("id"), req.UserID, req.Permission)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, e)
}

// MediaUploadURL handles POST /events/:id/media/upload-url.
func (h *Handler) MediaUploadURL(c *gin.Context) {
	var req MediaRequest
	if !bind(c, &req) {
		return
	}
	up, err := h.svc.MediaUploadURL(c.Request.Context(), middleware.MustCaller(c), c.Param("id"), req.Kind, req.ContentType)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, up)
}

// Notify handles POST /events/:id/notify.
func (h *Handler) Notify(c *gin.Context) {
	var req NotifyRequest
	if !bind(c, &req) {
		return
	}
	n, err := h.svc.NotifyRegistrants(c.Request.Context(), middleware.MustCaller(c), c.Param("id"), req.Subject, req.Message)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"recipients": n})
}
