package budget

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/apperr"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/pkg/response"
)

// AmountRequest is the body for the absolute budget setters.
type AmountRequest struct {
	Amount *float64 `json:"amount"`
}

// Handler handles task and budget HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a budget handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		h.logger.Error("budget request failed", zap.Error(err), zap.String("path", c.FullPath()))
	}
	response.Error(c, err)
}

// AddTask handles POST /events/:id/tasks.
func (h *Handler) AddTask(c *gin.Context) {
	var req TaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t, err := h.svc.AddTask(c.Request.Context(), middleware.MustCaller(c), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, t)
}

// UpdateTask handles PATCH /events/:id/tasks/:taskId.
func (h *Handler) UpdateTask(c *gin.Context) {
	var req TaskUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t, err := h.svc.UpdateTask(c.Request.Context(), middleware.MustCaller(c), c.Param("id"), c.Param("taskId"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, t)
}

// AddExpense handles POST /events/:id/expenses.
func (h *Handler) AddExpense(c *gin.Context) {
	var req ExpenseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	v, err := h.svc.AddExpense(c.Request.Context(), middleware.MustCaller(c), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, v)
}

// Get handles GET /events/:id/budget.
func (h *Handler) Get(c *gin.Context) {
	v, err := h.svc.GetBudget(c.Request.Context(), middleware.MustCaller(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, v)
}

// SetField returns a handler for PUT /events/:id/budget/{total,income,spent}.
func (h *Handler) SetField(field Field) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AmountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
		if req.Amount == nil {
			response.BadRequest(c, "amount is required")
			return
		}
		v, err := h.svc.SetField(c.Request.Context(), middleware.MustCaller(c), c.Param("id"), field, *req.Amount)
		if err != nil {
			h.fail(c, err)
			return
		}
		response.OK(c, v)
	}
}
