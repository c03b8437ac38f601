// Package server wires the services into the gin router.
package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/attendance"
	"github.com/aura-events/backend/internal/auth"
	"github.com/aura-events/backend/internal/budget"
	"github.com/aura-events/backend/internal/dashboard"
	"github.com/aura-events/backend/internal/events"
	"github.com/aura-events/backend/internal/feedback"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/notify"
	"github.com/aura-events/backend/internal/polls"
	"github.com/aura-events/backend/internal/realtime"
	"github.com/aura-events/backend/internal/registrations"
	"github.com/aura-events/backend/internal/store"
	"github.com/aura-events/backend/pkg/response"
)

// Deps are the collaborators the services are built from. Notifier, Media
// and Live may be nil.
type Deps struct {
	Store    store.Store
	Notifier notify.Notifier
	Media    events.Presigner
	Live     *realtime.Hub
	JWT      *auth.JWTService
	Paging   registrations.Paging
	CORS     string
	Logger   *zap.Logger
}

// Services groups the domain services.
type Services struct {
	Events        *events.Service
	Registrations *registrations.Service
	Budget        *budget.Service
	Dashboard     *dashboard.Service
	Attendance    *attendance.Service
	Feedback      *feedback.Service
	Polls         *polls.Service
	Live          *realtime.Hub
}

// NewServices builds every service over one store.
func NewServices(d Deps) *Services {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	live := d.Live
	if live == nil {
		live = realtime.NewHub(nil, logger.Named("live"))
	}
	ledger := registrations.NewService(d.Store, d.Paging, logger.Named("registrations"))
	ledger.SetFeed(live)
	pollSvc := polls.NewService(d.Store, ledger, logger.Named("polls"))
	pollSvc.SetFeed(live)
	attendanceSvc := attendance.NewService(d.Store, ledger, logger.Named("attendance"))
	attendanceSvc.SetFeed(live)
	return &Services{
		Events:        events.NewService(d.Store, ledger, notifier, d.Media, logger.Named("events")),
		Registrations: ledger,
		Budget:        budget.NewService(d.Store, logger.Named("budget")),
		Dashboard:     dashboard.NewService(d.Store, ledger, pollSvc, logger.Named("dashboard")),
		Attendance:    attendanceSvc,
		Feedback:      feedback.NewService(d.Store, ledger, logger.Named("feedback")),
		Polls:         pollSvc,
		Live:          live,
	}
}

// NewRouter mounts every route on a new gin engine.
func NewRouter(d Deps, svc *Services) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	eventHandler := events.NewHandler(svc.Events, logger)
	registrationHandler := registrations.NewHandler(svc.Registrations, logger)
	budgetHandler := budget.NewHandler(svc.Budget, logger)
	dashboardHandler := dashboard.NewHandler(svc.Dashboard, logger)
	attendanceHandler := attendance.NewHandler(svc.Attendance, logger)
	feedbackHandler := feedback.NewHandler(svc.Feedback, logger)
	pollHandler := polls.NewHandler(svc.Polls, logger)
	liveHandler := realtime.NewHandler(svc.Live, func(token string) (models.Caller, error) {
		claims, err := d.JWT.Validate(token)
		if err != nil {
			return models.Caller{}, err
		}
		return claims.Caller(), nil
	}, svc.Registrations.AuthorizeFeed, middleware.OriginChecker(d.CORS), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(d.CORS))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	// Authenticates with ?token= itself.
	router.GET("/events/:id/live", liveHandler.Serve)

	api := router.Group("")
	api.Use(middleware.JWT(d.JWT))
	{
		// Events
		api.POST("/events", middleware.RequireRole(models.RoleOrganizer, models.RoleAdmin), eventHandler.Create)
		api.GET("/events", eventHandler.List)
		api.GET("/events/:id", eventHandler.GetByID)
		api.GET("/events/code/:code", eventHandler.GetByCode)
		api.PATCH("/events/:id", eventHandler.Update)
		api.DELETE("/events/:id", eventHandler.Delete)
		api.POST("/events/:id/collaborators", eventHandler.AddCollaborator)
		api.PUT("/events/:id/permissions", eventHandler.GrantAccess)
		api.POST("/events/:id/media/upload-url", eventHandler.MediaUploadURL)
		api.POST("/events/:id/notify", eventHandler.Notify)

		// Registrations
		api.POST("/events/:id/register", registrationHandler.Register)
		api.POST("/events/code/:code/register", registrationHandler.RegisterByCode)
		api.GET("/events/:id/registrations", registrationHandler.ListByEvent)
		api.POST("/events/:id/registrations/reconcile", registrationHandler.Reconcile)
		api.DELETE("/registrations/:id", registrationHandler.Cancel)
		api.GET("/me/registrations", registrationHandler.ListMine)

		// Tasks and budget
		api.POST("/events/:id/tasks", budgetHandler.AddTask)
		api.PATCH("/events/:id/tasks/:taskId", budgetHandler.UpdateTask)
		api.GET("/events/:id/budget", budgetHandler.Get)
		api.POST("/events/:id/expenses", budgetHandler.AddExpense)
		api.PUT("/events/:id/budget/total", budgetHandler.SetField(budget.FieldTotal))
		api.PUT("/events/:id/budget/income", budgetHandler.SetField(budget.FieldIncome))
		api.PUT("/events/:id/budget/spent", budgetHandler.SetField(budget.FieldSpent))

		api.GET("/events/:id/dashboard", dashboardHandler.Get)

		// Attendance and feedback
		api.POST("/events/:id/attendance", attendanceHandler.Mark)
		api.GET("/events/:id/attendance", attendanceHandler.List)
		api.POST("/events/:id/feedback", feedbackHandler.Submit)
		api.GET("/events/:id/feedback", feedbackHandler.Summary)

		// Polls
		api.POST("/events/:id/polls", pollHandler.Create)
		api.GET("/events/:id/polls", pollHandler.List)
		api.POST("/polls/:id/close", pollHandler.Close)
		api.POST("/polls/:id/answer", pollHandler.Answer)
	}
	return router
}
