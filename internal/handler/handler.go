package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/YOROBIZ/sentimentiq/internal/database"
	"github.com/YOROBIZ/sentimentiq/internal/repository"
	"github.com/YOROBIZ/sentimentiq/internal/source"
	"github.com/YOROBIZ/sentimentiq/internal/worker"
)

// Deps are the collaborators served over HTTP. Syncer may be nil.
type Deps struct {
	DB        *gorm.DB
	Staging   *repository.StagingRepository
	Feedbacks *repository.FeedbackRepository
	Logs      *repository.LogRepository
	Rules     *repository.RuleRepository
	Sources   *repository.SourceRepository
	Reporter  *repository.StatusReporter
	Worker    *worker.Worker
	Syncer    *source.Syncer
	Gatherer  prometheus.Gatherer
}

// Handlers contains all HTTP handlers
type Handlers struct {
	Deps
}

// NewHandlers creates new HTTP handlers
func NewHandlers(deps Deps) *Handlers {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	return &Handlers{Deps: deps}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	{
		api.POST("/worker/start", h.StartWorker)
		api.POST("/worker/stop", h.StopWorker)
		api.POST("/worker/run-once", h.RunOnce)
		api.GET("/worker/status", h.GetWorkerStatus)

		api.GET("/staging/status", h.GetStagingStatus)
		api.GET("/items", h.ListItems)
		api.GET("/items/:id", h.GetItem)
		api.POST("/items/:id/requeue", h.RequeueItem)

		api.POST("/feedback", h.SubmitFeedback)
		api.GET("/feedbacks", h.ListFeedbacks)
		api.GET("/alerts", h.ListAlerts)

		api.GET("/sources", h.ListSources)
		api.POST("/sources/:name/sync", h.SyncSource)

		api.GET("/logs", h.GetLogs)
		api.GET("/logs/:id", h.GetLog)

		api.GET("/rules", h.GetRules)
		api.POST("/rules", h.CreateRule)
		api.GET("/rules/:id", h.GetRule)
		api.PUT("/rules/:id", h.UpdateRule)
		api.DELETE("/rules/:id", h.DeleteRule)
		api.PATCH("/rules/:id/enable", h.EnableRule)
		api.PATCH("/rules/:id/disable", h.DisableRule)
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Database:  "ok",
		Worker:    "stopped",
	}

	if err := database.Ping(h.DB); err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.WithError(err).Error("Database health check failed")
	}

	if h.Worker.IsRunning() {
		response.Worker = "running"
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

func respondError(c *gin.Context, code int, kind, message string) {
	c.JSON(code, ErrorResponse{
		Error:   kind,
		Message: message,
		Code:    code,
	})
}

// respondStoreError maps repository errors onto HTTP statuses.
func respondStoreError(c *gin.Context, err error, notFound, failed string) {
	if errors.Is(err, repository.ErrNotFound) {
		respondError(c, http.StatusNotFound, "not_found", notFound)
		return
	}
	logrus.WithError(err).WithField("path", c.FullPath()).Error(failed)
	respondError(c, http.StatusInternalServerError, "database_error", failed)
}

func parseID(c *gin.Context, what string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "invalid_id", "Invalid "+what+" ID")
		return 0, false
	}
	return uint(id), true
}

// pagination reads page and limit, limit capped at 100.
func pagination(c *gin.Context) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}
	return page, limit, (page - 1) * limit
}
