package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// StartWorker starts the staging poller
func (h *Handlers) StartWorker(c *gin.Context) {
	if err := h.Worker.Start(); err != nil {
		respondError(c, http.StatusConflict, "worker_error", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Worker started successfully"})
}

// StopWorker stops the staging poller, waiting for the current cycle
func (h *Handlers) StopWorker(c *gin.Context) {
	if err := h.Worker.Stop(); err != nil {
		respondError(c, http.StatusConflict, "worker_error", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Worker stopped successfully"})
}

// RunOnce runs a single poll cycle and returns its report. A cycle already
// in flight yields a skipped report. The cycle outlives a disconnecting client
// so leased items are not failed by the cancellation.
func (h *Handlers) RunOnce(c *gin.Context) {
	report, err := h.Worker.RunOnce(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		logrus.WithError(err).Error("Manual cycle failed")
		respondError(c, http.StatusInternalServerError, "cycle_error", err.Error())
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetWorkerStatus returns the poller state
func (h *Handlers) GetWorkerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Worker.Status())
}
