package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/YOROBIZ/sentimentiq/internal/source"
)

// ListSources returns the sync state of every provider
func (h *Handlers) ListSources(c *gin.Context) {
	sources, err := h.Sources.List(c.Request.Context())
	if err != nil {
		respondStoreError(c, err, "", "Failed to retrieve sources")
		return
	}

	var configured []string
	if h.Syncer != nil {
		configured = h.Syncer.Names()
	}

	c.JSON(http.StatusOK, gin.H{
		"sources":    sources,
		"configured": configured,
	})
}

// SyncSource runs one connector now
func (h *Handlers) SyncSource(c *gin.Context) {
	if h.Syncer == nil {
		respondError(c, http.StatusServiceUnavailable, "sync_disabled", "No source syncer is configured")
		return
	}

	result, err := h.Syncer.SyncOne(c.Request.Context(), c.Param("name"))
	if errors.Is(err, source.ErrUnknownSource) {
		respondError(c, http.StatusNotFound, "not_found", err.Error())
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "sync_error", err.Error())
		return
	}

	status := http.StatusOK
	if result.Error != "" {
		status = http.StatusBadGateway
	}
	c.JSON(status, result)
}
