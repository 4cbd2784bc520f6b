package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/disasterwatch/internal/feeds"
)

func (h *Handler) getEarthquakes(c *gin.Context) {
	features, err := h.earthquakes.Query(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		h.internalError(c, "Failed to fetch earthquake data", err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", features)
}

func (h *Handler) getAmbeeDisasters(c *gin.Context) {
	body, err := h.ambee.Latest(c.Request.Context(), c.Request.URL.Query())
	if err == nil {
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		return
	}

	var upstream *feeds.UpstreamError
	switch {
	case errors.Is(err, feeds.ErrNotConfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	case errors.As(err, &upstream):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  "Ambee request failed",
			"status": upstream.StatusCode,
			"body":   upstream.Body,
		})
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("ambee request timed out", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ambee request timed out"})
	default:
		h.internalError(c, "Ambee request failed", err)
	}
}
