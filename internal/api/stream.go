package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/disasterwatch/internal/models"
	"github.com/mr1hm/disasterwatch/internal/stream"
)

// streamDisasters pushes newly created events as server-sent events until the
// client goes away or the broadcaster closes. Optional filters: type, minSeverity.
func (h *Handler) streamDisasters(c *gin.Context) {
	if h.broadcaster == nil {
		abortWithCode(c, http.StatusServiceUnavailable, "STREAM_UNAVAILABLE", "Live stream is not enabled")
		return
	}

	var filter stream.Filter
	if t := c.Query("type"); t != "" {
		dt, ok := models.ParseDisasterType(t)
		if !ok {
			abortWithCode(c, http.StatusBadRequest, "INVALID_TYPE", "Type must be one of: "+allowedTypes)
			return
		}
		filter.Type = dt
	}
	if s := c.Query("minSeverity"); s != "" {
		sev, ok := models.ParseSeverity(s)
		if !ok {
			abortWithCode(c, http.StatusBadRequest, "INVALID_SEVERITY", "Severity must be one of: "+allowedSeverities)
			return
		}
		filter.MinSeverity = sev
	}

	id, ch := h.broadcaster.Subscribe(filter)
	defer h.broadcaster.Unsubscribe(id)

	h.logger.Info("client subscribed to disaster stream", "subscriber_id", id)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// Flush headers so clients see the stream open before the first event
	c.SSEvent("ready", gin.H{"subscriberId": id})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			h.logger.Info("client disconnected from disaster stream", "subscriber_id", id)
			return false
		case d, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("disaster", d)
			return true
		}
	})
}
