package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/disasterwatch/internal/models"
	"github.com/mr1hm/disasterwatch/internal/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

var (
	allowedTypes      = joinTypes(models.DisasterTypes)
	allowedSeverities = joinSeverities(models.Severities)
)

func (h *Handler) listDisasters(c *gin.Context) {
	filter := repository.Filter{
		UserID:     currentUser(c),
		Limit:      defaultListLimit,
		ActiveOnly: c.Query("active") != "false",
	}

	if t := c.Query("type"); t != "" {
		dt, ok := models.ParseDisasterType(t)
		if !ok {
			abortWithCode(c, http.StatusBadRequest, "INVALID_TYPE", "Type must be one of: "+allowedTypes)
			return
		}
		filter.Type = &dt
	}
	if s := c.Query("severity"); s != "" {
		sev, ok := models.ParseSeverity(s)
		if !ok {
			abortWithCode(c, http.StatusBadRequest, "INVALID_SEVERITY", "Severity must be one of: "+allowedSeverities)
			return
		}
		filter.Severity = &sev
	}
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		filter.Limit = min(l, maxListLimit)
	}
	if o, err := strconv.Atoi(c.Query("offset")); err == nil && o > 0 {
		filter.Offset = o
	}

	disasters, err := h.disasters.ListDisasters(c.Request.Context(), filter)
	if err != nil {
		h.internalError(c, "failed to fetch disasters", err)
		return
	}

	if c.Query("format") == "geojson" {
		c.Header("Content-Type", "application/geo+json")
		c.JSON(http.StatusOK, toGeoJSON(disasters))
		return
	}
	if disasters == nil {
		disasters = []models.DisasterEvent{}
	}
	c.JSON(http.StatusOK, disasters)
}

func (h *Handler) getDisaster(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	d, err := h.disasters.GetDisaster(c.Request.Context(), id, currentUser(c))
	if err != nil {
		h.internalError(c, "failed to fetch disaster", err)
		return
	}
	if d == nil {
		abortWithCode(c, http.StatusNotFound, "NOT_FOUND", "Disaster not found")
		return
	}
	c.JSON(http.StatusOK, d)
}

// createDisaster stores the event, then hands it to live streams and the alert
// dispatcher. Neither hand-off can change the response.
func (h *Handler) createDisaster(c *gin.Context) {
	var body payload
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithCode(c, http.StatusBadRequest, "INVALID_BODY", "Request body must be a JSON object")
		return
	}
	if rejectUserID(c, body) {
		return
	}

	for _, key := range []string{"type", "title", "location", "severity", "timestamp"} {
		if !body.truthy(key) {
			abortWithCode(c, http.StatusBadRequest, "MISSING_REQUIRED_FIELDS",
				"Required fields: type, title, location, severity, lat, lng, timestamp")
			return
		}
	}
	if !body.has("lat") || !body.has("lng") {
		abortWithCode(c, http.StatusBadRequest, "MISSING_REQUIRED_FIELDS",
			"Required fields: type, title, location, severity, lat, lng, timestamp")
		return
	}

	d := &models.DisasterEvent{
		UserID:   currentUser(c),
		IsActive: true,
	}
	if !applyDisasterFields(c, body, d) {
		return
	}

	if err := h.disasters.AddDisaster(c.Request.Context(), d); err != nil {
		h.internalError(c, "failed to create disaster", err)
		return
	}

	if h.broadcaster != nil {
		h.broadcaster.Broadcast(d)
	}
	if h.notifier != nil {
		h.notifier.Notify(d)
	}

	c.JSON(http.StatusCreated, d)
}

func (h *Handler) updateDisaster(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var body payload
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithCode(c, http.StatusBadRequest, "INVALID_BODY", "Request body must be a JSON object")
		return
	}
	if rejectUserID(c, body) {
		return
	}

	ctx := c.Request.Context()
	d, err := h.disasters.GetDisaster(ctx, id, currentUser(c))
	if err != nil {
		h.internalError(c, "failed to fetch disaster", err)
		return
	}
	if d == nil {
		abortWithCode(c, http.StatusNotFound, "NOT_FOUND", "Disaster not found")
		return
	}

	if !applyDisasterFields(c, body, d) {
		return
	}

	err = h.disasters.UpdateDisaster(ctx, d)
	if errors.Is(err, repository.ErrNotFound) {
		abortWithCode(c, http.StatusNotFound, "NOT_FOUND", "Disaster not found")
		return
	}
	if err != nil {
		h.internalError(c, "failed to update disaster", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) deleteDisaster(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	userID := currentUser(c)
	d, err := h.disasters.GetDisaster(ctx, id, userID)
	if err != nil {
		h.internalError(c, "failed to fetch disaster", err)
		return
	}
	if d == nil {
		abortWithCode(c, http.StatusNotFound, "NOT_FOUND", "Disaster not found")
		return
	}

	err = h.disasters.DeleteDisaster(ctx, id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		abortWithCode(c, http.StatusNotFound, "NOT_FOUND", "Disaster not found")
		return
	}
	if err != nil {
		h.internalError(c, "failed to delete disaster", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Disaster deleted successfully",
		"deleted": d,
	})
}

// applyDisasterFields validates and copies every field present in body onto d.
// It writes the error response and returns false on the first invalid field.
func applyDisasterFields(c *gin.Context, body payload, d *models.DisasterEvent) bool {
	if _, ok := body["type"]; ok {
		s, _ := body.str("type")
		t, valid := models.ParseDisasterType(s)
		if !valid {
			abortWithCode(c, http.StatusBadRequest, "INVALID_TYPE", "Type must be one of: "+allowedTypes)
			return false
		}
		d.Type = t
	}

	if _, ok := body["severity"]; ok {
		s, _ := body.str("severity")
		sev, valid := models.ParseSeverity(s)
		if !valid {
			abortWithCode(c, http.StatusBadRequest, "INVALID_SEVERITY", "Severity must be one of: "+allowedSeverities)
			return false
		}
		d.Severity = sev
	}

	if _, ok := body["lat"]; ok {
		lat, valid := body.float("lat")
		if !valid || lat < -90 || lat > 90 {
			abortWithCode(c, http.StatusBadRequest, "INVALID_LATITUDE", "Latitude must be between -90 and 90")
			return false
		}
		d.Lat = lat
	}

	if _, ok := body["lng"]; ok {
		lng, valid := body.float("lng")
		if !valid || lng < -180 || lng > 180 {
			abortWithCode(c, http.StatusBadRequest, "INVALID_LONGITUDE", "Longitude must be between -180 and 180")
			return false
		}
		d.Lng = lng
	}

	if _, ok := body["title"]; ok {
		title, valid := body.str("title")
		if !valid || title == "" {
			abortWithCode(c, http.StatusBadRequest, "INVALID_TITLE", "Title must be a non-empty string")
			return false
		}
		d.Title = title
	}

	if _, ok := body["location"]; ok {
		location, valid := body.str("location")
		if !valid || location == "" {
			abortWithCode(c, http.StatusBadRequest, "INVALID_LOCATION", "Location must be a non-empty string")
			return false
		}
		d.Location = location
	}

	if _, ok := body["magnitude"]; ok {
		d.Magnitude = nil
		if body.truthy("magnitude") {
			mag, valid := body.float("magnitude")
			if !valid {
				abortWithCode(c, http.StatusBadRequest, "INVALID_MAGNITUDE", "Magnitude must be a number")
				return false
			}
			d.Magnitude = &mag
		}
	}

	if _, ok := body["description"]; ok {
		desc, _ := body.str("description")
		d.Description = optionalString(desc)
	}

	if _, ok := body["timestamp"]; ok {
		ts, valid := body.timestamp("timestamp")
		if !valid {
			abortWithCode(c, http.StatusBadRequest, "INVALID_TIMESTAMP", "Timestamp must be epoch seconds, epoch milliseconds or RFC 3339")
			return false
		}
		d.Timestamp = ts
	}

	if _, ok := body["isActive"]; ok {
		d.IsActive = body.truthy("isActive")
	}

	return true
}

func rejectUserID(c *gin.Context, body payload) bool {
	_, camel := body["userId"]
	_, snake := body["user_id"]
	if camel || snake {
		abortWithCode(c, http.StatusBadRequest, "USER_ID_NOT_ALLOWED", "User ID cannot be provided in request body")
		return true
	}
	return false
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithCode(c, http.StatusBadRequest, "INVALID_ID", "Valid ID is required")
		return 0, false
	}
	return id, true
}

func joinTypes(types []models.DisasterType) string {
	s := make([]string, len(types))
	for i, t := range types {
		s[i] = string(t)
	}
	return strings.Join(s, ", ")
}

func joinSeverities(sevs []models.Severity) string {
	s := make([]string, len(sevs))
	for i, v := range sevs {
		s[i] = string(v)
	}
	return strings.Join(s, ", ")
}
