package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/disasterwatch/internal/models"
	"github.com/mr1hm/disasterwatch/internal/repository"
)

func (h *Handler) getSubscription(c *gin.Context) {
	sub, err := h.subscriptions.GetSubscription(c.Request.Context(), currentUser(c))
	if err != nil {
		h.internalError(c, "failed to fetch subscription", err)
		return
	}
	// null when the caller has no subscription yet
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) upsertSubscription(c *gin.Context) {
	var body payload
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithCode(c, http.StatusBadRequest, "INVALID_BODY", "Request body must be a JSON object")
		return
	}
	if rejectUserID(c, body) {
		return
	}

	if !body.has("lat") || !body.has("lng") || !body.has("radiusKm") ||
		!body.truthy("categories") || !body.truthy("channels") {
		abortWithCode(c, http.StatusBadRequest, "MISSING_REQUIRED_FIELDS",
			"lat, lng, radiusKm, categories, channels required")
		return
	}

	lat, ok := body.float("lat")
	if !ok || lat < -90 || lat > 90 {
		abortWithCode(c, http.StatusBadRequest, "INVALID_LATITUDE", "Latitude must be between -90 and 90")
		return
	}
	lng, ok := body.float("lng")
	if !ok || lng < -180 || lng > 180 {
		abortWithCode(c, http.StatusBadRequest, "INVALID_LONGITUDE", "Longitude must be between -180 and 180")
		return
	}
	radius, ok := body.float("radiusKm")
	if !ok || radius <= 0 {
		abortWithCode(c, http.StatusBadRequest, "INVALID_RADIUS", "radiusKm must be a positive number")
		return
	}

	categories, ok := normalizeCategories(body)
	if !ok {
		abortWithCode(c, http.StatusBadRequest, "INVALID_CATEGORIES", "Categories must be drawn from: "+allowedTypes)
		return
	}
	channels, ok := normalizeChannels(body)
	if !ok {
		abortWithCode(c, http.StatusBadRequest, "INVALID_CHANNELS", "Channels must be drawn from: email, sms")
		return
	}

	email, _ := body.str("email")
	phone, _ := body.str("phone")

	sub := &models.AlertSubscription{
		UserID:     currentUser(c),
		Lat:        lat,
		Lng:        lng,
		RadiusKm:   radius,
		Categories: categories,
		Channels:   channels,
		Email:      optionalString(email),
		Phone:      optionalString(phone),
	}
	if err := h.subscriptions.UpsertSubscription(c.Request.Context(), sub); err != nil {
		h.internalError(c, "failed to save subscription", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "subscription": sub})
}

func (h *Handler) deleteSubscription(c *gin.Context) {
	err := h.subscriptions.DeleteSubscription(c.Request.Context(), currentUser(c))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		h.internalError(c, "failed to delete subscription", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// listField accepts either a comma-delimited string or a JSON array of strings.
func listField(body payload, key string) (map[string]struct{}, bool) {
	if s, ok := body.str(key); ok {
		return models.ParseList(s), true
	}
	var items []string
	if err := json.Unmarshal(body[key], &items); err != nil {
		return nil, false
	}
	return models.ParseList(strings.Join(items, ",")), true
}

func normalizeCategories(body payload) (string, bool) {
	set, ok := listField(body, "categories")
	if !ok || len(set) == 0 {
		return "", false
	}
	var out []string
	for _, t := range models.DisasterTypes {
		if _, want := set[string(t)]; want {
			out = append(out, string(t))
			delete(set, string(t))
		}
	}
	if len(set) > 0 {
		return "", false
	}
	return strings.Join(out, ","), true
}

func normalizeChannels(body payload) (string, bool) {
	set, ok := listField(body, "channels")
	if !ok || len(set) == 0 {
		return "", false
	}
	var out []string
	for _, ch := range models.Channels {
		if _, want := set[string(ch)]; want {
			out = append(out, string(ch))
			delete(set, string(ch))
		}
	}
	if len(set) > 0 {
		return "", false
	}
	return strings.Join(out, ","), true
}
