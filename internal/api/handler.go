package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mr1hm/disasterwatch/internal/models"
	"github.com/mr1hm/disasterwatch/internal/repository"
	"github.com/mr1hm/disasterwatch/internal/stream"
)

// Notifier receives every newly created event. It must return without
// waiting on delivery.
type Notifier interface {
	Notify(event *models.DisasterEvent)
}

type EarthquakeSource interface {
	Query(ctx context.Context, params url.Values) (json.RawMessage, error)
}

type AmbeeSource interface {
	Latest(ctx context.Context, params url.Values) (json.RawMessage, error)
}

type Deps struct {
	Disasters     repository.DisasterRepository
	Subscriptions repository.SubscriptionRepository
	Broadcaster   *stream.Broadcaster
	Notifier      Notifier
	Earthquakes   EarthquakeSource
	Ambee         AmbeeSource
	JWTSecret     string
	Logger        *slog.Logger
	Clock         clockwork.Clock
}

type Handler struct {
	disasters     repository.DisasterRepository
	subscriptions repository.SubscriptionRepository
	broadcaster   *stream.Broadcaster
	notifier      Notifier
	earthquakes   EarthquakeSource
	ambee         AmbeeSource
	jwtSecret     string
	logger        *slog.Logger
	clock         clockwork.Clock
}

func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Handler{
		disasters:     deps.Disasters,
		subscriptions: deps.Subscriptions,
		broadcaster:   deps.Broadcaster,
		notifier:      deps.Notifier,
		earthquakes:   deps.Earthquakes,
		ambee:         deps.Ambee,
		jwtSecret:     deps.JWTSecret,
		logger:        deps.Logger,
		clock:         deps.Clock,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/api/earthquakes", h.getEarthquakes)
	r.GET("/api/ambee/disasters", h.getAmbeeDisasters)

	authed := r.Group("/api", AuthMiddleware(h.jwtSecret))
	authed.GET("/disasters", h.listDisasters)
	authed.GET("/disasters/stream", h.streamDisasters)
	authed.GET("/disasters/:id", h.getDisaster)
	authed.POST("/disasters", h.createDisaster)
	authed.PUT("/disasters/:id", h.updateDisaster)
	authed.DELETE("/disasters/:id", h.deleteDisaster)

	authed.GET("/alerts/subscriptions", h.getSubscription)
	authed.POST("/alerts/subscriptions", h.upsertSubscription)
	authed.DELETE("/alerts/subscriptions", h.deleteSubscription)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func abortWithCode(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": msg,
		"code":  code,
	})
}

func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, "error", err, "path", c.FullPath())
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error": msg,
	})
}
