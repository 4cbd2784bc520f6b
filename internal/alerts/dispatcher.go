package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mr1hm/disasterwatch/internal/geo"
	"github.com/mr1hm/disasterwatch/internal/models"
	"github.com/mr1hm/disasterwatch/internal/observability"
	"github.com/mr1hm/disasterwatch/internal/worker"
)

// Mailer and Texter are satisfied by notify.EmailSender and notify.SMSSender.
// Neither reports failure; delivery problems end in their own logs.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, html string)
}

type Texter interface {
	SendSMS(ctx context.Context, to, body string)
}

type Options struct {
	Workers    int
	BufferSize int
}

// Dispatcher notifies matching subscribers about new moderate or severe events.
// Dispatch runs one cycle and waits for every send; Notify queues a cycle and returns.
type Dispatcher struct {
	matcher *Matcher
	mailer  Mailer
	texter  Texter
	logger  *slog.Logger
	metrics *observability.Metrics
	pool    *worker.WorkerPool
}

func NewDispatcher(matcher *Matcher, mailer Mailer, texter Texter, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Dispatcher {
	d := &Dispatcher{
		matcher: matcher,
		mailer:  mailer,
		texter:  texter,
		logger:  logger,
		metrics: metrics,
	}
	d.pool = worker.NewWorkerPool(opts.Workers, opts.BufferSize, d.processJob, logger)
	return d
}

// Start launches the background workers that serve Notify.
func (d *Dispatcher) Start(ctx context.Context) {
	d.pool.Start(ctx)
}

// Stop finishes queued cycles and stops the workers.
func (d *Dispatcher) Stop() {
	d.pool.Stop()
}

// Notify hands the event to a background worker without blocking. When the
// queue is full the event is dropped and logged; there is no retry.
func (d *Dispatcher) Notify(event *models.DisasterEvent) {
	if event == nil {
		return
	}
	if !event.Severity.Escalates() {
		d.metrics.Dispatches.WithLabelValues("skipped").Inc()
		return
	}

	ev := *event
	if err := d.pool.TrySubmit(&ev); err != nil {
		d.logger.Error("alert queue rejected event", "event_id", ev.ID, "error", err)
		d.metrics.QueueDropped.Inc()
	}
}

func (d *Dispatcher) processJob(ctx context.Context, job worker.Job) error {
	event, ok := job.(*models.DisasterEvent)
	if !ok {
		return fmt.Errorf("unexpected job type %T", job)
	}
	d.Dispatch(ctx, event)
	return nil
}

// Dispatch runs one notification cycle for event. It never returns an error
// and never panics; every failure ends in a log line and a metric.
func (d *Dispatcher) Dispatch(ctx context.Context, event *models.DisasterEvent) {
	if event == nil {
		return
	}

	logger := d.logger.With("dispatch_id", uuid.NewString(), "event_id", event.ID)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("alert dispatch panicked", "panic", r)
			d.metrics.Dispatches.WithLabelValues("failed").Inc()
		}
	}()

	if !event.Severity.Escalates() {
		logger.Debug("severity below alert threshold", "severity", event.Severity)
		d.metrics.Dispatches.WithLabelValues("skipped").Inc()
		return
	}

	if !geo.Valid(event.Lat, event.Lng) {
		logger.Error("event has invalid coordinates", "lat", event.Lat, "lng", event.Lng)
		d.metrics.Dispatches.WithLabelValues("failed").Inc()
		return
	}

	start := time.Now()

	subs, err := d.matcher.FindMatches(ctx, event)
	if err != nil {
		logger.Error("failed to find matching subscriptions", "error", err)
		d.metrics.Dispatches.WithLabelValues("failed").Inc()
		return
	}
	d.metrics.MatchedSubscriptions.Observe(float64(len(subs)))
	if len(subs) == 0 {
		logger.Debug("no subscriptions matched")
		d.metrics.Dispatches.WithLabelValues("no_match").Inc()
		return
	}

	msg := Compose(event)
	sends := d.fanOut(ctx, logger, subs, msg)

	d.metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	d.metrics.Dispatches.WithLabelValues("dispatched").Inc()
	logger.Info("alert dispatched",
		"type", event.Type,
		"severity", event.Severity,
		"matched", len(subs),
		"sends", sends,
		"duration", time.Since(start),
	)
}

// fanOut issues every eligible send concurrently and waits for all of them.
func (d *Dispatcher) fanOut(ctx context.Context, logger *slog.Logger, subs []models.AlertSubscription, msg models.Message) int {
	var wg sync.WaitGroup
	sends := 0

	run := func(subID int64, channel models.Channel, send func()) {
		sends++
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("notification send panicked", "subscription_id", subID, "channel", channel, "panic", r)
				}
			}()
			send()
		}()
	}

	for i := range subs {
		sub := &subs[i]

		if sub.WantsChannel(models.ChannelEmail) {
			if to := sub.EmailAddress(); to != "" {
				run(sub.ID, models.ChannelEmail, func() { d.mailer.SendEmail(ctx, to, msg.Subject, msg.HTML) })
			} else {
				logger.Debug("email channel selected without address", "subscription_id", sub.ID)
			}
		}

		if sub.WantsChannel(models.ChannelSMS) {
			if to := sub.PhoneNumber(); to != "" {
				run(sub.ID, models.ChannelSMS, func() { d.texter.SendSMS(ctx, to, msg.SMS) })
			} else {
				logger.Debug("sms channel selected without phone", "subscription_id", sub.ID)
			}
		}
	}

	wg.Wait()
	return sends
}
