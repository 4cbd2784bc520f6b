package alerts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/disasterwatch/internal/logging"
	"github.com/mr1hm/disasterwatch/internal/models"
	"github.com/mr1hm/disasterwatch/internal/notify"
	"github.com/mr1hm/disasterwatch/internal/observability"
	"github.com/mr1hm/disasterwatch/internal/repository"
)

func TestDispatch_LowSeverityNeverMatches(t *testing.T) {
	finder := &fakeFinder{subs: []models.AlertSubscription{nearbySub(1, "email,sms")}}
	finder.subs[0].Email = ptr("a@x.com")
	finder.subs[0].Phone = ptr("+15550001")
	rec := &recorder{}
	metrics := observability.NewMetricsForTesting()
	d := newTestDispatcher(finder, rec, metrics)

	for _, sev := range []models.Severity{models.SeverityLow, "LOW", "unknown", ""} {
		d.Dispatch(context.Background(), testEvent(sev))
	}

	assert.Equal(t, 0, finder.callCount())
	assert.Equal(t, 0, rec.emailCount())
	assert.Equal(t, 0, rec.textCount())
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.Dispatches.WithLabelValues("skipped")))
}

func TestDispatch_EmailOnlySubscription(t *testing.T) {
	sub := nearbySub(1, "email")
	sub.Email = ptr("a@x.com")
	sub.Phone = ptr("+15550001")
	finder := &fakeFinder{subs: []models.AlertSubscription{sub}}
	rec := &recorder{}
	metrics := observability.NewMetricsForTesting()

	newTestDispatcher(finder, rec, metrics).Dispatch(context.Background(), testEvent(models.SeveritySevere))

	require.Equal(t, 1, rec.emailCount())
	assert.Equal(t, 0, rec.textCount())
	assert.Equal(t, "a@x.com", rec.emails[0].to)
	assert.Equal(t, "High-risk earthquake near Testville", rec.emails[0].subject)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Dispatches.WithLabelValues("dispatched")))
}

func TestDispatch_MissingContactSkipsChannelOnly(t *testing.T) {
	sub := nearbySub(1, "email,sms")
	sub.Email = ptr("a@x.com")
	blankPhone := nearbySub(2, "sms")
	blankPhone.Phone = ptr("   ")
	finder := &fakeFinder{subs: []models.AlertSubscription{sub, blankPhone}}
	rec := &recorder{}

	newTestDispatcher(finder, rec, observability.NewMetricsForTesting()).Dispatch(context.Background(), testEvent(models.SeverityModerate))

	assert.Equal(t, 1, rec.emailCount())
	assert.Equal(t, 0, rec.textCount())
}

func TestDispatch_BothChannels(t *testing.T) {
	sub := nearbySub(1, "sms, email")
	sub.Email = ptr("a@x.com")
	sub.Phone = ptr("+15550001")
	finder := &fakeFinder{subs: []models.AlertSubscription{sub}}
	rec := &recorder{}

	newTestDispatcher(finder, rec, observability.NewMetricsForTesting()).Dispatch(context.Background(), testEvent(models.SeveritySevere))

	require.Equal(t, 1, rec.emailCount())
	require.Equal(t, 1, rec.textCount())
	assert.Equal(t, "+15550001", rec.texts[0].to)
	assert.True(t, strings.HasPrefix(rec.texts[0].body, "High-risk earthquake near Testville: M6.1 near Testville."))
}

func TestDispatch_CapsRecipients(t *testing.T) {
	finder := &fakeFinder{}
	for i := 1; i <= 130; i++ {
		sub := nearbySub(int64(i), "email")
		sub.Email = ptr("user@x.com")
		finder.subs = append(finder.subs, sub)
	}
	rec := &recorder{}
	metrics := observability.NewMetricsForTesting()

	newTestDispatcher(finder, rec, metrics).Dispatch(context.Background(), testEvent(models.SeveritySevere))

	assert.Equal(t, MaxRecipients, rec.emailCount())
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.MatchedSubscriptions))
}

func TestDispatch_OneFailingRecipientDoesNotBlockOthers(t *testing.T) {
	var subs []models.AlertSubscription
	for i, addr := range []string{"ok1@x.com", "bad@x.com", "ok2@x.com"} {
		sub := nearbySub(int64(i+1), "email")
		sub.Email = ptr(addr)
		subs = append(subs, sub)
	}
	rec := &recorder{panics: map[string]bool{"bad@x.com": true}}

	newTestDispatcher(&fakeFinder{subs: subs}, rec, observability.NewMetricsForTesting()).
		Dispatch(context.Background(), testEvent(models.SeveritySevere))

	require.Equal(t, 2, rec.emailCount())
	got := []string{rec.emails[0].to, rec.emails[1].to}
	assert.ElementsMatch(t, []string{"ok1@x.com", "ok2@x.com"}, got)
}

type failingProvider struct {
	mu   sync.Mutex
	sent []string
}

func (p *failingProvider) Name() string       { return "flaky" }
func (p *failingProvider) IsConfigured() bool { return true }

func (p *failingProvider) Send(_ context.Context, to, _, _ string) error {
	if to == "bad@x.com" {
		return errors.New("mailbox unavailable")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, to)
	return nil
}

func TestDispatch_ProviderErrorIsContained(t *testing.T) {
	var subs []models.AlertSubscription
	for i, addr := range []string{"bad@x.com", "ok@x.com"} {
		sub := nearbySub(int64(i+1), "email")
		sub.Email = ptr(addr)
		subs = append(subs, sub)
	}
	provider := &failingProvider{}
	metrics := observability.NewMetricsForTesting()
	logger := logging.Discard()
	mailer := notify.NewEmailSender([]notify.EmailProvider{provider}, time.Second, logger, metrics)
	texter := notify.NewSMSSender(nil, time.Second, logger, metrics)

	d := NewDispatcher(NewMatcher(&fakeFinder{subs: subs}, logger), mailer, texter, logger, metrics, Options{Workers: 1})
	d.Dispatch(context.Background(), testEvent(models.SeveritySevere))

	assert.Equal(t, []string{"ok@x.com"}, provider.sent)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Notifications.WithLabelValues("email", "flaky", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Notifications.WithLabelValues("email", "flaky", "sent")))
}

func TestDispatch_StorageErrorIsLogged(t *testing.T) {
	rec := &recorder{}
	metrics := observability.NewMetricsForTesting()
	d := newTestDispatcher(&fakeFinder{err: errors.New("disk I/O error")}, rec, metrics)

	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), testEvent(models.SeveritySevere))
	})
	assert.Equal(t, 0, rec.emailCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Dispatches.WithLabelValues("failed")))
}

func TestDispatch_NoMatches(t *testing.T) {
	far := nearbySub(1, "email")
	far.Lat, far.Lng = -35, -139
	far.Email = ptr("a@x.com")
	rec := &recorder{}
	metrics := observability.NewMetricsForTesting()

	newTestDispatcher(&fakeFinder{subs: []models.AlertSubscription{far}}, rec, metrics).
		Dispatch(context.Background(), testEvent(models.SeverityModerate))

	assert.Equal(t, 0, rec.emailCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Dispatches.WithLabelValues("no_match")))
}

func TestNotify_RunsInBackground(t *testing.T) {
	sub := nearbySub(1, "email")
	sub.Email = ptr("a@x.com")
	rec := &recorder{}
	d := newTestDispatcher(&fakeFinder{subs: []models.AlertSubscription{sub}}, rec, observability.NewMetricsForTesting())

	d.Start(context.Background())
	event := testEvent(models.SeveritySevere)
	d.Notify(event)
	event.Title = "mutated after notify"
	d.Stop()

	require.Equal(t, 1, rec.emailCount())
	assert.NotContains(t, rec.emails[0].body, "mutated")
}

func TestNotify_DropsWhenQueueFull(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	logger := logging.Discard()
	rec := &recorder{}
	// Workers never started and no buffer: every submit is rejected
	d := NewDispatcher(NewMatcher(&fakeFinder{}, logger), rec, rec, logger, metrics, Options{Workers: 1, BufferSize: 0})

	d.Notify(testEvent(models.SeveritySevere))
	d.Notify(testEvent(models.SeverityLow))
	d.Stop()

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QueueDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Dispatches.WithLabelValues("skipped")))
}

type capturingProvider struct {
	mu      sync.Mutex
	to      []string
	subject string
	html    string
}

func (p *capturingProvider) Name() string       { return "capture" }
func (p *capturingProvider) IsConfigured() bool { return true }

func (p *capturingProvider) Send(_ context.Context, to, subject, html string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.to = append(p.to, to)
	p.subject = subject
	p.html = html
	return nil
}

func TestDispatch_FloodEndToEnd(t *testing.T) {
	ctx := context.Background()
	db, err := repository.NewSQLiteDB(":memory:", clockwork.NewFakeClock())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.UpsertSubscription(ctx, &models.AlertSubscription{
		UserID:     "user-a",
		Lat:        28.7,
		Lng:        77.1,
		RadiusKm:   100,
		Categories: "flood,earthquake",
		Channels:   "email",
		Email:      ptr("a@example.com"),
	}))

	event := &models.DisasterEvent{
		UserID:    "reporter",
		Type:      models.DisasterTypeFlood,
		Title:     "Yamuna overflowing",
		Location:  "New Delhi",
		Severity:  models.SeverityModerate,
		Lat:       28.6,
		Lng:       77.2,
		Timestamp: time.Date(2025, 7, 1, 6, 0, 0, 0, time.UTC),
		IsActive:  true,
	}
	require.NoError(t, db.AddDisaster(ctx, event))

	provider := &capturingProvider{}
	metrics := observability.NewMetricsForTesting()
	logger := logging.Discard()
	mailer := notify.NewEmailSender([]notify.EmailProvider{provider}, time.Second, logger, metrics)
	texter := notify.NewSMSSender(nil, time.Second, logger, metrics)

	d := NewDispatcher(NewMatcher(db, logger), mailer, texter, logger, metrics, Options{Workers: 1, BufferSize: 1})
	d.Dispatch(ctx, event)

	assert.Equal(t, []string{"a@example.com"}, provider.to)
	assert.Contains(t, provider.subject, "flood")
	assert.Contains(t, provider.html, "moderate")
	assert.Contains(t, provider.html, "Stay safe and follow local guidelines.")
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.Notifications.WithLabelValues("sms", "none", "unconfigured")))
}
