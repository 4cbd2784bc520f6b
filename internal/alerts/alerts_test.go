package alerts

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mr1hm/disasterwatch/internal/logging"
	"github.com/mr1hm/disasterwatch/internal/models"
	"github.com/mr1hm/disasterwatch/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func ptr[T any](v T) *T { return &v }

type fakeFinder struct {
	mu    sync.Mutex
	subs  []models.AlertSubscription
	err   error
	calls int
}

func (f *fakeFinder) SubscriptionsByCategory(_ context.Context, category models.DisasterType) ([]models.AlertSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.AlertSubscription
	for _, s := range f.subs {
		if s.WantsCategory(category) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeFinder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type sent struct {
	to      string
	subject string
	body    string
}

type recorder struct {
	mu     sync.Mutex
	emails []sent
	texts  []sent
	panics map[string]bool
}

func (r *recorder) SendEmail(_ context.Context, to, subject, html string) {
	if r.panics[to] {
		panic("provider exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, sent{to: to, subject: subject, body: html})
}

func (r *recorder) SendSMS(_ context.Context, to, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, sent{to: to, body: body})
}

func (r *recorder) emailCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.emails)
}

func (r *recorder) textCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.texts)
}

func newTestDispatcher(finder SubscriptionFinder, rec *recorder, metrics *observability.Metrics) *Dispatcher {
	logger := logging.Discard()
	return NewDispatcher(NewMatcher(finder, logger), rec, rec, logger, metrics, Options{Workers: 2, BufferSize: 4})
}

func testEvent(sev models.Severity) *models.DisasterEvent {
	return &models.DisasterEvent{
		ID:        7,
		Type:      models.DisasterTypeEarthquake,
		Title:     "M6.1 near Testville",
		Location:  "Testville",
		Severity:  sev,
		Magnitude: ptr(6.1),
		Lat:       35.0,
		Lng:       139.0,
		Timestamp: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		IsActive:  true,
	}
}

func nearbySub(id int64, channels string) models.AlertSubscription {
	return models.AlertSubscription{
		ID:         id,
		UserID:     "user",
		Lat:        35.01,
		Lng:        139.01,
		RadiusKm:   50,
		Categories: "earthquake",
		Channels:   channels,
	}
}
