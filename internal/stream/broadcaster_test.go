package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/mr1hm/disasterwatch/internal/models"
	"github.com/mr1hm/disasterwatch/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func event(id int64, typ models.DisasterType, sev models.Severity) *models.DisasterEvent {
	return &models.DisasterEvent{ID: id, Type: typ, Severity: sev}
}

func TestBroadcaster_SubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	id, ch := b.Subscribe(Filter{})
	if b.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber, got %d", b.SubscriberCount())
	}

	b.Unsubscribe(id)
	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", b.SubscriberCount())
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed")
		}
	default:
		t.Error("channel should be closed and readable")
	}
}

func TestBroadcaster_Broadcast(t *testing.T) {
	b := NewBroadcaster()

	id, ch := b.Subscribe(Filter{})
	defer b.Unsubscribe(id)

	b.Broadcast(event(42, models.DisasterTypeEarthquake, models.SeveritySevere))

	select {
	case received := <-ch:
		if received.ID != 42 {
			t.Errorf("expected ID 42, got %d", received.ID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for broadcast")
	}
}

func TestBroadcaster_Filter(t *testing.T) {
	b := NewBroadcaster()

	id, ch := b.Subscribe(Filter{Type: models.DisasterTypeFlood, MinSeverity: models.SeverityModerate})
	defer b.Unsubscribe(id)

	b.Broadcast(event(1, models.DisasterTypeEarthquake, models.SeveritySevere))
	b.Broadcast(event(2, models.DisasterTypeFlood, models.SeverityLow))
	b.Broadcast(event(3, models.DisasterTypeFlood, models.SeveritySevere))

	select {
	case received := <-ch:
		if received.ID != 3 {
			t.Errorf("expected only event 3, got %d", received.ID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for broadcast")
	}

	select {
	case extra := <-ch:
		t.Errorf("unexpected extra event %d", extra.ID)
	default:
	}
}

func TestBroadcaster_ConcurrentSubscribeBroadcast(t *testing.T) {
	b := NewBroadcaster()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, ch := b.Subscribe(Filter{})
			done := make(chan struct{})
			go func() {
				defer close(done)
				for range ch {
				}
			}()
			time.Sleep(5 * time.Millisecond)
			b.Unsubscribe(id)
			<-done
		}()
	}

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b.Broadcast(event(int64(n), models.DisasterTypeStorm, models.SeverityModerate))
		}(i)
	}

	wg.Wait()

	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", b.SubscriberCount())
	}
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster()

	var channels []<-chan *models.DisasterEvent
	for i := 0; i < 5; i++ {
		_, ch := b.Subscribe(Filter{})
		channels = append(channels, ch)
	}

	b.Close()

	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after close, got %d", b.SubscriberCount())
	}
	for i, ch := range channels {
		if _, ok := <-ch; ok {
			t.Errorf("channel %d should be closed", i)
		}
	}

	// Subscribing after Close yields a closed stream
	id, late := b.Subscribe(Filter{})
	if _, ok := <-late; ok {
		t.Error("expected late subscriber channel to be closed")
	}
	b.Unsubscribe(id)
}

func TestBroadcaster_SlowSubscriber(t *testing.T) {
	b := NewBroadcaster()

	id, ch := b.Subscribe(Filter{})
	defer b.Unsubscribe(id)

	for i := 0; i < subscriberBuffer+1; i++ {
		b.Broadcast(event(int64(i), models.DisasterTypeFlood, models.SeveritySevere))
	}

	if len(ch) != subscriberBuffer {
		t.Errorf("expected buffer to be full at %d, got %d", subscriberBuffer, len(ch))
	}
	if b.Dropped() != 1 {
		t.Errorf("expected 1 dropped delivery, got %d", b.Dropped())
	}
}

func TestBroadcaster_ScrapedStats(t *testing.T) {
	b := NewBroadcaster()
	collectors := observability.StreamCollectors(b)

	id, _ := b.Subscribe(Filter{})
	for i := 0; i < subscriberBuffer+3; i++ {
		b.Broadcast(event(int64(i), models.DisasterTypeStorm, models.SeverityModerate))
	}

	if got := testutil.ToFloat64(collectors[0]); got != 1 {
		t.Errorf("expected 1 subscriber scraped, got %v", got)
	}
	if got := testutil.ToFloat64(collectors[1]); got != 3 {
		t.Errorf("expected 3 dropped scraped, got %v", got)
	}

	b.Unsubscribe(id)
	if got := testutil.ToFloat64(collectors[0]); got != 0 {
		t.Errorf("expected 0 subscribers after unsubscribe, got %v", got)
	}
}
