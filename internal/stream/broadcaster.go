package stream

import (
	"sync"
	"sync/atomic"

	"github.com/mr1hm/disasterwatch/internal/models"
)

const subscriberBuffer = 32

// Filter narrows what a subscriber receives. Zero value passes everything.
type Filter struct {
	Type        models.DisasterType
	MinSeverity models.Severity
}

func (f Filter) allows(d *models.DisasterEvent) bool {
	if f.Type != "" && f.Type != d.Type {
		return false
	}
	if f.MinSeverity != "" && d.Severity.Rank() < f.MinSeverity.Rank() {
		return false
	}
	return true
}

type subscriber struct {
	ch     chan *models.DisasterEvent
	filter Filter
}

// Broadcaster fans newly created events out to live stream subscribers.
// A subscriber whose buffer is full misses the event rather than blocking others.
type Broadcaster struct {
	subscribers map[uint64]subscriber
	nextID      atomic.Uint64
	dropped     atomic.Uint64
	mu          sync.RWMutex
	closed      bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]subscriber),
	}
}

// Subscribe registers a listener. The returned channel is closed by
// Unsubscribe or Close; after Close it is returned already closed.
func (b *Broadcaster) Subscribe(filter Filter) (uint64, <-chan *models.DisasterEvent) {
	id := b.nextID.Add(1)
	ch := make(chan *models.DisasterEvent, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = subscriber{ch: ch, filter: filter}
	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Broadcast(d *models.DisasterEvent) {
	if d == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if !sub.filter.allows(d) {
			continue
		}
		select {
		case sub.ch <- d:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped counts deliveries skipped because a subscriber was not keeping up.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Close ends every stream. Later subscribers get a closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}
