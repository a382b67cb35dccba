// Package events fans item events out to live subscribers.
package events

import (
	"sync"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/todoapi/internal/model"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 64

// Broker delivers published events to every current subscriber.
// Publish never blocks: a subscriber whose buffer is full misses the event.
type Broker struct {
	mu         sync.RWMutex
	subs       map[chan model.ItemEvent]struct{}
	bufferSize int
	closed     bool
	logger     *zap.Logger
}

// NewBroker creates a new Broker instance.
func NewBroker(logger *zap.Logger) *Broker {
	return &Broker{
		subs:       make(map[chan model.ItemEvent]struct{}),
		bufferSize: DefaultBufferSize,
		logger:     logger,
	}
}

// Publish sends event to all subscribers.
func (b *Broker) Publish(event model.ItemEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("dropping item event for slow subscriber", zap.String("type", event.Type))
		}
	}
}

// Subscribe registers a new subscriber. The returned function unsubscribes
// and closes the channel; it is safe to call more than once.
func (b *Broker) Subscribe() (<-chan model.ItemEvent, func()) {
	ch := make(chan model.ItemEvent, b.bufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
}

// Subscribers returns the number of active subscribers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel and rejects new subscriptions.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
}
