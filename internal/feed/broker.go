package feed

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/glyph-controller/internal/state"
)

// #region broker
// Broker fans decision records out to subscribers. Publish never blocks:
// a subscriber whose buffer is full misses the record.
type Broker struct {
	mu      sync.Mutex
	subs    map[uint64]chan state.DecisionRecord
	next    uint64
	closed  bool
	dropped atomic.Uint64
	logger  *zap.Logger
}

// NewBroker creates an empty broker.
func NewBroker(logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		subs:   make(map[uint64]chan state.DecisionRecord),
		logger: logger.Named("feed"),
	}
}

// #endregion broker

// #region publish
// Publish delivers rec to every subscriber with buffer space and returns
// how many received it.
func (b *Broker) Publish(rec state.DecisionRecord) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}
	delivered := 0
	for id, ch := range b.subs {
		select {
		case ch <- rec:
			delivered++
		default:
			b.dropped.Add(1)
			b.logger.Debug("subscriber buffer full, record dropped",
				zap.Uint64("subscriber", id),
				zap.Int64("tick", rec.Tick),
			)
		}
	}
	return delivered
}

// #endregion publish

// #region subscribe
// Subscribe registers a subscriber with the given buffer size. The returned
// cancel func unregisters it and closes the channel; it is safe to call
// more than once. Subscribing to a closed broker yields a closed channel.
func (b *Broker) Subscribe(buffer int) (<-chan state.DecisionRecord, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan state.DecisionRecord, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// #endregion subscribe

// #region close
// Close closes every subscriber channel. Later publishes are no-ops.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of live subscribers.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a buffer was full.
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}

// #endregion close
