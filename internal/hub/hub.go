package hub

import (
	"sync"

	"github.com/eternalApril/updown/internal/command"
	"github.com/eternalApril/updown/internal/metrics"
	"github.com/eternalApril/updown/internal/resplite"
	"go.uber.org/zap"
)

// Subscriber receives payloads published on the hub.
// Deliver must not block; it returns false when the payload was dropped
type Subscriber interface {
	Deliver(payload string) bool
}

// Hub is the single global topic every connected client is subscribed to.
// The number of subscribers is the connected-user count reported by INFO
type Hub struct {
	mu      sync.RWMutex
	subs    map[Subscriber]struct{}
	metrics *metrics.Registry
	logger  *zap.Logger
}

// New creates an empty hub. m may be nil
func New(logger *zap.Logger, m *metrics.Registry) *Hub {
	return &Hub{
		subs:    make(map[Subscriber]struct{}),
		metrics: m,
		logger:  logger,
	}
}

// Join subscribes s and announces the new count to every subscriber, s included
func (h *Hub) Join(s Subscriber) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subs[s] = struct{}{}
	count := int64(len(h.subs))
	h.setGauge(count)
	h.announce(count)

	return count
}

// Leave unsubscribes s and, if anyone is left, announces the new count
func (h *Hub) Leave(s Subscriber) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[s]; !ok {
		return int64(len(h.subs))
	}

	delete(h.subs, s)
	count := int64(len(h.subs))
	h.setGauge(count)
	if count > 0 {
		h.announce(count)
	}

	return count
}

// Publish delivers payload to every subscriber except except, which may be nil.
// It returns the number of subscribers that accepted the payload
func (h *Hub) Publish(payload string, except Subscriber) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.metrics != nil {
		h.metrics.Broadcasts.Inc()
	}

	return h.deliver(payload, except)
}

// Connected returns the number of subscribers
func (h *Hub) Connected() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return int64(len(h.subs))
}

// announce must be called with the lock held so INFO messages are delivered in count order
func (h *Hub) announce(count int64) {
	payload, err := command.Encode(command.Info{ConnectedUsers: count})
	if err != nil {
		h.logger.Error("encode info", zap.Error(err))
		return
	}

	if h.logger.Core().Enabled(zap.DebugLevel) {
		h.logger.Debug("announce connected users", zap.Int64("connected", count))
	}

	h.deliver(payload, nil)
}

func (h *Hub) deliver(payload string, except Subscriber) int {
	delivered := 0
	for s := range h.subs {
		if except != nil && s == except {
			continue
		}
		if s.Deliver(payload) {
			delivered++
			continue
		}
		if h.metrics != nil {
			h.metrics.DroppedMessages.Inc()
		}
	}
	return delivered
}

func (h *Hub) setGauge(count int64) {
	if h.metrics != nil {
		h.metrics.ConnectedUsers.Set(float64(count))
	}
}

// PublishValue encodes v and publishes it
func (h *Hub) PublishValue(v resplite.Value, except Subscriber) (int, error) {
	payload, err := resplite.Encode(v)
	if err != nil {
		return 0, err
	}
	return h.Publish(payload, except), nil
}
