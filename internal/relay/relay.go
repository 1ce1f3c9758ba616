// Package relay fans broadcasts out to other server instances over Redis pub/sub.
//
// Every payload travels inside an envelope, itself a RESP-lite array of the
// publishing instance id and the value it carries:
//
//	*2\r\n+<instance id>\r\n<value>
//
// Instances drop envelopes they published themselves, since their own
// subscribers were served locally.
package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/eternalApril/updown/internal/hub"
	"github.com/eternalApril/updown/internal/metrics"
	"github.com/eternalApril/updown/internal/resplite"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrEnvelope = errors.New("relay: malformed envelope")

// Relay connects a local hub to a Redis channel shared by all instances
type Relay struct {
	client  redis.UniversalClient
	channel string
	id      string
	hub     *hub.Hub
	metrics *metrics.Registry
	logger  *zap.Logger
}

// New creates a relay with a fresh instance id. m may be nil
func New(client redis.UniversalClient, channel string, h *hub.Hub, logger *zap.Logger, m *metrics.Registry) *Relay {
	id := ulid.Make().String()

	return &Relay{
		client:  client,
		channel: channel,
		id:      id,
		hub:     h,
		metrics: m,
		logger:  logger.With(zap.String("instance", id)),
	}
}

// ID returns the instance id stamped on outgoing envelopes
func (r *Relay) ID() string {
	return r.id
}

// Publish sends v to the other instances
func (r *Relay) Publish(ctx context.Context, v resplite.Value) error {
	payload, err := Wrap(r.id, v)
	if err != nil {
		return err
	}

	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("relay publish: %w", err)
	}

	r.count("out")
	return nil
}

// Run subscribes to the channel and republishes foreign envelopes on the hub until ctx is done
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close() //nolint:errcheck

	// wait for the subscription confirmation so a failing Redis is reported to the caller
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("relay subscribe: %w", err)
	}

	r.logger.Info("relay subscribed", zap.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *Relay) handle(payload string) {
	origin, v, err := Unwrap(payload)
	if err != nil {
		r.logger.Warn("drop relay message", zap.Error(err))
		return
	}
	if origin == r.id {
		return
	}

	if _, err := r.hub.PublishValue(v, nil); err != nil {
		r.logger.Warn("drop relay message", zap.Error(err))
		return
	}
	r.count("in")
}

func (r *Relay) count(direction string) {
	if r.metrics != nil {
		r.metrics.RelayedMessages.WithLabelValues(direction).Inc()
	}
}

// Wrap encodes v inside an envelope stamped with origin
func Wrap(origin string, v resplite.Value) (string, error) {
	return resplite.Encode(resplite.MakeArray(resplite.MakeSimpleString(origin), v))
}

// Unwrap parses an envelope produced by Wrap
func Unwrap(payload string) (string, resplite.Value, error) {
	env, err := resplite.Parse(payload)
	if err != nil {
		return "", resplite.Value{}, fmt.Errorf("%w: %w", ErrEnvelope, err)
	}

	if env.Type != resplite.TypeArray || len(env.Array) != 2 || env.Array[0].Type != resplite.TypeSimpleString {
		return "", resplite.Value{}, ErrEnvelope
	}

	return env.Array[0].String, env.Array[1], nil
}
