// Package mq publishes order and delivery lifecycle events on a Redis
// pub/sub channel and runs the listener that consumes them.
package mq

import (
	"context"
	"encoding/json"
	"time"

	"farmgate/logging"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const Channel = "order-events"

const (
	OrderPlaced      = "order.placed"
	OrderConfirmed   = "order.confirmed"
	OrderCancelled   = "order.cancelled"
	OrderStatus      = "order.status"
	DeliveryAccepted = "delivery.accepted"
	DeliveryPrefix   = "delivery."
)

// Event is one lifecycle notification.
type Event struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"orderId"`
	DeliveryID string    `json:"deliveryId,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	Status     string    `json:"status,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher is what services depend on.
type Publisher interface {
	Emit(ctx context.Context, ev Event)
}

// Emitter publishes events to Redis. Publishing is best effort: failures
// are logged and never fail the calling operation.
type Emitter struct {
	conn    *redis.Client
	channel string
}

func NewEmitter(conn *redis.Client) *Emitter {
	return &Emitter{conn: conn, channel: Channel}
}

func (e *Emitter) Emit(ctx context.Context, ev Event) {
	log := logging.FromContext(ctx)
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		log.Error("marshal event", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	// detached from the request so a finished response does not drop the event
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := e.conn.Publish(pubCtx, e.channel, data).Err(); err != nil {
		log.Warn("publish event", zap.String("type", ev.Type), zap.String("order", ev.OrderID), zap.Error(err))
		return
	}
	log.Debug("event published", zap.String("type", ev.Type), zap.String("order", ev.OrderID))
}

// Listen consumes the channel until ctx is done, passing every decoded
// event to handle.
func (e *Emitter) Listen(ctx context.Context, handle func(context.Context, Event)) error {
	sub := e.conn.Subscribe(ctx, e.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	log := logging.FromContext(ctx)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn("undecodable event", zap.Error(err))
				continue
			}
			handle(ctx, ev)
		}
	}
}

// Discard drops every event; used when Redis is not configured.
type Discard struct{}

func (Discard) Emit(context.Context, Event) {}

// Recorder keeps emitted events in memory.
type Recorder struct {
	ch chan Event
}

func NewRecorder(size int) *Recorder { return &Recorder{ch: make(chan Event, size)} }

func (r *Recorder) Emit(_ context.Context, ev Event) {
	select {
	case r.ch <- ev:
	default:
	}
}

// Events drains what has been recorded so far.
func (r *Recorder) Events() []Event {
	var out []Event
	for {
		select {
		case ev := <-r.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}
