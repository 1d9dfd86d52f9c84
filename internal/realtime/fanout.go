package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dwarvesf/paylink-backend/internal/model"
	"github.com/dwarvesf/paylink-backend/internal/monitoring"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

// Fanout moves events between processes over one Redis channel. Every
// process publishes to it and every process delivers what it receives to
// the sessions it holds.
type Fanout struct {
	rdb     redis.UniversalClient
	channel string
	hub     *Hub
	metrics *monitoring.RealtimeMetrics
	logger  *logger.Logger
}

func NewFanout(rdb redis.UniversalClient, channel string, hub *Hub, metrics *monitoring.RealtimeMetrics, logger *logger.Logger) *Fanout {
	return &Fanout{
		rdb:     rdb,
		channel: channel,
		hub:     hub,
		metrics: metrics,
		logger:  logger.With(map[string]string{"component": "fanout"}),
	}
}

func (f *Fanout) Broadcast(ctx context.Context, event Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		f.metrics.RecordPublished("error")
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := f.rdb.Publish(ctx, f.channel, raw).Err(); err != nil {
		f.metrics.RecordPublished("error")
		return fmt.Errorf("publish event: %w", err)
	}
	f.metrics.RecordPublished("ok")
	return nil
}

// Run delivers events from the channel until ctx is done.
func (f *Fanout) Run(ctx context.Context) error {
	sub, err := f.subscribe(ctx)
	if err != nil {
		return err
	}
	return f.consume(ctx, sub)
}

func (f *Fanout) subscribe(ctx context.Context) (*redis.PubSub, error) {
	sub := f.rdb.Subscribe(ctx, f.channel)
	// the first reply confirms the subscription
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", f.channel, err)
	}
	f.logger.Info("[Fanout] subscribed", map[string]string{"channel": f.channel})
	return sub, nil
}

func (f *Fanout) consume(ctx context.Context, sub *redis.PubSub) error {
	defer sub.Close()

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("[Fanout] stopped")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("subscription to %s closed", f.channel)
			}
			f.deliver(msg.Payload)
		}
	}
}

func (f *Fanout) deliver(raw string) {
	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		f.logger.Warn("[Fanout][Deliver] dropping malformed event", map[string]string{"error": err.Error()})
		return
	}
	route, delivered := f.hub.Dispatch(event)
	f.metrics.RecordDelivered(route, delivered)
}

// Notifier publishes settlement progress to the payment link's room.
type Notifier struct {
	fanout *Fanout
}

func NewNotifier(fanout *Fanout) *Notifier {
	return &Notifier{fanout: fanout}
}

func (n *Notifier) Notify(ctx context.Context, event model.PaymentEvent) error {
	return n.fanout.Broadcast(ctx, FromPaymentEvent(event))
}

// NotifySeller publishes event to every connection of the link's seller.
func (n *Notifier) NotifySeller(ctx context.Context, event model.PaymentEvent) error {
	return n.fanout.Broadcast(ctx, Event{
		Type:      string(event.Type),
		SellerID:  event.SellerID,
		Data:      event.Data,
		Timestamp: event.Timestamp,
	})
}
