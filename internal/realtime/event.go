package realtime

import (
	"time"

	"github.com/dwarvesf/paylink-backend/internal/model"
)

// Event is one notification on the shared event channel. Exactly one routing
// field is honored, in this order: Broadcast, ConnectionID, PaymentLinkID,
// SellerID.
type Event struct {
	Type          string                 `json:"type"`
	SellerID      string                 `json:"sellerId,omitempty"`
	PaymentLinkID string                 `json:"paymentLinkId,omitempty"`
	ConnectionID  string                 `json:"connectionId,omitempty"`
	Broadcast     bool                   `json:"broadcast,omitempty"`
	Data          map[string]interface{} `json:"data"`
	Timestamp     time.Time              `json:"timestamp"`
}

// FromPaymentEvent addresses a payment event to the link's room.
func FromPaymentEvent(e model.PaymentEvent) Event {
	return Event{
		Type:          string(e.Type),
		PaymentLinkID: e.PaymentLinkID,
		Data:          e.Data,
		Timestamp:     e.Timestamp,
	}
}

// Payload is what a client receives.
func (e Event) Payload() map[string]interface{} {
	return map[string]interface{}{
		"type":      e.Type,
		"data":      e.Data,
		"timestamp": e.Timestamp,
	}
}

const (
	routeBroadcast  = "broadcast"
	routeConnection = "connection"
	routePayment    = "payment"
	routeSeller     = "seller"
	routeNone       = "none"
)

func (e Event) route() string {
	switch {
	case e.Broadcast:
		return routeBroadcast
	case e.ConnectionID != "":
		return routeConnection
	case e.PaymentLinkID != "":
		return routePayment
	case e.SellerID != "":
		return routeSeller
	}
	return routeNone
}

func sellerRoom(sellerID string) string {
	return "seller:" + sellerID
}

func paymentRoom(linkID string) string {
	return "payment:" + linkID
}

// Message is a request sent by a client.
type Message struct {
	Type          string `json:"type"`
	PaymentLinkID string `json:"paymentLinkId,omitempty"`
}

const (
	MessageSubscribe   = "subscribe"
	MessageUnsubscribe = "unsubscribe"
	MessagePing        = "ping"
)

// Names of the events the hub emits to a single session.
const (
	EventConnected    = "connected"
	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
	EventPong         = "pong"
	EventError        = "error"
	EventRateLimited  = "rate_limited"
)

// Session is one live client connection owned by a transport.
type Session interface {
	ID() string
	Emit(event string, payload interface{}) error
	Close() error
}

// ConnMeta describes the client at handshake.
type ConnMeta struct {
	RemoteAddr string
	UserAgent  string
}
