package model

import "time"

type PaymentEventType string

const (
	PaymentEventDetected   PaymentEventType = "PAYMENT_DETECTED"
	PaymentEventConfirming PaymentEventType = "PAYMENT_CONFIRMING"
	PaymentEventProcessing PaymentEventType = "PAYMENT_PROCESSING"
	PaymentEventCompleted  PaymentEventType = "PAYMENT_COMPLETED"
	PaymentEventFailed     PaymentEventType = "PAYMENT_FAILED"
	PaymentEventExpired    PaymentEventType = "PAYMENT_EXPIRED"
	PaymentEventCancelled  PaymentEventType = "PAYMENT_CANCELLED"
)

// PaymentEvent is a progress notification about one payment link. Data
// always carries paymentLinkId.
type PaymentEvent struct {
	Type          PaymentEventType       `json:"type"`
	PaymentLinkID string                 `json:"-"`
	SellerID      string                 `json:"-"`
	Data          map[string]interface{} `json:"data"`
	Timestamp     time.Time              `json:"timestamp"`
}

func NewPaymentEvent(eventType PaymentEventType, link *PaymentLink, data map[string]interface{}) PaymentEvent {
	payload := make(map[string]interface{}, len(data)+2)
	for k, v := range data {
		payload[k] = v
	}
	payload["paymentLinkId"] = link.ID
	payload["status"] = string(link.Status)

	return PaymentEvent{
		Type:          eventType,
		PaymentLinkID: link.ID,
		SellerID:      link.SellerID,
		Data:          payload,
		Timestamp:     time.Now().UTC(),
	}
}
