package model

import "fmt"

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusDetected   PaymentStatus = "DETECTED"
	PaymentStatusConfirming PaymentStatus = "CONFIRMING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusExpired    PaymentStatus = "EXPIRED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
)

// paymentTransitions is the single table of legal status changes.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {
		PaymentStatusDetected,
		PaymentStatusCancelled,
		PaymentStatusExpired,
	},
	PaymentStatusDetected: {
		PaymentStatusConfirming,
		PaymentStatusFailed,
	},
	PaymentStatusConfirming: {
		PaymentStatusConfirming,
		PaymentStatusProcessing,
		PaymentStatusFailed,
	},
	PaymentStatusProcessing: {
		PaymentStatusCompleted,
		PaymentStatusFailed,
	},
}

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusDetected, PaymentStatusConfirming,
		PaymentStatusProcessing, PaymentStatusCompleted, PaymentStatusFailed,
		PaymentStatusExpired, PaymentStatusCancelled:
		return true
	}
	return false
}

func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusExpired, PaymentStatusCancelled:
		return true
	}
	return false
}

// HasFunds reports whether an inbound transfer has been seen for the link.
// From here on the link can only complete or fail.
func (s PaymentStatus) HasFunds() bool {
	switch s {
	case PaymentStatusDetected, PaymentStatusConfirming, PaymentStatusProcessing, PaymentStatusCompleted:
		return true
	}
	return false
}

func CanTransition(from, to PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type ErrIllegalTransition struct {
	From PaymentStatus
	To   PaymentStatus
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal payment status transition %s -> %s", e.From, e.To)
}

func ValidateTransition(from, to PaymentStatus) error {
	if !CanTransition(from, to) {
		return &ErrIllegalTransition{From: from, To: to}
	}
	return nil
}
