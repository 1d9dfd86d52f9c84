package settlement

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dwarvesf/paylink-backend/internal/chainrpc"
	"github.com/dwarvesf/paylink-backend/internal/model"
	"github.com/dwarvesf/paylink-backend/internal/wallet"
)

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rpc outage", errors.New("connection reset by peer"), false},
		{"context deadline", context.DeadlineExceeded, false},
		{"nothing to do", errNothingToDo, false},
		{"wrapped finality timeout", fmt.Errorf("confirm: %w", ErrFinalityTimeout), true},
		{"step wrapped revert", withStep(StepConfirming, chainrpc.ErrTransactionReverted), true},
		{"decryption", fmt.Errorf("unlock: %w", wallet.ErrDecryption), true},
		{"custody empty", ErrCustodyEmpty, true},
		{"illegal transition", &model.ErrIllegalTransition{From: model.PaymentStatusPending, To: model.PaymentStatusCompleted}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestStepOf(t *testing.T) {
	assert.Equal(t, "", StepOf(errors.New("plain")))
	assert.Equal(t, "", StepOf(nil))

	err := withStep(StepSwapping, errors.New("pool has no liquidity"))
	assert.Equal(t, StepSwapping, StepOf(err))
	assert.Equal(t, StepSwapping, StepOf(fmt.Errorf("settle: %w", err)))

	// the innermost step wins
	assert.Equal(t, StepSwapping, StepOf(withStep(StepFinalizing, err)))
	assert.Nil(t, withStep(StepFinalizing, nil))
}

func TestJob_Validate(t *testing.T) {
	valid := Job{PaymentLinkID: "pl-1", TxHash: inboundTxHash, Amount: "1"}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		job  Job
	}{
		{"missing link", Job{TxHash: inboundTxHash, Amount: "1"}},
		{"short hash", Job{PaymentLinkID: "pl-1", TxHash: "0x1234", Amount: "1"}},
		{"zero amount", Job{PaymentLinkID: "pl-1", TxHash: inboundTxHash, Amount: "0"}},
		{"decimal amount", Job{PaymentLinkID: "pl-1", TxHash: inboundTxHash, Amount: "1.5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.job.Validate(), ErrInvalidJob)
		})
	}
}

func TestJob_Key(t *testing.T) {
	a := Job{PaymentLinkID: "pl-1", TxHash: "0xABCDEF"}
	b := Job{PaymentLinkID: "pl-1", TxHash: "0xabcdef"}
	assert.Equal(t, a.Key(), b.Key())
}

func TestAttempt_IsLast(t *testing.T) {
	assert.False(t, Attempt{Retry: 2, MaxRetry: 3}.IsLast())
	assert.True(t, Attempt{Retry: 3, MaxRetry: 3}.IsLast())
	assert.True(t, Attempt{Retry: 0, MaxRetry: 0}.IsLast())
}
