package settlement

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/dwarvesf/paylink-backend/internal/model"
)

const (
	StepDetecting                 = "detecting"
	StepConfirming                = "confirming"
	StepInitializing              = "initializing"
	StepTransferringFromEphemeral = "transferring_from_ephemeral"
	StepSwapping                  = "swapping_tokens"
	StepCalculatingFees           = "calculating_fees"
	StepTransferringToSeller      = "transferring_to_seller"
	StepFinalizing                = "finalizing"
)

// Notifier receives payment progress events. Delivery is best effort; an
// error is logged and never fails the settlement.
type Notifier interface {
	Notify(ctx context.Context, event model.PaymentEvent) error
}

// KeyProvider unlocks the custody key of a payment link.
type KeyProvider interface {
	PrivateKey(link *model.PaymentLink) (*ecdsa.PrivateKey, error)
}

type FeeInput struct {
	ChainID uint64
	// Token is the asset the seller is paid in, empty for native.
	Token  string
	Amount *big.Int
	// SpentGas is native gas the treasury already paid for this settlement.
	SpentGas *big.Int
}

// Fees are denominated in FeeInput.Token.
type Fees struct {
	PlatformFee *big.Int
	GasCharged  *big.Int
	Total       *big.Int
}

type FeeEstimator interface {
	Estimate(ctx context.Context, in FeeInput) (*Fees, error)
}

// Job is the queued request to settle one inbound transfer.
type Job struct {
	PaymentLinkID string  `json:"payment_link_id"`
	TxHash        string  `json:"tx_hash"`
	Amount        string  `json:"amount"`
	BlockNumber   *uint64 `json:"block_number,omitempty"`
}

func (j Job) Validate() error {
	if j.PaymentLinkID == "" {
		return fmt.Errorf("%w: payment link id is required", ErrInvalidJob)
	}
	raw, err := hexutil.Decode(j.TxHash)
	if err != nil || len(raw) != 32 {
		return fmt.Errorf("%w: malformed tx hash %q", ErrInvalidJob, j.TxHash)
	}
	amount, ok := new(big.Int).SetString(j.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be a positive integer", ErrInvalidJob)
	}
	return nil
}

// Key identifies the job for queue level deduplication.
func (j Job) Key() string {
	return j.PaymentLinkID + ":" + strings.ToLower(j.TxHash)
}

// Attempt is the queue delivery count of the current run, zero based.
type Attempt struct {
	Retry    int
	MaxRetry int
}

func (a Attempt) IsLast() bool {
	return a.Retry >= a.MaxRetry
}
