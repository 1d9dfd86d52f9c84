package settlement

import (
	"errors"

	"github.com/dwarvesf/paylink-backend/internal/chainrpc"
	"github.com/dwarvesf/paylink-backend/internal/model"
	"github.com/dwarvesf/paylink-backend/internal/wallet"
)

var (
	ErrInvalidJob          = errors.New("invalid settlement job")
	ErrPaymentLinkNotFound = errors.New("payment link not found")
	ErrFinalityTimeout     = errors.New("transaction did not reach finality in time")
	ErrInsufficientAmount  = errors.New("received amount does not cover fees")
	ErrCustodyEmpty        = errors.New("custody wallet holds no funds")
	ErrSellerNotFound      = errors.New("seller payout wallet not found")
	ErrNoFeeWallet         = errors.New("platform fee wallet is not configured")

	// errNothingToDo ends a run that found the link settled or owned by
	// another inbound transfer.
	errNothingToDo = errors.New("nothing to settle")
)

var fatalErrors = []error{
	ErrInvalidJob,
	ErrPaymentLinkNotFound,
	ErrFinalityTimeout,
	ErrInsufficientAmount,
	ErrCustodyEmpty,
	ErrSellerNotFound,
	ErrNoFeeWallet,
	wallet.ErrDecryption,
	wallet.ErrWalletGeneration,
	chainrpc.ErrTransactionReverted,
	chainrpc.ErrUnknownChain,
	chainrpc.ErrSwapNotSupported,
	chainrpc.ErrSwapOutputUnknown,
	chainrpc.ErrNoTreasuryKey,
}

// IsFatal reports whether retrying the job can not change the outcome.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range fatalErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	var illegal *model.ErrIllegalTransition
	return errors.As(err, &illegal)
}

// StepError records which settlement step an error came from.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func withStep(step string, err error) error {
	if err == nil {
		return nil
	}
	var existing *StepError
	if errors.As(err, &existing) {
		return err
	}
	return &StepError{Step: step, Err: err}
}

// StepOf returns the step an error was raised in, or "" when unknown.
func StepOf(err error) string {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Step
	}
	return ""
}
