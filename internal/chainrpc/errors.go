package chainrpc

import "errors"

var (
	ErrUnknownChain        = errors.New("chain is not configured")
	ErrReceiptNotFound     = errors.New("transaction receipt not found")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrInsufficientBalance = errors.New("insufficient balance to cover transfer")
	ErrSwapNotSupported    = errors.New("chain has no swap router")
	ErrSwapOutputUnknown   = errors.New("swap output transfer not found in receipt")
	ErrNoTreasuryKey       = errors.New("treasury private key is not configured")
)
