package chainrpc

import (
	"context"
	"crypto/ecdsa"
	"math/big"
)

// Receipt is the subset of a transaction receipt settlement cares about.
type Receipt struct {
	TxHash            string
	BlockNumber       uint64
	BlockHash         string
	Success           bool
	GasUsed           uint64
	EffectiveGasPrice *big.Int
}

// TransferResult describes one outbound operation after it was mined.
// GasCost is the native cost of every transaction the operation needed,
// including gas top-ups.
type TransferResult struct {
	TxHash      string
	Amount      *big.Int
	BlockNumber uint64
	GasUsed     uint64
	GasPrice    *big.Int
	GasCost     *big.Int
}

type TransferFromRequest struct {
	ChainID uint64
	Key     *ecdsa.PrivateKey
	// Token is the ERC20 contract, empty for the native asset.
	Token string
}

type SwapRequest struct {
	ChainID     uint64
	TokenIn     string
	TokenOut    string
	AmountIn    *big.Int
	SlippageBps uint32
}

type TransferToRequest struct {
	ChainID uint64
	Token   string
	To      string
	Amount  *big.Int
}

// Deposit is an inbound transfer into one of the scanned addresses.
type Deposit struct {
	TxHash string
	To     string
	// Token is the ERC20 contract, empty for the native asset.
	Token       string
	Amount      *big.Int
	BlockNumber uint64
}

type ScanRequest struct {
	ChainID   uint64
	FromBlock uint64
	ToBlock   uint64
	Addresses []string
}

type IChainRPC interface {
	// TransactionReceipt returns ErrReceiptNotFound while the transaction is
	// not mined yet.
	TransactionReceipt(ctx context.Context, chainID uint64, txHash string) (*Receipt, error)
	BlockNumber(ctx context.Context, chainID uint64) (uint64, error)
	// TransferFrom sweeps the custody wallet balance into the treasury.
	TransferFrom(ctx context.Context, req TransferFromRequest) (*TransferResult, error)
	// ExecuteSwap swaps treasury funds through the chain's router; Amount in
	// the result is the amount of TokenOut received.
	ExecuteSwap(ctx context.Context, req SwapRequest) (*TransferResult, error)
	// TransferTo pays out of the treasury.
	TransferTo(ctx context.Context, req TransferToRequest) (*TransferResult, error)
	// EstimateTransferCost is the native cost of one plain transfer of token.
	EstimateTransferCost(ctx context.Context, chainID uint64, token string) (*big.Int, error)
	// ScanDeposits lists native and ERC20 transfers into req.Addresses mined
	// in [FromBlock, ToBlock].
	ScanDeposits(ctx context.Context, req ScanRequest) ([]Deposit, error)
}
