package settlement

import (
	"context"
	"fmt"
	"math/big"

	"github.com/dwarvesf/paylink-backend/internal/chainrpc"
)

const bpsDenominator = 10000

// ChainFeeEstimator charges a platform fee in basis points of the settled
// amount. Gas is passed on to the seller only when the seller is paid in the
// native asset; token settlements have their gas absorbed by the platform
// since native gas can not be expressed in token units without a price.
type ChainFeeEstimator struct {
	rpc            chainrpc.IChainRPC
	platformFeeBps int64
}

func NewChainFeeEstimator(rpc chainrpc.IChainRPC, platformFeeBps int64) *ChainFeeEstimator {
	return &ChainFeeEstimator{rpc: rpc, platformFeeBps: platformFeeBps}
}

func (e *ChainFeeEstimator) Estimate(ctx context.Context, in FeeInput) (*Fees, error) {
	if in.Amount == nil || in.Amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative settlement amount", ErrInsufficientAmount)
	}

	platform := new(big.Int).Mul(in.Amount, big.NewInt(e.platformFeeBps))
	platform.Quo(platform, big.NewInt(bpsDenominator))

	gas := new(big.Int)
	if in.Token == "" {
		// seller payout plus fee payout
		perTransfer, err := e.rpc.EstimateTransferCost(ctx, in.ChainID, "")
		if err != nil {
			return nil, fmt.Errorf("estimate payout gas: %w", err)
		}
		gas.Mul(perTransfer, big.NewInt(2))
		if in.SpentGas != nil {
			gas.Add(gas, in.SpentGas)
		}
	}

	return &Fees{
		PlatformFee: platform,
		GasCharged:  gas,
		Total:       new(big.Int).Add(platform, gas),
	}, nil
}
