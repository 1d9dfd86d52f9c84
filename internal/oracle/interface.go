package oracle

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// IOracle quotes USD prices for the assets payment links are priced in.
type IOracle interface {
	// GetPrice returns the USD price of one whole token (native asset when
	// tokenAddress is empty) and the time the price was observed.
	GetPrice(ctx context.Context, chainID uint64, tokenAddress string) (decimal.Decimal, time.Time, error)
}
