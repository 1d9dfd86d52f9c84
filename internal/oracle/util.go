package oracle

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

var ErrInvalidPrice = errors.New("price must be positive")

// ToTokenAmount converts a USD amount to token base units at the given
// price, rounding up so the payer never sends less than the quoted value.
func ToTokenAmount(fiat, price decimal.Decimal, decimals int) (*big.Int, error) {
	if !price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	return fiat.Shift(int32(decimals)).Div(price).Ceil().BigInt(), nil
}
