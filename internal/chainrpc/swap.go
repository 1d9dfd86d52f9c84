package chainrpc

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const swapDeadline = 10 * time.Minute

func (r *ChainRPC) ExecuteSwap(ctx context.Context, req SwapRequest) (*TransferResult, error) {
	c, err := r.chain(req.ChainID)
	if err != nil {
		return nil, err
	}
	if r.treasury == nil {
		return nil, ErrNoTreasuryKey
	}
	if c.cfg.SwapRouter == "" {
		return nil, fmt.Errorf("%w: %d", ErrSwapNotSupported, req.ChainID)
	}
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: non-positive swap amount", ErrInsufficientBalance)
	}

	router := common.HexToAddress(c.cfg.SwapRouter)
	treasury := crypto.PubkeyToAddress(r.treasury.PublicKey)
	tokenOut := common.HexToAddress(req.TokenOut)

	tokenIn := req.TokenIn
	if tokenIn == "" {
		if c.cfg.WrappedNative == "" {
			return nil, fmt.Errorf("%w: no wrapped native token for chain %d", ErrSwapNotSupported, req.ChainID)
		}
		tokenIn = c.cfg.WrappedNative
	}
	path := []common.Address{common.HexToAddress(tokenIn), tokenOut}

	quoted, err := r.quote(ctx, c, router, req.AmountIn, path)
	if err != nil {
		return nil, err
	}
	minOut := minAmountOut(quoted, req.SlippageBps)
	deadline := big.NewInt(time.Now().Add(swapDeadline).Unix())

	totalGas := new(big.Int)
	var (
		data  []byte
		value *big.Int
	)
	if req.TokenIn == "" {
		data, err = routerABI.Pack("swapExactETHForTokens", minOut, path, treasury, deadline)
		value = req.AmountIn
	} else {
		approve, perr := packApprove(router, req.AmountIn)
		if perr != nil {
			return nil, perr
		}
		approveReceipt, serr := r.send(ctx, c, r.treasury, &c.treasuryMu, txParams{
			to:   common.HexToAddress(req.TokenIn),
			data: approve,
		})
		if serr != nil {
			return nil, fmt.Errorf("approve router: %w", serr)
		}
		totalGas.Add(totalGas, gasCost(approveReceipt))

		data, err = routerABI.Pack("swapExactTokensForTokens", req.AmountIn, minOut, path, treasury, deadline)
	}
	if err != nil {
		return nil, err
	}

	receipt, err := r.send(ctx, c, r.treasury, &c.treasuryMu, txParams{
		to:    router,
		value: value,
		data:  data,
	})
	if err != nil {
		return nil, err
	}
	totalGas.Add(totalGas, gasCost(receipt))

	received := receivedAmount(receipt.Logs, tokenOut, treasury)
	if received.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSwapOutputUnknown, receipt.TxHash.Hex())
	}

	r.logger.Info("[ExecuteSwap][Done]", map[string]string{
		"chain_id":  c.id.String(),
		"tx_hash":   receipt.TxHash.Hex(),
		"amount_in": req.AmountIn.String(),
		"quoted":    quoted.String(),
		"received":  received.String(),
	})

	return resultFrom(receipt, received, totalGas), nil
}

func (r *ChainRPC) quote(ctx context.Context, c *chain, router common.Address, amountIn *big.Int, path []common.Address) (*big.Int, error) {
	data, err := routerABI.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, err
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &router, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("getAmountsOut: %w", err)
	}
	amounts, err := unpackAmounts(out)
	if err != nil {
		return nil, err
	}
	return amounts[len(amounts)-1], nil
}
