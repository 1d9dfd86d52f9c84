package settlement

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/chainrpc"
	"github.com/dwarvesf/paylink-backend/internal/model"
)

// settle moves funds for a PROCESSING link: custody sweep, optional swap,
// seller payout and platform fee. Every transfer is recorded as it lands, so
// a resumed run skips the ones already made.
func (p *Processor) settle(ctx context.Context, link *model.PaymentLink, inbound *model.Transaction) error {
	recorded, err := p.recordedTransfers(ctx, link.ID)
	if err != nil {
		return withStep(StepTransferringFromEphemeral, err)
	}

	sweep := recorded[model.TransactionTypeCustodySweep]
	if sweep == nil {
		p.progress(ctx, link, StepTransferringFromEphemeral, nil)
		sweep, err = p.sweep(ctx, link)
		if err != nil {
			return withStep(StepTransferringFromEphemeral, err)
		}
	}

	finalToken := strings.ToLower(link.TokenAddress)
	finalAmount := amountOf(sweep)
	spentGas := new(big.Int)
	if !link.IsNative() {
		// token sweeps are funded by treasury gas top-ups
		spentGas.Add(spentGas, gasCostOf(sweep))
	}

	var swap *model.Transaction
	if needsSwap(link) {
		finalToken = strings.ToLower(link.StablecoinAddress)
		swap = recorded[model.TransactionTypeSwap]
		if swap == nil {
			p.progress(ctx, link, StepSwapping, map[string]interface{}{
				"tokenIn":  link.TokenAddress,
				"tokenOut": finalToken,
				"amountIn": finalAmount.String(),
			})
			res, err := p.rpc.ExecuteSwap(ctx, chainrpc.SwapRequest{
				ChainID:     link.ChainID,
				TokenIn:     link.TokenAddress,
				TokenOut:    finalToken,
				AmountIn:    finalAmount,
				SlippageBps: link.SlippageBps,
			})
			if err != nil {
				return withStep(StepSwapping, fmt.Errorf("execute swap: %w", err))
			}
			swap, err = p.recordTransfer(ctx, link, model.TransactionTypeSwap, res)
			if err != nil {
				return withStep(StepSwapping, err)
			}
		}
		finalAmount = amountOf(swap)
		spentGas.Add(spentGas, gasCostOf(swap))
	}

	seller, err := p.sellerWallet(ctx, link)
	if err != nil {
		return withStep(StepTransferringToSeller, err)
	}

	var net, fee *big.Int
	payout := recorded[model.TransactionTypeSellerPayout]
	if payout != nil {
		net = amountOf(payout)
		fee = new(big.Int).Sub(finalAmount, net)
	} else {
		fees, err := p.fees.Estimate(ctx, FeeInput{
			ChainID:  link.ChainID,
			Token:    finalToken,
			Amount:   finalAmount,
			SpentGas: spentGas,
		})
		if err != nil {
			return withStep(StepCalculatingFees, err)
		}
		fee = fees.Total
		net = new(big.Int).Sub(finalAmount, fee)
		if net.Sign() <= 0 {
			return withStep(StepCalculatingFees, fmt.Errorf("%w: amount %s, fees %s", ErrInsufficientAmount, finalAmount, fee))
		}

		p.progress(ctx, link, StepTransferringToSeller, map[string]interface{}{
			"amount": net.String(),
		})
		res, err := p.rpc.TransferTo(ctx, chainrpc.TransferToRequest{
			ChainID: link.ChainID,
			Token:   finalToken,
			To:      seller,
			Amount:  net,
		})
		if err != nil {
			return withStep(StepTransferringToSeller, fmt.Errorf("pay seller: %w", err))
		}
		payout, err = p.recordTransfer(ctx, link, model.TransactionTypeSellerPayout, res)
		if err != nil {
			return withStep(StepTransferringToSeller, err)
		}
	}

	p.progress(ctx, link, StepFinalizing, map[string]interface{}{
		"fee": fee.String(),
	})
	feeTx := recorded[model.TransactionTypePlatformFee]
	if feeTx == nil && fee.Sign() > 0 {
		if p.feeWallet == "" {
			return withStep(StepFinalizing, ErrNoFeeWallet)
		}
		res, err := p.rpc.TransferTo(ctx, chainrpc.TransferToRequest{
			ChainID: link.ChainID,
			Token:   finalToken,
			To:      p.feeWallet,
			Amount:  fee,
		})
		if err != nil {
			return withStep(StepFinalizing, fmt.Errorf("collect platform fee: %w", err))
		}
		feeTx, err = p.recordTransfer(ctx, link, model.TransactionTypePlatformFee, res)
		if err != nil {
			return withStep(StepFinalizing, err)
		}
	}

	totalGas := new(big.Int)
	for _, txn := range []*model.Transaction{sweep, swap, payout, feeTx} {
		totalGas.Add(totalGas, gasCostOf(txn))
	}

	if err := p.complete(ctx, link, inbound); err != nil {
		return withStep(StepFinalizing, err)
	}

	p.emit(ctx, model.PaymentEventCompleted, link, map[string]interface{}{
		"txHash":       inbound.TxHash,
		"payoutTxHash": payout.TxHash,
		"finalAmount":  finalAmount.String(),
		"finalToken":   finalToken,
		"sellerAmount": net.String(),
		"platformFee":  fee.String(),
		"gasCost":      totalGas.String(),
	})
	return nil
}

func (p *Processor) sweep(ctx context.Context, link *model.PaymentLink) (*model.Transaction, error) {
	key, err := p.keys.PrivateKey(link)
	if err != nil {
		return nil, fmt.Errorf("unlock custody key: %w", err)
	}

	res, err := p.rpc.TransferFrom(ctx, chainrpc.TransferFromRequest{
		ChainID: link.ChainID,
		Key:     key,
		Token:   link.TokenAddress,
	})
	if errors.Is(err, chainrpc.ErrInsufficientBalance) {
		return nil, fmt.Errorf("%w: %v", ErrCustodyEmpty, err)
	}
	if err != nil {
		return nil, fmt.Errorf("sweep custody wallet: %w", err)
	}
	return p.recordTransfer(ctx, link, model.TransactionTypeCustodySweep, res)
}

// recordTransfer persists a mined outbound transfer. It runs detached from
// ctx: once funds moved the record must be written.
func (p *Processor) recordTransfer(ctx context.Context, link *model.PaymentLink, txType model.TransactionType, res *chainrpc.TransferResult) (*model.Transaction, error) {
	now := p.now()
	txn := &model.Transaction{
		PaymentLinkID: link.ID,
		TxHash:        res.TxHash,
		Type:          txType,
		Amount:        bigString(res.Amount),
		Status:        model.TransactionStatusConfirmed,
		BlockNumber:   res.BlockNumber,
		Confirmations: 1,
		GasUsed:       res.GasUsed,
		GasPrice:      bigString(res.GasPrice),
		GasCost:       bigString(res.GasCost),
		ConfirmedAt:   &now,
	}

	saved, _, err := p.store.Transaction.GetOrCreate(p.db.WithContext(context.WithoutCancel(ctx)), txn)
	if err != nil {
		p.logger.Error("[Settle][RecordTransfer] transfer is on chain but not recorded", map[string]string{
			"payment_link_id": link.ID,
			"type":            string(txType),
			"tx_hash":         res.TxHash,
			"amount":          txn.Amount,
			"error":           err.Error(),
		})
		return nil, fmt.Errorf("record %s transfer %s: %w", txType, res.TxHash, err)
	}

	p.logger.Info("[Settle][RecordTransfer]", map[string]string{
		"payment_link_id": link.ID,
		"type":            string(txType),
		"tx_hash":         res.TxHash,
		"amount":          txn.Amount,
	})
	return saved, nil
}

func (p *Processor) recordedTransfers(ctx context.Context, linkID string) (map[model.TransactionType]*model.Transaction, error) {
	txns, err := p.store.Transaction.ListByPaymentLink(p.db.WithContext(ctx), linkID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	recorded := make(map[model.TransactionType]*model.Transaction, len(txns))
	for i := range txns {
		txn := &txns[i]
		if txn.Type == model.TransactionTypeInbound || txn.Status != model.TransactionStatusConfirmed {
			continue
		}
		if _, ok := recorded[txn.Type]; !ok {
			recorded[txn.Type] = txn
		}
	}
	return recorded, nil
}

func (p *Processor) sellerWallet(ctx context.Context, link *model.PaymentLink) (string, error) {
	seller, err := p.store.Seller.GetByID(p.db.WithContext(ctx), link.SellerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: seller %s", ErrSellerNotFound, link.SellerID)
	}
	if err != nil {
		return "", fmt.Errorf("load seller: %w", err)
	}
	if seller.WalletAddress == "" {
		return "", fmt.Errorf("%w: seller %s has no wallet", ErrSellerNotFound, link.SellerID)
	}
	return seller.WalletAddress, nil
}

func needsSwap(link *model.PaymentLink) bool {
	return link.SwapToStable &&
		link.StablecoinAddress != "" &&
		!strings.EqualFold(link.StablecoinAddress, link.TokenAddress)
}

func amountOf(txn *model.Transaction) *big.Int {
	amount, ok := new(big.Int).SetString(txn.Amount, 10)
	if !ok {
		return new(big.Int)
	}
	return amount
}

func gasCostOf(txn *model.Transaction) *big.Int {
	if txn == nil || txn.GasCost == "" {
		return new(big.Int)
	}
	cost, ok := new(big.Int).SetString(txn.GasCost, 10)
	if !ok {
		return new(big.Int)
	}
	return cost
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
