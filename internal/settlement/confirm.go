package settlement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/chainrpc"
	"github.com/dwarvesf/paylink-backend/internal/model"
	"github.com/dwarvesf/paylink-backend/internal/store"
	"github.com/dwarvesf/paylink-backend/internal/store/transaction"
)

// awaitConfirmations polls the inbound transfer until the link's required
// confirmations are reached, then moves the link to PROCESSING. The wait is
// bounded by finalityTimeout counted from when the transfer was detected.
func (p *Processor) awaitConfirmations(ctx context.Context, link *model.PaymentLink, inbound *model.Transaction) error {
	required := link.RequiredConfirmations
	if required == 0 {
		required = 1
	}
	deadline := inbound.CreatedAt.Add(p.finalityTimeout)
	last := inbound.Confirmations

	for {
		if p.now().After(deadline) {
			return withStep(StepConfirming, fmt.Errorf("%w: waited %s for %s", ErrFinalityTimeout, p.finalityTimeout, inbound.TxHash))
		}

		reached, err := p.poll(ctx, link, inbound, required, &last)
		if err != nil {
			return withStep(StepConfirming, err)
		}
		if reached {
			return withStep(StepInitializing, p.startProcessing(ctx, link, inbound))
		}

		if err := p.sleep(ctx); err != nil {
			return withStep(StepConfirming, err)
		}
	}
}

func (p *Processor) sleep(ctx context.Context) error {
	timer := time.NewTimer(p.pollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// poll makes one receipt check. Reported confirmations never go below what
// was already reported, even if a reorg moves the receipt to a later block.
func (p *Processor) poll(ctx context.Context, link *model.PaymentLink, inbound *model.Transaction, required uint64, last *uint64) (bool, error) {
	p.metrics.RecordPoll(strconv.FormatUint(link.ChainID, 10))

	receipt, err := p.receipt(ctx, link.ChainID, inbound.TxHash)
	if errors.Is(err, chainrpc.ErrReceiptNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fetch receipt: %w", err)
	}
	if !receipt.Success {
		return false, fmt.Errorf("%w: %s", chainrpc.ErrTransactionReverted, inbound.TxHash)
	}

	head, err := p.blockNumber(ctx, link.ChainID)
	if err != nil {
		return false, fmt.Errorf("fetch block number: %w", err)
	}

	var confirmations uint64
	if head >= receipt.BlockNumber {
		confirmations = head - receipt.BlockNumber + 1
	}
	if confirmations < *last {
		confirmations = *last
	}

	if err := p.recordConfirmations(ctx, inbound, receipt, confirmations); err != nil {
		return false, err
	}

	data := map[string]interface{}{
		"txHash":                inbound.TxHash,
		"confirmations":         confirmations,
		"requiredConfirmations": required,
	}
	switch {
	case link.Status == model.PaymentStatusDetected:
		if err := p.store.PaymentLink.Transition(p.db.WithContext(ctx), link, model.PaymentStatusConfirming, nil); err != nil {
			return false, err
		}
		*last = confirmations
		p.emit(ctx, model.PaymentEventConfirming, link, data)
	case confirmations > *last:
		*last = confirmations
		p.emit(ctx, model.PaymentEventConfirming, link, data)
	}

	return confirmations >= required, nil
}

func (p *Processor) recordConfirmations(ctx context.Context, inbound *model.Transaction, receipt *chainrpc.Receipt, confirmations uint64) error {
	update := transaction.ConfirmationUpdate{
		Confirmations: confirmations,
		BlockNumber:   receipt.BlockNumber,
		BlockHash:     receipt.BlockHash,
		GasUsed:       receipt.GasUsed,
	}
	if receipt.EffectiveGasPrice != nil {
		update.GasPrice = receipt.EffectiveGasPrice.String()
	}

	db := p.db.WithContext(ctx)
	if err := p.store.Transaction.UpdateConfirmations(db, inbound.ID, update); err != nil {
		return fmt.Errorf("update confirmations: %w", err)
	}
	inbound.Confirmations = confirmations
	inbound.BlockNumber = receipt.BlockNumber
	inbound.BlockHash = receipt.BlockHash

	if inbound.Status == model.TransactionStatusPending {
		if err := p.store.Transaction.UpdateStatus(db, inbound.ID, model.TransactionStatusConfirming); err != nil {
			return fmt.Errorf("update transaction status: %w", err)
		}
		inbound.Status = model.TransactionStatusConfirming
	}
	return nil
}

func (p *Processor) startProcessing(ctx context.Context, link *model.PaymentLink, inbound *model.Transaction) error {
	now := p.now()
	err := p.store.PaymentLink.Transition(p.db.WithContext(ctx), link, model.PaymentStatusProcessing, map[string]interface{}{
		"actual_amount_received": inbound.Amount,
		"received_at":            now,
	})
	if err != nil {
		return err
	}
	link.ActualAmountReceived = inbound.Amount
	link.ReceivedAt = &now

	p.progress(ctx, link, StepInitializing, map[string]interface{}{
		"txHash":               inbound.TxHash,
		"actualAmountReceived": inbound.Amount,
	})
	return nil
}

func (p *Processor) receipt(ctx context.Context, chainID uint64, txHash string) (*chainrpc.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, p.rpcTimeout)
	defer cancel()
	return p.rpc.TransactionReceipt(ctx, chainID, txHash)
}

func (p *Processor) blockNumber(ctx context.Context, chainID uint64) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.rpcTimeout)
	defer cancel()
	return p.rpc.BlockNumber(ctx, chainID)
}

// complete marks the link COMPLETED and the inbound transfer CONFIRMED
// together.
func (p *Processor) complete(ctx context.Context, link *model.PaymentLink, inbound *model.Transaction) error {
	now := p.now()
	err := store.DoInTx(p.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := p.store.PaymentLink.Transition(tx, link, model.PaymentStatusCompleted, map[string]interface{}{
			"completed_at": now,
		}); err != nil {
			return err
		}
		return p.store.Transaction.UpdateStatus(tx, inbound.ID, model.TransactionStatusConfirmed)
	})
	if err != nil {
		return err
	}
	link.CompletedAt = &now
	inbound.Status = model.TransactionStatusConfirmed
	return nil
}
