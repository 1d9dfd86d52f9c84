package transaction

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/model"
)

type store struct {
}

func New() IStore {
	return &store{}
}

func (s *store) GetOrCreate(tx *gorm.DB, txn *model.Transaction) (*model.Transaction, bool, error) {
	txn.TxHash = strings.ToLower(txn.TxHash)

	var existing model.Transaction
	err := tx.Where("payment_link_id = ? AND type = ? AND tx_hash = ?", txn.PaymentLinkID, txn.Type, txn.TxHash).
		First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, errors.Wrap(err, "lookup transaction")
	}

	now := time.Now()
	txn.CreatedAt = now
	txn.UpdatedAt = now
	if err := tx.Create(txn).Error; err != nil {
		return nil, false, errors.Wrap(err, "create transaction")
	}
	return txn, true, nil
}

func (s *store) GetByType(tx *gorm.DB, paymentLinkID string, txType model.TransactionType) (*model.Transaction, error) {
	var txn model.Transaction
	err := tx.Where("payment_link_id = ? AND type = ?", paymentLinkID, txType).
		Order("id ASC").
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (s *store) ListByPaymentLink(tx *gorm.DB, paymentLinkID string) ([]model.Transaction, error) {
	var txns []model.Transaction
	err := tx.Where("payment_link_id = ?", paymentLinkID).
		Order("id ASC").
		Find(&txns).Error
	return txns, err
}

func (s *store) UpdateConfirmations(tx *gorm.DB, id uint, update ConfirmationUpdate) error {
	updates := map[string]interface{}{
		"confirmations": update.Confirmations,
		"block_number":  update.BlockNumber,
		"block_hash":    update.BlockHash,
		"updated_at":    time.Now(),
	}
	if update.GasUsed > 0 {
		updates["gas_used"] = update.GasUsed
	}
	if update.GasPrice != "" {
		updates["gas_price"] = update.GasPrice
	}

	return tx.Model(&model.Transaction{}).
		Where("id = ? AND confirmations <= ?", id, update.Confirmations).
		Updates(updates).Error
}

func (s *store) UpdateStatus(tx *gorm.DB, id uint, status model.TransactionStatus) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if status == model.TransactionStatusConfirmed {
		updates["confirmed_at"] = time.Now()
	}
	return tx.Model(&model.Transaction{}).Where("id = ?", id).Updates(updates).Error
}
