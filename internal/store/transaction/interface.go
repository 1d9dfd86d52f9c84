package transaction

import (
	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/model"
)

type ConfirmationUpdate struct {
	Confirmations uint64
	BlockNumber   uint64
	BlockHash     string
	GasUsed       uint64
	GasPrice      string
}

type IStore interface {
	// GetOrCreate returns the existing row for (payment link, type, hash) or
	// inserts txn. created reports whether a new row was written.
	GetOrCreate(tx *gorm.DB, txn *model.Transaction) (record *model.Transaction, created bool, err error)
	GetByType(tx *gorm.DB, paymentLinkID string, txType model.TransactionType) (*model.Transaction, error)
	ListByPaymentLink(tx *gorm.DB, paymentLinkID string) ([]model.Transaction, error)
	// UpdateConfirmations never lowers the stored confirmation count.
	UpdateConfirmations(tx *gorm.DB, id uint, update ConfirmationUpdate) error
	UpdateStatus(tx *gorm.DB, id uint, status model.TransactionStatus) error
}
