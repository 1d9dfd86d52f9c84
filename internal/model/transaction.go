package model

import "time"

type TransactionType string

const (
	TransactionTypeInbound      TransactionType = "INBOUND"
	TransactionTypeCustodySweep TransactionType = "CUSTODY_SWEEP"
	TransactionTypeSwap         TransactionType = "SWAP"
	TransactionTypeSellerPayout TransactionType = "SELLER_PAYOUT"
	TransactionTypePlatformFee  TransactionType = "PLATFORM_FEE"
)

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusConfirming TransactionStatus = "CONFIRMING"
	TransactionStatusConfirmed  TransactionStatus = "CONFIRMED"
	TransactionStatusFailed     TransactionStatus = "FAILED"
)

type Transaction struct {
	ID            uint              `gorm:"column:id;primaryKey" json:"id"`
	PaymentLinkID string            `gorm:"column:payment_link_id;type:varchar(36);not null;index;uniqueIndex:idx_transactions_link_type_hash" json:"payment_link_id"`
	TxHash        string            `gorm:"column:tx_hash;type:varchar(66);not null;uniqueIndex:idx_transactions_link_type_hash" json:"tx_hash"`
	Type          TransactionType   `gorm:"column:type;type:varchar(20);not null;uniqueIndex:idx_transactions_link_type_hash" json:"type"`
	Amount        string            `gorm:"column:amount;type:varchar(78);not null" json:"amount"`
	Status        TransactionStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	BlockNumber   uint64            `gorm:"column:block_number" json:"block_number,omitempty"`
	BlockHash     string            `gorm:"column:block_hash;type:varchar(66)" json:"block_hash,omitempty"`
	Confirmations uint64            `gorm:"column:confirmations;not null;default:0" json:"confirmations"`
	GasUsed       uint64            `gorm:"column:gas_used" json:"gas_used,omitempty"`
	GasPrice      string            `gorm:"column:gas_price;type:varchar(78)" json:"gas_price,omitempty"`
	GasCost       string            `gorm:"column:gas_cost;type:varchar(78)" json:"gas_cost,omitempty"`
	ConfirmedAt   *time.Time        `gorm:"column:confirmed_at" json:"confirmed_at,omitempty"`
	CreatedAt     time.Time         `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"column:updated_at" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
