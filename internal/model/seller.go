package model

import "time"

// Seller is owned by the account service; settlement only reads it.
type Seller struct {
	ID            string    `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	WalletAddress string    `gorm:"column:wallet_address;type:varchar(42);not null" json:"wallet_address"`
	Banned        bool      `gorm:"column:banned;not null;default:false" json:"banned"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Seller) TableName() string {
	return "sellers"
}
