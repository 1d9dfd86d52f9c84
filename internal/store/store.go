package store

import (
	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/store/chainstatus"
	"github.com/dwarvesf/paylink-backend/internal/store/paymentlink"
	"github.com/dwarvesf/paylink-backend/internal/store/seller"
	"github.com/dwarvesf/paylink-backend/internal/store/transaction"
)

type Store struct {
	PaymentLink paymentlink.IStore
	Transaction transaction.IStore
	ChainStatus chainstatus.IStore
	Seller      seller.IStore
}

func New(db *gorm.DB) *Store {
	return &Store{
		PaymentLink: paymentlink.New(),
		Transaction: transaction.New(),
		ChainStatus: chainstatus.New(),
		Seller:      seller.New(),
	}
}
