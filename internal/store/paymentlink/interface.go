package paymentlink

import (
	"time"

	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/model"
)

type ListFilter struct {
	SellerID string
	ChainID  uint64
	Status   model.PaymentStatus
	Limit    int
	Offset   int
}

type IStore interface {
	Create(tx *gorm.DB, link *model.PaymentLink) (*model.PaymentLink, error)
	GetByID(tx *gorm.DB, id string) (*model.PaymentLink, error)
	// ExistsByWalletAddress is the collision check for custody wallets
	ExistsByWalletAddress(tx *gorm.DB, address string) (bool, error)
	// Transition moves the link to a new status if, and only if, nobody else
	// changed it since it was loaded. Extra columns are written in the same
	// statement. On success link.Status and link.Version are updated.
	Transition(tx *gorm.DB, link *model.PaymentLink, to model.PaymentStatus, columns map[string]interface{}) error
	ListOverdue(tx *gorm.DB, now time.Time, limit int) ([]model.PaymentLink, error)
	List(tx *gorm.DB, filter ListFilter) ([]model.PaymentLink, int64, error)
}
