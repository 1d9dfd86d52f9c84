package seller

import (
	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/model"
)

type IStore interface {
	GetByID(tx *gorm.DB, id string) (*model.Seller, error)
	ListBanned(tx *gorm.DB) ([]string, error)
}
