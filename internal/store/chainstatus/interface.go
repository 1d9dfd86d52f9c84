package chainstatus

import (
	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/model"
)

type IStore interface {
	Get(tx *gorm.DB, chainID uint64) (*model.ChainStatus, error)
	List(tx *gorm.DB) ([]model.ChainStatus, error)
	Upsert(tx *gorm.DB, status *model.ChainStatus) (*model.ChainStatus, error)
}
