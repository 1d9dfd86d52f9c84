package chainstatus

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dwarvesf/paylink-backend/internal/model"
)

type store struct {
}

func New() IStore {
	return &store{}
}

func (s *store) Get(tx *gorm.DB, chainID uint64) (*model.ChainStatus, error) {
	var status model.ChainStatus
	if err := tx.Where("chain_id = ?", chainID).First(&status).Error; err != nil {
		return nil, err
	}
	return &status, nil
}

func (s *store) List(tx *gorm.DB) ([]model.ChainStatus, error) {
	var statuses []model.ChainStatus
	err := tx.Order("chain_id ASC").Find(&statuses).Error
	return statuses, err
}

func (s *store) Upsert(tx *gorm.DB, status *model.ChainStatus) (*model.ChainStatus, error) {
	status.UpdatedAt = time.Now()
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chain_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "message", "updated_at"}),
	}).Create(status).Error
	if err != nil {
		return nil, errors.Wrapf(err, "upsert chain status %d", status.ChainID)
	}
	return status, nil
}
