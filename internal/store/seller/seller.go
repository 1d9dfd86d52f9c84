package seller

import (
	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/model"
)

type store struct {
}

func New() IStore {
	return &store{}
}

func (s *store) GetByID(tx *gorm.DB, id string) (*model.Seller, error) {
	var seller model.Seller
	if err := tx.Where("id = ?", id).First(&seller).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

func (s *store) ListBanned(tx *gorm.DB) ([]string, error) {
	var ids []string
	err := tx.Model(&model.Seller{}).Where("banned = ?", true).Pluck("id", &ids).Error
	return ids, err
}
