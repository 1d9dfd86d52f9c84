package paymentlink

import (
	stderrors "errors"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/model"
)

// ErrStaleState is returned when a conditional status update matched no row:
// the link changed status (or version) after it was read.
var ErrStaleState = stderrors.New("payment link was modified concurrently")

type store struct {
}

func New() IStore {
	return &store{}
}

func (s *store) Create(tx *gorm.DB, link *model.PaymentLink) (*model.PaymentLink, error) {
	now := time.Now()
	link.CreatedAt = now
	link.UpdatedAt = now
	link.WalletAddress = strings.ToLower(link.WalletAddress)
	if err := tx.Create(link).Error; err != nil {
		return nil, errors.Wrap(err, "create payment link")
	}
	return link, nil
}

func (s *store) GetByID(tx *gorm.DB, id string) (*model.PaymentLink, error) {
	var link model.PaymentLink
	if err := tx.Where("id = ?", id).First(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

func (s *store) ExistsByWalletAddress(tx *gorm.DB, address string) (bool, error) {
	var count int64
	err := tx.Model(&model.PaymentLink{}).
		Where("wallet_address = ?", strings.ToLower(address)).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "count wallet address")
	}
	return count > 0, nil
}

func (s *store) Transition(tx *gorm.DB, link *model.PaymentLink, to model.PaymentStatus, columns map[string]interface{}) error {
	if err := model.ValidateTransition(link.Status, to); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	for k, v := range columns {
		updates[k] = v
	}
	now := time.Now()
	updates["status"] = to
	updates["version"] = link.Version + 1
	updates["updated_at"] = now

	result := tx.Model(&model.PaymentLink{}).
		Where("id = ? AND status = ? AND version = ?", link.ID, link.Status, link.Version).
		Updates(updates)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "transition payment link %s to %s", link.ID, to)
	}
	if result.RowsAffected == 0 {
		return ErrStaleState
	}

	link.Status = to
	link.Version++
	link.UpdatedAt = now
	return nil
}

func (s *store) ListOverdue(tx *gorm.DB, now time.Time, limit int) ([]model.PaymentLink, error) {
	var links []model.PaymentLink
	err := tx.Where("status = ? AND expires_at < ?", model.PaymentStatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&links).Error
	return links, err
}

func (s *store) List(tx *gorm.DB, filter ListFilter) ([]model.PaymentLink, int64, error) {
	var links []model.PaymentLink
	var total int64

	query := tx.Model(&model.PaymentLink{})
	if filter.SellerID != "" {
		query = query.Where("seller_id = ?", filter.SellerID)
	}
	if filter.ChainID != 0 {
		query = query.Where("chain_id = ?", filter.ChainID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Offset(filter.Offset).
		Limit(filter.Limit).
		Order("created_at DESC, id DESC").
		Find(&links).Error
	if err != nil {
		return nil, 0, err
	}

	return links, total, nil
}
