package wallet

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/store/paymentlink"
	"github.com/dwarvesf/paylink-backend/internal/utils/config"
)

// KVReader is the part of the Vault client the wallet needs.
type KVReader interface {
	GetKV(secretKey string) (string, error)
}

// ResolveSecret prefers Vault when a reader is given and falls back to the
// configured secret otherwise.
func ResolveSecret(cfg config.WalletConfig, kv KVReader) (string, error) {
	if kv != nil {
		secret, err := kv.GetKV(cfg.VaultSecretKey)
		if err != nil {
			return "", fmt.Errorf("read wallet secret from vault: %w", err)
		}
		if secret == "" {
			return "", ErrEmptySecret
		}
		return secret, nil
	}

	if cfg.EncryptionSecret == "" {
		return "", ErrEmptySecret
	}
	return cfg.EncryptionSecret, nil
}

type storeChecker struct {
	db    *gorm.DB
	store paymentlink.IStore
}

// NewStoreChecker checks collisions against every issued payment link wallet.
func NewStoreChecker(db *gorm.DB, store paymentlink.IStore) AddressChecker {
	return &storeChecker{db: db, store: store}
}

func (c *storeChecker) AddressExists(ctx context.Context, address string) (bool, error) {
	return c.store.ExistsByWalletAddress(c.db.WithContext(ctx), address)
}
