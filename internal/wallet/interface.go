package wallet

import (
	"context"
	"crypto/ecdsa"

	"github.com/dwarvesf/paylink-backend/internal/model"
)

type GeneratedWallet struct {
	Address             string
	EncryptedPrivateKey string
	Salt                string
}

// AddressChecker reports whether a custody address was already issued.
type AddressChecker interface {
	AddressExists(ctx context.Context, address string) (bool, error)
}

type IManager interface {
	Generate(ctx context.Context) (*GeneratedWallet, error)
	Encrypt(privateKeyHex string) (ciphertext string, salt string, err error)
	Decrypt(ciphertext, salt string) (string, error)
	PrivateKey(link *model.PaymentLink) (*ecdsa.PrivateKey, error)
}
