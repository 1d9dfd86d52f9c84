package wallet

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/scrypt"

	"github.com/dwarvesf/paylink-backend/internal/model"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	keyLength    = 32
	saltLength   = 16
	nonceLength  = 12
	defaultTries = 3
)

type Manager struct {
	secret      []byte
	checker     AddressChecker
	maxAttempts int
	logger      *logger.Logger

	// overridable in tests
	generateKey func() (*ecdsa.PrivateKey, error)
	kdfN        int
}

func New(secret string, checker AddressChecker, maxAttempts int, logger *logger.Logger) (*Manager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultTries
	}
	return &Manager{
		secret:      []byte(secret),
		checker:     checker,
		maxAttempts: maxAttempts,
		logger:      logger,
		generateKey: crypto.GenerateKey,
		kdfN:        scryptN,
	}, nil
}

// Generate creates a fresh custody keypair whose address has never been
// issued before and returns it with the private key already encrypted.
func (m *Manager) Generate(ctx context.Context) (*GeneratedWallet, error) {
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		key, err := m.generateKey()
		if err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		address := strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())

		exists, err := m.checker.AddressExists(ctx, address)
		if err != nil {
			return nil, fmt.Errorf("check address collision: %w", err)
		}
		if exists {
			m.logger.Warn("[Generate][AddressCollision]", map[string]string{
				"address": address,
				"attempt": fmt.Sprint(attempt),
			})
			continue
		}

		ciphertext, salt, err := m.Encrypt(hex.EncodeToString(crypto.FromECDSA(key)))
		if err != nil {
			return nil, err
		}

		return &GeneratedWallet{
			Address:             address,
			EncryptedPrivateKey: ciphertext,
			Salt:                salt,
		}, nil
	}

	m.logger.Error("[Generate][CollisionBudgetExhausted]", map[string]string{
		"attempts": fmt.Sprint(m.maxAttempts),
	})
	return nil, ErrWalletGeneration
}

// Encrypt seals the key with AES-256-GCM under a key derived from the
// manager secret and a fresh salt. The output is hex(nonce || ciphertext || tag).
func (m *Manager) Encrypt(privateKeyHex string) (string, string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", "", fmt.Errorf("read salt: %w", err)
	}

	aead, err := m.aead(salt)
	if err != nil {
		return "", "", err
	}

	nonce := make([]byte, nonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return "", "", fmt.Errorf("read nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(privateKeyHex), nil)
	return hex.EncodeToString(sealed), hex.EncodeToString(salt), nil
}

func (m *Manager) Decrypt(ciphertext, salt string) (string, error) {
	rawSalt, err := hex.DecodeString(salt)
	if err != nil || len(rawSalt) != saltLength {
		return "", ErrDecryption
	}
	sealed, err := hex.DecodeString(ciphertext)
	if err != nil || len(sealed) < nonceLength+16 {
		return "", ErrDecryption
	}

	aead, err := m.aead(rawSalt)
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, sealed[:nonceLength], sealed[nonceLength:], nil)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plaintext), nil
}

func (m *Manager) PrivateKey(link *model.PaymentLink) (*ecdsa.PrivateKey, error) {
	keyHex, err := m.Decrypt(link.EncryptedPrivateKey, link.KeySalt)
	if err != nil {
		return nil, err
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	if !strings.EqualFold(crypto.PubkeyToAddress(key.PublicKey).Hex(), link.WalletAddress) {
		return nil, fmt.Errorf("%w: key does not match wallet address", ErrDecryption)
	}
	return key, nil
}

func (m *Manager) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(m.secret, salt, m.kdfN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	return cipher.NewGCMWithNonceSize(block, nonceLength)
}
