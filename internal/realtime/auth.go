package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/store"
)

var (
	ErrUnauthorized = errors.New("invalid session credential")
	ErrBanned       = errors.New("seller is banned")
	ErrNotOwner     = errors.New("payment link belongs to another seller")
	ErrLinkNotFound = errors.New("payment link not found")
)

// Authenticator turns a handshake credential into a seller id.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (sellerID string, err error)
}

// JWTAuthenticator accepts HS256 tokens issued by the account service; the
// seller id is the subject claim.
type JWTAuthenticator struct {
	secret []byte
}

func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret)}
}

func (a *JWTAuthenticator) Authenticate(ctx context.Context, credential string) (string, error) {
	if credential == "" || len(a.secret) == 0 {
		return "", ErrUnauthorized
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(credential, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrUnauthorized)
	}
	return claims.Subject, nil
}

// OwnershipChecker resolves which seller owns a payment link.
type OwnershipChecker interface {
	Owner(ctx context.Context, linkID string) (sellerID string, err error)
}

type StoreOwnershipChecker struct {
	db    *gorm.DB
	store *store.Store
}

func NewStoreOwnershipChecker(db *gorm.DB, store *store.Store) *StoreOwnershipChecker {
	return &StoreOwnershipChecker{db: db, store: store}
}

func (c *StoreOwnershipChecker) Owner(ctx context.Context, linkID string) (string, error) {
	link, err := c.store.PaymentLink.GetByID(c.db.WithContext(ctx), linkID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrLinkNotFound
	}
	if err != nil {
		return "", err
	}
	return link.SellerID, nil
}
