package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/paylink-backend/internal/model"
	"github.com/dwarvesf/paylink-backend/internal/store"
	"github.com/dwarvesf/paylink-backend/internal/store/storetest"
)

func TestJWTAuthenticator(t *testing.T) {
	auth := NewJWTAuthenticator(testSecret)
	ctx := context.Background()

	sellerID, err := auth.Authenticate(ctx, token(t, "seller-a"))
	require.NoError(t, err)
	assert.Equal(t, "seller-a", sellerID)

	sign := func(method jwt.SigningMethod, key interface{}, claims jwt.RegisteredClaims) string {
		signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return signed
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "abc.def.ghi"},
		{"wrong secret", sign(jwt.SigningMethodHS256, []byte("other"), jwt.RegisteredClaims{Subject: "seller-a"})},
		{"wrong algorithm", sign(jwt.SigningMethodHS512, []byte(testSecret), jwt.RegisteredClaims{Subject: "seller-a"})},
		{"expired", sign(jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
			Subject:   "seller-a",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		})},
		{"no subject", sign(jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Authenticate(ctx, tt.token)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestStoreOwnershipChecker(t *testing.T) {
	db := storetest.NewDB(t)
	st := store.New(db)

	link := &model.PaymentLink{
		ID:                  uuid.NewString(),
		SellerID:            "seller-a",
		ChainID:             8453,
		FiatAmount:          "10",
		Amount:              "1",
		WalletAddress:       "0x3333333333333333333333333333333333333333",
		EncryptedPrivateKey: "ciphertext",
		KeySalt:             "salt",
		Status:              model.PaymentStatusPending,
		ExpiresAt:           time.Now().Add(time.Hour),
	}
	_, err := st.PaymentLink.Create(db, link)
	require.NoError(t, err)

	checker := NewStoreOwnershipChecker(db, st)

	owner, err := checker.Owner(context.Background(), link.ID)
	require.NoError(t, err)
	assert.Equal(t, "seller-a", owner)

	_, err = checker.Owner(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrLinkNotFound)
}
