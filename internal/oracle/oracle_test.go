package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/paylink-backend/internal/types/environments"
	"github.com/dwarvesf/paylink-backend/internal/utils/config"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

const usdc = "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"

func newTestOracle(t *testing.T, handler http.HandlerFunc) *CoinGeckoOracle {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.AppConfig{
		Oracle: config.OracleConfig{
			BaseURL:  srv.URL,
			CacheTTL: time.Minute,
			Timeout:  time.Second,
		},
		Blockchain: config.BlockchainConfig{
			Chains: []config.ChainConfig{
				{ID: 8453, PricePlatform: "base", PriceNativeID: "ethereum"},
				{ID: 31337},
			},
		},
	}
	return New(cfg, logger.New(environments.Test))
}

func TestGetPrice_Native(t *testing.T) {
	var calls int32
	o := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "ethereum", r.URL.Query().Get("ids"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ethereum":{"usd":3012.55,"last_updated_at":1700000000}}`))
	})

	price, asOf, err := o.GetPrice(context.Background(), 8453, "")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("3012.55")))
	assert.Equal(t, time.Unix(1700000000, 0), asOf)

	_, _, err = o.GetPrice(context.Background(), 8453, "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second call should hit the cache")
}

func TestGetPrice_Token(t *testing.T) {
	o := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/token_price/base", r.URL.Path)
		assert.Equal(t, usdc, r.URL.Query().Get("contract_addresses"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913":{"usd":0.9998}}`))
	})

	price, _, err := o.GetPrice(context.Background(), 8453, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("0.9998")))
}

func TestGetPrice_Errors(t *testing.T) {
	o := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, _, err := o.GetPrice(context.Background(), 1, "")
	assert.ErrorIs(t, err, ErrUnsupportedAsset)

	_, _, err = o.GetPrice(context.Background(), 31337, "")
	assert.ErrorIs(t, err, ErrUnsupportedAsset)

	_, _, err = o.GetPrice(context.Background(), 8453, "")
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}

func TestGetPrice_MissingEntry(t *testing.T) {
	o := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})

	_, _, err := o.GetPrice(context.Background(), 8453, usdc)
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}

func TestToTokenAmount(t *testing.T) {
	tests := []struct {
		name     string
		fiat     string
		price    string
		decimals int
		want     string
	}{
		{"stablecoin at par", "25.50", "1", 6, "25500000"},
		{"rounds up", "10", "3000", 18, "3333333333333334"},
		{"exact native", "3000", "3000", 18, "1000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToTokenAmount(decimal.RequireFromString(tt.fiat), decimal.RequireFromString(tt.price), tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	_, err := ToTokenAmount(decimal.NewFromInt(1), decimal.Zero, 18)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}
