package oracle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/dwarvesf/paylink-backend/internal/utils/config"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

var (
	ErrUnsupportedAsset = errors.New("asset has no price source")
	ErrPriceUnavailable = errors.New("price unavailable")
)

type quote struct {
	price decimal.Decimal
	asOf  time.Time
}

type priceEntry struct {
	USD           decimal.Decimal `json:"usd"`
	LastUpdatedAt int64           `json:"last_updated_at"`
}

// CoinGeckoOracle reads prices from a CoinGecko compatible API.
type CoinGeckoOracle struct {
	client *resty.Client
	chains map[uint64]config.ChainConfig
	cache  *gocache.Cache
	logger *logger.Logger
}

func New(appConfig *config.AppConfig, logger *logger.Logger) *CoinGeckoOracle {
	client := resty.New().
		SetBaseURL(strings.TrimRight(appConfig.Oracle.BaseURL, "/")).
		SetTimeout(appConfig.Oracle.Timeout).
		SetHeader("Accept", "application/json")
	if appConfig.Oracle.APIKey != "" {
		client.SetHeader("x-cg-pro-api-key", appConfig.Oracle.APIKey)
	}

	chains := make(map[uint64]config.ChainConfig, len(appConfig.Blockchain.Chains))
	for _, chain := range appConfig.Blockchain.Chains {
		chains[chain.ID] = chain
	}

	ttl := appConfig.Oracle.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &CoinGeckoOracle{
		client: client,
		chains: chains,
		cache:  gocache.New(ttl, 2*ttl),
		logger: logger,
	}
}

func (o *CoinGeckoOracle) GetPrice(ctx context.Context, chainID uint64, tokenAddress string) (decimal.Decimal, time.Time, error) {
	chain, ok := o.chains[chainID]
	if !ok {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: chain %d", ErrUnsupportedAsset, chainID)
	}

	tokenAddress = strings.ToLower(tokenAddress)
	key := strconv.FormatUint(chainID, 10) + ":" + tokenAddress
	if cached, ok := o.cache.Get(key); ok {
		q := cached.(quote)
		return q.price, q.asOf, nil
	}

	var (
		q   quote
		err error
	)
	if tokenAddress == "" {
		q, err = o.nativePrice(ctx, chain)
	} else {
		q, err = o.tokenPrice(ctx, chain, tokenAddress)
	}
	if err != nil {
		o.logger.Error("[Oracle][GetPrice]", map[string]string{
			"chain_id": strconv.FormatUint(chainID, 10),
			"token":    tokenAddress,
			"error":    err.Error(),
		})
		return decimal.Zero, time.Time{}, err
	}

	o.cache.SetDefault(key, q)
	return q.price, q.asOf, nil
}

func (o *CoinGeckoOracle) nativePrice(ctx context.Context, chain config.ChainConfig) (quote, error) {
	if chain.PriceNativeID == "" {
		return quote{}, fmt.Errorf("%w: chain %d native asset", ErrUnsupportedAsset, chain.ID)
	}

	var body map[string]priceEntry
	resp, err := o.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":                     chain.PriceNativeID,
			"vs_currencies":           "usd",
			"include_last_updated_at": "true",
		}).
		SetResult(&body).
		Get("/simple/price")
	if err != nil {
		return quote{}, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	if resp.IsError() {
		return quote{}, fmt.Errorf("%w: status %s", ErrPriceUnavailable, resp.Status())
	}

	return toQuote(body, chain.PriceNativeID)
}

func (o *CoinGeckoOracle) tokenPrice(ctx context.Context, chain config.ChainConfig, tokenAddress string) (quote, error) {
	if chain.PricePlatform == "" {
		return quote{}, fmt.Errorf("%w: chain %d tokens", ErrUnsupportedAsset, chain.ID)
	}

	var body map[string]priceEntry
	resp, err := o.client.R().
		SetContext(ctx).
		SetPathParam("platform", chain.PricePlatform).
		SetQueryParams(map[string]string{
			"contract_addresses":      tokenAddress,
			"vs_currencies":           "usd",
			"include_last_updated_at": "true",
		}).
		SetResult(&body).
		Get("/simple/token_price/{platform}")
	if err != nil {
		return quote{}, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	if resp.IsError() {
		return quote{}, fmt.Errorf("%w: status %s", ErrPriceUnavailable, resp.Status())
	}

	return toQuote(body, tokenAddress)
}

func toQuote(body map[string]priceEntry, key string) (quote, error) {
	entry, ok := body[key]
	if !ok {
		// token_price keys are not always lowercased
		for k, v := range body {
			if strings.EqualFold(k, key) {
				entry, ok = v, true
				break
			}
		}
	}
	if !ok || !entry.USD.IsPositive() {
		return quote{}, fmt.Errorf("%w: no usd price for %s", ErrPriceUnavailable, key)
	}

	asOf := time.Now()
	if entry.LastUpdatedAt > 0 {
		asOf = time.Unix(entry.LastUpdatedAt, 0)
	}
	return quote{price: entry.USD, asOf: asOf}, nil
}
