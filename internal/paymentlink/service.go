// Package paymentlink creates payment links and handles the status changes
// that happen outside settlement: cancel and expiry.
package paymentlink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/chainstatus"
	"github.com/dwarvesf/paylink-backend/internal/model"
	"github.com/dwarvesf/paylink-backend/internal/oracle"
	"github.com/dwarvesf/paylink-backend/internal/store"
	paymentlinkstore "github.com/dwarvesf/paylink-backend/internal/store/paymentlink"
	"github.com/dwarvesf/paylink-backend/internal/utils/config"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
	"github.com/dwarvesf/paylink-backend/internal/wallet"
)

const (
	expiryBatchSize = 100
	defaultPageSize = 20
	maxPageSize     = 100
	stablecoinKey   = "USDC"
)

var (
	ErrInvalidParams     = errors.New("invalid payment link parameters")
	ErrUnsupportedChain  = errors.New("chain is not supported")
	ErrChainUnavailable  = errors.New("chain is not accepting payments")
	ErrNotFound          = errors.New("payment link not found")
	ErrNotCancellable    = errors.New("payment link can no longer be cancelled")
	ErrPriceUnavailable  = errors.New("price for the payment asset is unavailable")
	ErrNoStablecoinRoute = errors.New("chain has no stablecoin to swap into")
)

// EventSink receives events about link status changes made by the service.
type EventSink interface {
	Notify(ctx context.Context, event model.PaymentEvent) error
	NotifySeller(ctx context.Context, event model.PaymentEvent) error
}

type CreateParams struct {
	SellerID          string `validate:"required,max=64"`
	ChainID           uint64 `validate:"required"`
	TokenAddress      string `validate:"omitempty,eth_addr"`
	TokenDecimals     int    `validate:"required_with=TokenAddress,min=0,max=36"`
	FiatAmount        string `validate:"required,numeric"`
	Description       string `validate:"max=500"`
	SwapToStable      bool
	StablecoinAddress string `validate:"omitempty,eth_addr"`
	SlippageBps       uint32 `validate:"max=1000"`
	// ExpiresIn overrides the default link lifetime when positive.
	ExpiresIn time.Duration
}

type ListParams struct {
	SellerID string
	Status   model.PaymentStatus
	Page     int
	PageSize int
}

type Service struct {
	db        *gorm.DB
	store     *store.Store
	wallets   wallet.IManager
	chains    chainstatus.IRegistry
	oracle    oracle.IOracle
	events    EventSink
	appConfig *config.AppConfig
	validate  *validator.Validate
	logger    *logger.Logger
	now       func() time.Time
}

func New(
	db *gorm.DB,
	store *store.Store,
	wallets wallet.IManager,
	chains chainstatus.IRegistry,
	oracle oracle.IOracle,
	events EventSink,
	appConfig *config.AppConfig,
	logger *logger.Logger,
) *Service {
	return &Service{
		db:        db,
		store:     store,
		wallets:   wallets,
		chains:    chains,
		oracle:    oracle,
		events:    events,
		appConfig: appConfig,
		validate:  validator.New(),
		logger:    logger.With(map[string]string{"component": "paymentlink"}),
		now:       time.Now,
	}
}

// Create prices the link in the requested asset, issues a custody wallet
// for it and stores it as PENDING.
func (s *Service) Create(ctx context.Context, params CreateParams) (*model.PaymentLinkView, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	fiat, err := decimal.NewFromString(params.FiatAmount)
	if err != nil || !fiat.IsPositive() {
		return nil, fmt.Errorf("%w: fiat amount must be positive", ErrInvalidParams)
	}

	chain, ok := s.appConfig.Chain(params.ChainID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChain, params.ChainID)
	}
	active, err := s.chains.IsActive(ctx, params.ChainID)
	if err != nil {
		return nil, fmt.Errorf("check chain status: %w", err)
	}
	if !active {
		return nil, fmt.Errorf("%w: %s", ErrChainUnavailable, chain.Name)
	}

	token := strings.ToLower(params.TokenAddress)
	decimals := chain.NativeDecimals
	if token != "" {
		decimals = params.TokenDecimals
	}

	stablecoin := strings.ToLower(params.StablecoinAddress)
	if params.SwapToStable && stablecoin == "" {
		stablecoin = strings.ToLower(chain.Stablecoins[stablecoinKey])
		if stablecoin == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoStablecoinRoute, chain.Name)
		}
	}

	price, _, err := s.oracle.GetPrice(ctx, params.ChainID, token)
	if err != nil {
		s.logger.Warn("[Create][GetPrice]", map[string]string{
			"chain_id": fmt.Sprintf("%d", params.ChainID),
			"token":    token,
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	amount, err := oracle.ToTokenAmount(fiat, price, decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}

	generated, err := s.wallets.Generate(ctx)
	if err != nil {
		s.logger.Error("[Create][Generate]", map[string]string{"error": err.Error()})
		return nil, err
	}

	slippage := params.SlippageBps
	if slippage == 0 {
		slippage = s.appConfig.Settlement.DefaultSlippage
	}
	ttl := params.ExpiresIn
	if ttl <= 0 {
		ttl = s.appConfig.Settlement.PaymentLinkTTL
	}

	link := &model.PaymentLink{
		ID:                    uuid.NewString(),
		SellerID:              params.SellerID,
		ChainID:               params.ChainID,
		TokenAddress:          token,
		TokenDecimals:         decimals,
		FiatAmount:            fiat.String(),
		Amount:                amount.String(),
		Description:           params.Description,
		SwapToStable:          params.SwapToStable,
		StablecoinAddress:     stablecoin,
		SlippageBps:           slippage,
		RequiredConfirmations: chain.RequiredConfirmations,
		WalletAddress:         generated.Address,
		EncryptedPrivateKey:   generated.EncryptedPrivateKey,
		KeySalt:               generated.Salt,
		Status:                model.PaymentStatusPending,
		ExpiresAt:             s.now().Add(ttl),
	}

	created, err := s.store.PaymentLink.Create(s.db.WithContext(ctx), link)
	if err != nil {
		s.logger.Error("[Create][Store]", map[string]string{"error": err.Error()})
		return nil, err
	}

	s.logger.Info("[Create] payment link created", map[string]string{
		"payment_link_id": created.ID,
		"seller_id":       created.SellerID,
		"chain_id":        fmt.Sprintf("%d", created.ChainID),
		"amount":          created.Amount,
	})
	return created.View(), nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.PaymentLinkView, error) {
	link, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return link.View(), nil
}

func (s *Service) List(ctx context.Context, params ListParams) ([]*model.PaymentLinkView, int64, error) {
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := params.Page
	if page < 1 {
		page = 1
	}

	links, total, err := s.store.PaymentLink.List(s.db.WithContext(ctx), paymentlinkstore.ListFilter{
		SellerID: params.SellerID,
		Status:   params.Status,
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	})
	if err != nil {
		return nil, 0, err
	}

	views := make([]*model.PaymentLinkView, 0, len(links))
	for i := range links {
		views = append(views, links[i].View())
	}
	return views, total, nil
}

// Cancel closes a PENDING link on behalf of its seller. A link that was
// detected in the meantime can not be cancelled.
func (s *Service) Cancel(ctx context.Context, sellerID, id string) (*model.PaymentLinkView, error) {
	link, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if link.SellerID != sellerID {
		return nil, ErrNotFound
	}
	if link.Status != model.PaymentStatusPending {
		return nil, fmt.Errorf("%w: status is %s", ErrNotCancellable, link.Status)
	}

	err = s.store.PaymentLink.Transition(s.db.WithContext(ctx), link, model.PaymentStatusCancelled, nil)
	if errors.Is(err, paymentlinkstore.ErrStaleState) {
		return nil, fmt.Errorf("%w: %w", ErrNotCancellable, err)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("[Cancel] payment link cancelled", map[string]string{
		"payment_link_id": link.ID,
		"seller_id":       sellerID,
	})
	s.notify(ctx, model.NewPaymentEvent(model.PaymentEventCancelled, link, nil), false)
	return link.View(), nil
}

// ExpireOverdue moves PENDING links past their expiry to EXPIRED and
// returns how many were expired. Links detected meanwhile are skipped.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	db := s.db.WithContext(ctx)
	expired := 0

	for {
		links, err := s.store.PaymentLink.ListOverdue(db, s.now(), expiryBatchSize)
		if err != nil {
			return expired, fmt.Errorf("list overdue payment links: %w", err)
		}

		progressed := 0
		for i := range links {
			link := &links[i]
			err := s.store.PaymentLink.Transition(db, link, model.PaymentStatusExpired, nil)
			if errors.Is(err, paymentlinkstore.ErrStaleState) {
				continue
			}
			if err != nil {
				return expired, err
			}
			expired++
			progressed++
			s.notify(ctx, model.NewPaymentEvent(model.PaymentEventExpired, link, map[string]interface{}{
				"expiresAt": link.ExpiresAt,
			}), true)
		}

		if len(links) < expiryBatchSize || progressed == 0 {
			break
		}
	}

	if expired > 0 {
		s.logger.Info("[ExpireOverdue] payment links expired", map[string]string{
			"count": fmt.Sprintf("%d", expired),
		})
	}
	return expired, nil
}

func (s *Service) load(ctx context.Context, id string) (*model.PaymentLink, error) {
	link, err := s.store.PaymentLink.GetByID(s.db.WithContext(ctx), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return link, nil
}

func (s *Service) notify(ctx context.Context, event model.PaymentEvent, seller bool) {
	if s.events == nil {
		return
	}
	var err error
	if seller {
		err = s.events.NotifySeller(ctx, event)
	} else {
		err = s.events.Notify(ctx, event)
	}
	if err != nil {
		s.logger.Warn("[Notify] failed to publish payment event", map[string]string{
			"payment_link_id": event.PaymentLinkID,
			"type":            string(event.Type),
			"error":           err.Error(),
		})
	}
}
