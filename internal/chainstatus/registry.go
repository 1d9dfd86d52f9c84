package chainstatus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/model"
	chainstatusstore "github.com/dwarvesf/paylink-backend/internal/store/chainstatus"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

const cacheTTL = 30 * time.Second

var (
	ErrUnknownChain  = errors.New("unknown chain")
	ErrInvalidStatus = errors.New("invalid chain status")
)

type Registry struct {
	db         *gorm.DB
	store      chainstatusstore.IStore
	configured map[uint64]struct{}
	cache      *gocache.Cache
	logger     *logger.Logger
}

// New builds a registry. Chains listed in configuredChains are ACTIVE until
// an operator records otherwise.
func New(db *gorm.DB, store chainstatusstore.IStore, configuredChains []uint64, logger *logger.Logger) *Registry {
	configured := make(map[uint64]struct{}, len(configuredChains))
	for _, id := range configuredChains {
		configured[id] = struct{}{}
	}

	return &Registry{
		db:         db,
		store:      store,
		configured: configured,
		cache:      gocache.New(cacheTTL, 2*cacheTTL),
		logger:     logger,
	}
}

func cacheKey(chainID uint64) string {
	return strconv.FormatUint(chainID, 10)
}

func (r *Registry) Get(ctx context.Context, chainID uint64) (*model.ChainStatus, error) {
	if cached, ok := r.cache.Get(cacheKey(chainID)); ok {
		status := cached.(model.ChainStatus)
		return &status, nil
	}

	status, err := r.store.Get(r.db.WithContext(ctx), chainID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			r.logger.Error("[ChainStatus][Get]", map[string]string{
				"chain_id": cacheKey(chainID),
				"error":    err.Error(),
			})
			return nil, err
		}
		if _, ok := r.configured[chainID]; !ok {
			return nil, ErrUnknownChain
		}
		status = &model.ChainStatus{ChainID: chainID, Status: model.ChainStateActive}
	}

	r.cache.SetDefault(cacheKey(chainID), *status)
	return status, nil
}

// IsActive reports false for unknown chains rather than failing.
func (r *Registry) IsActive(ctx context.Context, chainID uint64) (bool, error) {
	status, err := r.Get(ctx, chainID)
	if errors.Is(err, ErrUnknownChain) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status.Status == model.ChainStateActive, nil
}

func (r *Registry) SetStatus(ctx context.Context, chainID uint64, status model.ChainState, message string) (*model.ChainStatus, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	saved, err := r.store.Upsert(r.db.WithContext(ctx), &model.ChainStatus{
		ChainID: chainID,
		Status:  status,
		Message: message,
	})
	if err != nil {
		r.logger.Error("[ChainStatus][SetStatus]", map[string]string{
			"chain_id": cacheKey(chainID),
			"error":    err.Error(),
		})
		return nil, err
	}
	r.cache.Delete(cacheKey(chainID))

	r.logger.Info("[ChainStatus][SetStatus] chain status changed", map[string]string{
		"chain_id": cacheKey(chainID),
		"status":   string(status),
		"message":  message,
	})
	return saved, nil
}

// List returns every recorded chain plus configured chains that have no
// record yet, ordered by chain id.
func (r *Registry) List(ctx context.Context) ([]model.ChainStatus, error) {
	recorded, err := r.store.List(r.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	seen := make(map[uint64]struct{}, len(recorded))
	for _, status := range recorded {
		seen[status.ChainID] = struct{}{}
	}

	result := recorded
	for id := range r.configured {
		if _, ok := seen[id]; !ok {
			result = append(result, model.ChainStatus{ChainID: id, Status: model.ChainStateActive})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ChainID < result[j].ChainID
	})
	return result, nil
}
