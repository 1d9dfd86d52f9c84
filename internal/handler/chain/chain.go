package chain

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/paylink-backend/internal/chainstatus"
	"github.com/dwarvesf/paylink-backend/internal/model"
	"github.com/dwarvesf/paylink-backend/internal/utils/config"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
	"github.com/dwarvesf/paylink-backend/internal/view"
)

type SetStatusRequest struct {
	Status  string `json:"status" binding:"required,oneof=ACTIVE MAINTENANCE DISABLED"`
	Message string `json:"message" binding:"max=500"`
}

// ChainView is a chain's operational status joined with its configured name.
type ChainView struct {
	ChainID      uint64           `json:"chain_id"`
	Name         string           `json:"name,omitempty"`
	NativeSymbol string           `json:"native_symbol,omitempty"`
	Status       model.ChainState `json:"status"`
	Message      string           `json:"message,omitempty"`
	UpdatedAt    *time.Time       `json:"updated_at,omitempty"`
}

type handler struct {
	registry  chainstatus.IRegistry
	appConfig *config.AppConfig
	logger    *logger.Logger
}

func New(registry chainstatus.IRegistry, appConfig *config.AppConfig, logger *logger.Logger) IHandler {
	return &handler{
		registry:  registry,
		appConfig: appConfig,
		logger:    logger,
	}
}

// List godoc
// @Summary List chains
// @Description Lists supported chains and whether they currently accept payments
// @id listChains
// @Tags Chain
// @Produce json
// @Success 200 {object} view.Response[[]ChainView]
// @Failure 500 {object} view.ErrorResponse
// @Router /chains [get]
func (h *handler) List(c *gin.Context) {
	statuses, err := h.registry.List(c.Request.Context())
	if err != nil {
		h.logger.Error("[ListChains][List]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, view.CreateResponse[any](nil, err, nil, "failed to list chains"))
		return
	}

	views := make([]ChainView, 0, len(statuses))
	for _, status := range statuses {
		views = append(views, h.toView(status))
	}
	c.JSON(http.StatusOK, view.CreateResponse(views, nil, nil, ""))
}

// SetStatus godoc
// @Summary Set chain status
// @Description Puts a chain in or out of maintenance. Only ACTIVE chains accept new payment links
// @id setChainStatus
// @Tags Chain
// @Accept json
// @Produce json
// @Security AdminKey
// @Param chainId path int true "EVM chain id"
// @Param request body SetStatusRequest true "New status"
// @Success 200 {object} view.Response[ChainView]
// @Failure 400 {object} view.ErrorResponse
// @Failure 401 {object} view.ErrorResponse
// @Failure 404 {object} view.ErrorResponse
// @Failure 500 {object} view.ErrorResponse
// @Router /chains/{chainId}/status [put]
func (h *handler) SetStatus(c *gin.Context) {
	chainID, err := strconv.ParseUint(c.Param("chainId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, nil, "invalid chain id"))
		return
	}
	if _, ok := h.appConfig.Chain(chainID); !ok {
		c.JSON(http.StatusNotFound, view.CreateResponse[any](nil, chainstatus.ErrUnknownChain, nil, "chain is not supported"))
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}

	saved, err := h.registry.SetStatus(c.Request.Context(), chainID, model.ChainState(req.Status), req.Message)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chainstatus.ErrInvalidStatus) {
			status = http.StatusBadRequest
		}
		c.JSON(status, view.CreateResponse[any](nil, err, req, "failed to update chain status"))
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse(h.toView(*saved), nil, nil, "chain status updated"))
}

func (h *handler) toView(status model.ChainStatus) ChainView {
	v := ChainView{
		ChainID: status.ChainID,
		Status:  status.Status,
		Message: status.Message,
	}
	if !status.UpdatedAt.IsZero() {
		updatedAt := status.UpdatedAt
		v.UpdatedAt = &updatedAt
	}
	if chain, ok := h.appConfig.Chain(status.ChainID); ok {
		v.Name = chain.Name
		v.NativeSymbol = chain.NativeSymbol
	}
	return v
}
