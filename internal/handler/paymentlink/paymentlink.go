package paymentlink

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/paylink-backend/internal/consts"
	"github.com/dwarvesf/paylink-backend/internal/model"
	"github.com/dwarvesf/paylink-backend/internal/monitoring"
	paymentlinkService "github.com/dwarvesf/paylink-backend/internal/paymentlink"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
	"github.com/dwarvesf/paylink-backend/internal/view"
)

type CreatePaymentLinkRequest struct {
	ChainID           uint64 `json:"chain_id" binding:"required"`
	TokenAddress      string `json:"token_address"`
	TokenDecimals     int    `json:"token_decimals"`
	FiatAmount        string `json:"fiat_amount" binding:"required"`
	Description       string `json:"description"`
	SwapToStable      bool   `json:"swap_to_stable"`
	StablecoinAddress string `json:"stablecoin_address"`
	SlippageBps       uint32 `json:"slippage_bps"`
	ExpiresInSeconds  int64  `json:"expires_in_seconds" binding:"gte=0"`
}

type ListPaymentLinksQuery struct {
	Status   string `form:"status"`
	Page     int    `form:"page" binding:"gte=0"`
	PageSize int    `form:"page_size" binding:"gte=0,lte=100"`
}

type PaymentLinkPage struct {
	Items    []*model.PaymentLinkView `json:"items"`
	Total    int64                    `json:"total"`
	Page     int                      `json:"page"`
	PageSize int                      `json:"page_size"`
}

type handler struct {
	service paymentlinkService.IService
	metrics *monitoring.BusinessMetricsRecorder
	logger  *logger.Logger
}

func New(service paymentlinkService.IService, metrics *monitoring.BusinessMetricsRecorder, logger *logger.Logger) IHandler {
	return &handler{
		service: service,
		metrics: metrics,
		logger:  logger,
	}
}

// Create godoc
// @Summary Create payment link
// @Description Prices the fiat amount in the requested asset and issues a custody wallet the buyer pays into
// @id createPaymentLink
// @Tags PaymentLink
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreatePaymentLinkRequest true "Payment link parameters"
// @Success 201 {object} view.Response[model.PaymentLinkView]
// @Failure 400 {object} view.ErrorResponse
// @Failure 401 {object} view.ErrorResponse
// @Failure 503 {object} view.ErrorResponse
// @Failure 500 {object} view.ErrorResponse
// @Router /payment-links [post]
func (h *handler) Create(c *gin.Context) {
	start := time.Now()

	var req CreatePaymentLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("[CreatePaymentLink][ShouldBindJSON]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}

	sellerID := c.GetString(consts.ContextKeySellerID)
	link, err := h.service.Create(c.Request.Context(), paymentlinkService.CreateParams{
		SellerID:          sellerID,
		ChainID:           req.ChainID,
		TokenAddress:      req.TokenAddress,
		TokenDecimals:     req.TokenDecimals,
		FiatAmount:        req.FiatAmount,
		Description:       req.Description,
		SwapToStable:      req.SwapToStable,
		StablecoinAddress: req.StablecoinAddress,
		SlippageBps:       req.SlippageBps,
		ExpiresIn:         time.Duration(req.ExpiresInSeconds) * time.Second,
	})
	if err != nil {
		h.record("create", "error", start)
		h.logger.Error("[CreatePaymentLink][Create]", map[string]string{
			"seller_id": sellerID,
			"error":     err.Error(),
		})
		c.JSON(statusFor(err), view.CreateResponse[any](nil, err, req, "failed to create payment link"))
		return
	}

	h.record("create", "success", start)
	c.JSON(http.StatusCreated, view.CreateResponse(link, nil, nil, "payment link created"))
}

// Get godoc
// @Summary Get payment link
// @Description Returns the public view of a payment link, used by the checkout page
// @id getPaymentLink
// @Tags PaymentLink
// @Produce json
// @Param id path string true "Payment link id"
// @Success 200 {object} view.Response[model.PaymentLinkView]
// @Failure 404 {object} view.ErrorResponse
// @Failure 500 {object} view.ErrorResponse
// @Router /payment-links/{id} [get]
func (h *handler) Get(c *gin.Context) {
	id := c.Param("id")
	link, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, paymentlinkService.ErrNotFound) {
			h.logger.Error("[GetPaymentLink][Get]", map[string]string{
				"payment_link_id": id,
				"error":           err.Error(),
			})
		}
		c.JSON(statusFor(err), view.CreateResponse[any](nil, err, nil, "failed to get payment link"))
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse(link, nil, nil, ""))
}

// List godoc
// @Summary List payment links
// @Description Lists the authenticated seller's payment links, newest first
// @id listPaymentLinks
// @Tags PaymentLink
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param page query int false "Page number, starting at 1"
// @Param page_size query int false "Page size, at most 100"
// @Success 200 {object} view.Response[PaymentLinkPage]
// @Failure 400 {object} view.ErrorResponse
// @Failure 401 {object} view.ErrorResponse
// @Failure 500 {object} view.ErrorResponse
// @Router /payment-links [get]
func (h *handler) List(c *gin.Context) {
	var query ListPaymentLinksQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, query, "invalid request"))
		return
	}

	status := model.PaymentStatus(strings.ToUpper(query.Status))
	if status != "" && !status.IsValid() {
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, errors.New("unknown status"), query, "invalid request"))
		return
	}

	sellerID := c.GetString(consts.ContextKeySellerID)
	links, total, err := h.service.List(c.Request.Context(), paymentlinkService.ListParams{
		SellerID: sellerID,
		Status:   status,
		Page:     query.Page,
		PageSize: query.PageSize,
	})
	if err != nil {
		h.logger.Error("[ListPaymentLinks][List]", map[string]string{
			"seller_id": sellerID,
			"error":     err.Error(),
		})
		c.JSON(http.StatusInternalServerError, view.CreateResponse[any](nil, err, query, "failed to list payment links"))
		return
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	c.JSON(http.StatusOK, view.CreateResponse(PaymentLinkPage{
		Items:    links,
		Total:    total,
		Page:     page,
		PageSize: query.PageSize,
	}, nil, nil, ""))
}

// Cancel godoc
// @Summary Cancel payment link
// @Description Cancels a PENDING payment link. Links already paid into can not be cancelled
// @id cancelPaymentLink
// @Tags PaymentLink
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment link id"
// @Success 200 {object} view.Response[model.PaymentLinkView]
// @Failure 401 {object} view.ErrorResponse
// @Failure 404 {object} view.ErrorResponse
// @Failure 409 {object} view.ErrorResponse
// @Failure 500 {object} view.ErrorResponse
// @Router /payment-links/{id}/cancel [post]
func (h *handler) Cancel(c *gin.Context) {
	start := time.Now()
	id := c.Param("id")
	sellerID := c.GetString(consts.ContextKeySellerID)

	link, err := h.service.Cancel(c.Request.Context(), sellerID, id)
	if err != nil {
		h.record("cancel", "error", start)
		h.logger.Warn("[CancelPaymentLink][Cancel]", map[string]string{
			"payment_link_id": id,
			"seller_id":       sellerID,
			"error":           err.Error(),
		})
		c.JSON(statusFor(err), view.CreateResponse[any](nil, err, nil, "failed to cancel payment link"))
		return
	}

	h.record("cancel", "success", start)
	c.JSON(http.StatusOK, view.CreateResponse(link, nil, nil, "payment link cancelled"))
}

func (h *handler) record(operation, status string, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordPaymentLinkOperation(operation, status, time.Since(start).Seconds())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, paymentlinkService.ErrInvalidParams),
		errors.Is(err, paymentlinkService.ErrUnsupportedChain),
		errors.Is(err, paymentlinkService.ErrNoStablecoinRoute):
		return http.StatusBadRequest
	case errors.Is(err, paymentlinkService.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, paymentlinkService.ErrNotCancellable):
		return http.StatusConflict
	case errors.Is(err, paymentlinkService.ErrChainUnavailable),
		errors.Is(err, paymentlinkService.ErrPriceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
