package paymentlink_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"

	"github.com/dwarvesf/paylink-backend/internal/consts"
	"github.com/dwarvesf/paylink-backend/internal/handler/paymentlink"
	"github.com/dwarvesf/paylink-backend/internal/model"
	"github.com/dwarvesf/paylink-backend/internal/monitoring"
	paymentlinkService "github.com/dwarvesf/paylink-backend/internal/paymentlink"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, params paymentlinkService.CreateParams) (*model.PaymentLinkView, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentLinkView), args.Error(1)
}

func (m *MockService) Get(ctx context.Context, id string) (*model.PaymentLinkView, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentLinkView), args.Error(1)
}

func (m *MockService) List(ctx context.Context, params paymentlinkService.ListParams) ([]*model.PaymentLinkView, int64, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*model.PaymentLinkView), args.Get(1).(int64), args.Error(2)
}

func (m *MockService) Cancel(ctx context.Context, sellerID, id string) (*model.PaymentLinkView, error) {
	args := m.Called(sellerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentLinkView), args.Error(1)
}

func (m *MockService) ExpireOverdue(ctx context.Context) (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error"`
	Message string          `json:"message"`
}

func sampleView(status model.PaymentStatus) *model.PaymentLinkView {
	return &model.PaymentLinkView{
		ID:                    "7d0c1c7e-6a4f-4a44-8d8c-0c7b1f0e8a11",
		SellerID:              "seller-1",
		ChainID:               8453,
		TokenDecimals:         18,
		FiatAmount:            "25.00",
		Amount:                "10000000000000000",
		RequiredConfirmations: 3,
		WalletAddress:         "0x5aeda56215b167893e80b4fe645ba6d5bab767de",
		Status:                status,
		ExpiresAt:             time.Date(2026, 1, 1, 12, 30, 0, 0, time.UTC),
		CreatedAt:             time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

var _ = Describe("Payment link handler", func() {
	var (
		service *MockService
		router  *gin.Engine
	)

	asSeller := func(sellerID string) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set(consts.ContextKeySellerID, sellerID)
			c.Next()
		}
	}

	do := func(method, path, body string) (*httptest.ResponseRecorder, envelope) {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var resp envelope
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return w, resp
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		service = &MockService{}
		metrics := monitoring.NewBusinessMetricsRecorder(monitoring.NewHTTPMetrics())
		h := paymentlink.New(service, metrics, logger.New("test"))

		router = gin.New()
		router.GET("/payment-links/:id", h.Get)
		seller := router.Group("", asSeller("seller-1"))
		seller.POST("/payment-links", h.Create)
		seller.GET("/payment-links", h.List)
		seller.POST("/payment-links/:id/cancel", h.Cancel)
	})

	AfterEach(func() {
		service.AssertExpectations(GinkgoT())
	})

	Describe("Create", func() {
		It("creates a link for the authenticated seller", func() {
			service.On("Create", mock.MatchedBy(func(p paymentlinkService.CreateParams) bool {
				return p.SellerID == "seller-1" &&
					p.ChainID == 8453 &&
					p.FiatAmount == "25.00" &&
					p.ExpiresIn == 15*time.Minute
			})).Return(sampleView(model.PaymentStatusPending), nil)

			w, resp := do(http.MethodPost, "/payment-links",
				`{"chain_id":8453,"fiat_amount":"25.00","expires_in_seconds":900}`)

			Expect(w.Code).To(Equal(http.StatusCreated))
			Expect(resp.Error).To(BeNil())

			var view model.PaymentLinkView
			Expect(json.Unmarshal(resp.Data, &view)).To(Succeed())
			Expect(view.Status).To(Equal(model.PaymentStatusPending))
			Expect(view.WalletAddress).To(HavePrefix("0x"))
		})

		It("never exposes key material", func() {
			service.On("Create", mock.Anything).Return(sampleView(model.PaymentStatusPending), nil)

			w, _ := do(http.MethodPost, "/payment-links", `{"chain_id":8453,"fiat_amount":"25.00"}`)

			Expect(w.Code).To(Equal(http.StatusCreated))
			Expect(w.Body.String()).ToNot(ContainSubstring("private"))
			Expect(w.Body.String()).ToNot(ContainSubstring("salt"))
		})

		It("rejects a body without the required fields", func() {
			w, resp := do(http.MethodPost, "/payment-links", `{"description":"no amount"}`)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(resp.Error).ToNot(BeNil())
			Expect(resp.Message).To(Equal("invalid request"))
		})

		DescribeTable("maps service errors to status codes",
			func(err error, code int) {
				service.On("Create", mock.Anything).Return(nil, err)

				w, resp := do(http.MethodPost, "/payment-links", `{"chain_id":8453,"fiat_amount":"25.00"}`)

				Expect(w.Code).To(Equal(code))
				Expect(resp.Error).ToNot(BeNil())
			},
			Entry("invalid params", fmt.Errorf("%w: bad token", paymentlinkService.ErrInvalidParams), http.StatusBadRequest),
			Entry("unsupported chain", paymentlinkService.ErrUnsupportedChain, http.StatusBadRequest),
			Entry("no stablecoin route", paymentlinkService.ErrNoStablecoinRoute, http.StatusBadRequest),
			Entry("chain in maintenance", paymentlinkService.ErrChainUnavailable, http.StatusServiceUnavailable),
			Entry("price unavailable", paymentlinkService.ErrPriceUnavailable, http.StatusServiceUnavailable),
			Entry("unexpected failure", errors.New("connection reset"), http.StatusInternalServerError),
		)
	})

	Describe("Get", func() {
		It("returns the public view", func() {
			link := sampleView(model.PaymentStatusConfirming)
			service.On("Get", link.ID).Return(link, nil)

			w, resp := do(http.MethodGet, "/payment-links/"+link.ID, "")

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(string(resp.Data)).To(ContainSubstring(`"status":"CONFIRMING"`))
		})

		It("answers 404 for unknown links", func() {
			service.On("Get", "missing").Return(nil, paymentlinkService.ErrNotFound)

			w, _ := do(http.MethodGet, "/payment-links/missing", "")

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("List", func() {
		It("scopes the listing to the seller and normalises the status filter", func() {
			links := []*model.PaymentLinkView{sampleView(model.PaymentStatusPending)}
			service.On("List", paymentlinkService.ListParams{
				SellerID: "seller-1",
				Status:   model.PaymentStatusPending,
				Page:     2,
				PageSize: 10,
			}).Return(links, int64(11), nil)

			w, resp := do(http.MethodGet, "/payment-links?status=pending&page=2&page_size=10", "")

			Expect(w.Code).To(Equal(http.StatusOK))

			var page paymentlink.PaymentLinkPage
			Expect(json.Unmarshal(resp.Data, &page)).To(Succeed())
			Expect(page.Total).To(Equal(int64(11)))
			Expect(page.Page).To(Equal(2))
			Expect(page.Items).To(HaveLen(1))
		})

		It("rejects unknown statuses", func() {
			w, _ := do(http.MethodGet, "/payment-links?status=SETTLED", "")

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects oversized pages", func() {
			w, _ := do(http.MethodGet, "/payment-links?page_size=500", "")

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Cancel", func() {
		It("cancels a pending link", func() {
			link := sampleView(model.PaymentStatusCancelled)
			service.On("Cancel", "seller-1", link.ID).Return(link, nil)

			w, resp := do(http.MethodPost, "/payment-links/"+link.ID+"/cancel", "")

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(resp.Message).To(Equal("payment link cancelled"))
		})

		It("answers 409 when the link was already paid into", func() {
			service.On("Cancel", "seller-1", "paid").
				Return(nil, fmt.Errorf("%w: status is DETECTED", paymentlinkService.ErrNotCancellable))

			w, _ := do(http.MethodPost, "/payment-links/paid/cancel", "")

			Expect(w.Code).To(Equal(http.StatusConflict))
		})

		It("hides links of other sellers", func() {
			service.On("Cancel", "seller-1", "foreign").Return(nil, paymentlinkService.ErrNotFound)

			w, _ := do(http.MethodPost, "/payment-links/foreign/cancel", "")

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})
})
