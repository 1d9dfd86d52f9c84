package chain_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"

	"github.com/dwarvesf/paylink-backend/internal/handler/chain"
	"github.com/dwarvesf/paylink-backend/internal/model"
	"github.com/dwarvesf/paylink-backend/internal/utils/config"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) IsActive(ctx context.Context, chainID uint64) (bool, error) {
	args := m.Called(chainID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRegistry) SetStatus(ctx context.Context, chainID uint64, status model.ChainState, message string) (*model.ChainStatus, error) {
	args := m.Called(chainID, status, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ChainStatus), args.Error(1)
}

func (m *MockRegistry) Get(ctx context.Context, chainID uint64) (*model.ChainStatus, error) {
	args := m.Called(chainID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ChainStatus), args.Error(1)
}

func (m *MockRegistry) List(ctx context.Context) ([]model.ChainStatus, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ChainStatus), args.Error(1)
}

var _ = Describe("Chain handler", func() {
	var (
		registry *MockRegistry
		router   *gin.Engine
	)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		registry = &MockRegistry{}
		appConfig := &config.AppConfig{
			Blockchain: config.BlockchainConfig{
				Chains: []config.ChainConfig{
					{ID: 8453, Name: "base", NativeSymbol: "ETH"},
					{ID: 137, Name: "polygon", NativeSymbol: "POL"},
				},
			},
		}
		h := chain.New(registry, appConfig, logger.New("test"))

		router = gin.New()
		router.GET("/chains", h.List)
		router.PUT("/chains/:chainId/status", h.SetStatus)
	})

	AfterEach(func() {
		registry.AssertExpectations(GinkgoT())
	})

	It("lists chains with their configured names", func() {
		registry.On("List").Return([]model.ChainStatus{
			{ChainID: 137, Status: model.ChainStateActive},
			{ChainID: 8453, Status: model.ChainStateMaintenance, Message: "node upgrade", UpdatedAt: time.Now()},
		}, nil)

		w := do(http.MethodGet, "/chains", "")
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp struct {
			Data []chain.ChainView `json:"data"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Data).To(HaveLen(2))
		Expect(resp.Data[0].Name).To(Equal("polygon"))
		Expect(resp.Data[0].UpdatedAt).To(BeNil())
		Expect(resp.Data[1].Status).To(Equal(model.ChainStateMaintenance))
		Expect(resp.Data[1].Message).To(Equal("node upgrade"))
	})

	It("answers 500 when the registry fails", func() {
		registry.On("List").Return(nil, errors.New("db down"))

		w := do(http.MethodGet, "/chains", "")
		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})

	It("puts a chain into maintenance", func() {
		registry.On("SetStatus", uint64(8453), model.ChainStateMaintenance, "rpc degraded").
			Return(&model.ChainStatus{ChainID: 8453, Status: model.ChainStateMaintenance, Message: "rpc degraded"}, nil)

		w := do(http.MethodPut, "/chains/8453/status", `{"status":"MAINTENANCE","message":"rpc degraded"}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"name":"base"`))
	})

	DescribeTable("rejects bad updates",
		func(path, body string, code int) {
			w := do(http.MethodPut, path, body)
			Expect(w.Code).To(Equal(code))
		},
		Entry("non numeric id", "/chains/base/status", `{"status":"ACTIVE"}`, http.StatusBadRequest),
		Entry("unconfigured chain", "/chains/1/status", `{"status":"ACTIVE"}`, http.StatusNotFound),
		Entry("unknown status", "/chains/8453/status", `{"status":"PAUSED"}`, http.StatusBadRequest),
		Entry("missing status", "/chains/8453/status", `{}`, http.StatusBadRequest),
	)
})
