package settlement_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"

	"github.com/dwarvesf/paylink-backend/internal/handler/settlement"
	settlementService "github.com/dwarvesf/paylink-backend/internal/settlement"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

const txHash = "0x8f1b9e5c1e4b2a0d7c3f6e9a8b7c6d5e4f3a2b1c0d9e8f7a6b5c4d3e2f1a0b9c"

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueSettlement(ctx context.Context, job settlementService.Job) (bool, error) {
	args := m.Called(job)
	return args.Bool(0), args.Error(1)
}

var _ = Describe("Settlement handler", func() {
	var (
		enqueuer *MockEnqueuer
		router   *gin.Engine
	)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/settlements", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	body := fmt.Sprintf(`{"payment_link_id":"link-1","tx_hash":%q,"amount":"1000","block_number":42}`, txHash)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		enqueuer = &MockEnqueuer{}
		h := settlement.New(enqueuer, nil, logger.New("test"))

		router = gin.New()
		router.POST("/settlements", h.Enqueue)
	})

	AfterEach(func() {
		enqueuer.AssertExpectations(GinkgoT())
	})

	It("enqueues the detected transfer", func() {
		enqueuer.On("EnqueueSettlement", mock.MatchedBy(func(job settlementService.Job) bool {
			return job.PaymentLinkID == "link-1" &&
				job.TxHash == txHash &&
				job.Amount == "1000" &&
				job.BlockNumber != nil && *job.BlockNumber == 42
		})).Return(true, nil)

		w := post(body)
		Expect(w.Code).To(Equal(http.StatusAccepted))

		var resp struct {
			Data    settlement.EnqueueResponse `json:"data"`
			Message string                     `json:"message"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Data.Queued).To(BeTrue())
		Expect(resp.Data.TaskID).To(Equal("settle:link-1:" + txHash))
		Expect(resp.Message).To(Equal("settlement queued"))
	})

	It("accepts a repeated notification without queueing it twice", func() {
		enqueuer.On("EnqueueSettlement", mock.Anything).Return(false, nil)

		w := post(body)
		Expect(w.Code).To(Equal(http.StatusAccepted))
		Expect(w.Body.String()).To(ContainSubstring(`"queued":false`))
		Expect(w.Body.String()).To(ContainSubstring("settlement duplicate"))
	})

	It("answers 400 for a job the queue refuses as invalid", func() {
		enqueuer.On("EnqueueSettlement", mock.Anything).
			Return(false, fmt.Errorf("%w: malformed tx hash", settlementService.ErrInvalidJob))

		w := post(`{"payment_link_id":"link-1","tx_hash":"0x01","amount":"1000"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("answers 400 when fields are missing", func() {
		w := post(`{"payment_link_id":"link-1"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("answers 500 when the queue is unreachable", func() {
		enqueuer.On("EnqueueSettlement", mock.Anything).Return(false, errors.New("dial tcp: connection refused"))

		w := post(body)
		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})
})
