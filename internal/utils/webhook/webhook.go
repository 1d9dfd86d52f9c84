package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

// Client pings heartbeat URLs of external uptime monitors.
type Client struct {
	httpClient *resty.Client
	logger     *logger.Logger
}

func New(logger *logger.Logger) *Client {
	return &Client{
		httpClient: resty.New().
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= 500
			}),
		logger: logger,
	}
}

// Ping sends a GET to url. An empty url is a no-op.
func (c *Client) Ping(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}

	resp, err := c.httpClient.R().SetContext(ctx).Get(url)
	if err != nil {
		return fmt.Errorf("heartbeat request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("heartbeat returned %s", resp.Status())
	}

	c.logger.Debug("[Webhook][Ping] heartbeat sent", map[string]string{
		"status_code": fmt.Sprintf("%d", resp.StatusCode()),
	})
	return nil
}
