// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"farm-copilot/internal/common/config"
	"farm-copilot/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client is the broker connection shared by the copilot job workers.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig controls how often a broker command is retried on transient errors.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// NewClient connects to the broker named in the application configuration.
func NewClient(cfg config.CamundaConfig) (*Client, error) {
	return NewClientWithConfig(ClientConfigFrom(cfg))
}

// ClientConfigFrom maps the application configuration onto client settings.
func ClientConfigFrom(cfg config.CamundaConfig) *ClientConfig {
	requestTimeout := config.GetDuration(cfg.RequestTimeout)
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         requestTimeout,
		RetryConfig:            DefaultRetryConfig,
	}
}

// NewClientWithConfig dials the gateway and fails unless the broker answers a
// topology request within the connection timeout.
func NewClientWithConfig(cc *ClientConfig) (*Client, error) {
	if cc.RetryConfig == nil {
		cc.RetryConfig = DefaultRetryConfig
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cc.GatewayAddress,
		UsePlaintextConnection: cc.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("create zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cc.ConnectionTimeout)
	defer cancel()
	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("reach zeebe broker at %s: %w", cc.GatewayAddress, err)
	}

	return &Client{client: zeebeClient, config: cc}, nil
}

func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// ExecuteWithRetry runs command, retrying transient broker errors with
// exponential backoff. Any other error is returned at once, mapped to an
// application error. A nil Client runs the command once.
func (c *Client) ExecuteWithRetry(
	ctx context.Context,
	command func(context.Context) (interface{}, error),
	operation string,
) (interface{}, error) {
	if c == nil {
		return command(ctx)
	}

	rc := c.config.RetryConfig
	for attempt := 0; ; attempt++ {
		result, err := command(ctx)
		if err == nil {
			return result, nil
		}
		if !isRetryableZeebeError(err) || attempt >= rc.MaxRetries {
			return nil, c.mapZeebeError(err, operation, attempt)
		}

		select {
		case <-time.After(backoff(rc, attempt)):
		case <-ctx.Done():
			return nil, fmt.Errorf("%s cancelled after %d attempts: %w", operation, attempt+1, ctx.Err())
		}
	}
}

func backoff(rc *RetryConfig, attempt int) time.Duration {
	delay := rc.BaseDelay * time.Duration(1<<attempt)
	if delay > rc.MaxDelay {
		delay = rc.MaxDelay
	}
	return delay
}

var (
	unreachablePhrases = []string{"connection refused", "connection reset", "unavailable", "unreachable", "broken pipe"}
	timeoutPhrases     = []string{"timeout", "deadline exceeded"}
	rejectedPhrases    = []string{"not found", "already exists", "permission denied", "unauthorized"}
)

func containsAny(msg string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	return containsAny(msg, unreachablePhrases) || containsAny(msg, timeoutPhrases)
}

// mapZeebeError turns a broker error into an application error. Rejections
// become INVALID_REQUEST so the job is not retried.
func (c *Client) mapZeebeError(err error, operation string, attempt int) error {
	detail := fmt.Sprintf("zeebe %s", operation)
	if attempt > 0 {
		detail += fmt.Sprintf(" after %d attempts", attempt)
	}
	wrapped := fmt.Errorf("%s: %w", detail, err)

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, unreachablePhrases):
		return errors.NewExternalServiceError("zeebe", wrapped)
	case containsAny(msg, timeoutPhrases):
		return errors.NewTimeoutError("zeebe", wrapped)
	case containsAny(msg, rejectedPhrases):
		return errors.NewInvalidRequestError(wrapped.Error())
	default:
		return errors.NewExternalServiceError("zeebe", wrapped)
	}
}

// HealthCheck asks the broker for its topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check: %w", err)
	}
	return nil
}
