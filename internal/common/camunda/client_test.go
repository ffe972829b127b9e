package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farm-copilot/internal/common/config"
	"farm-copilot/internal/common/errors"
)

func testClient() *Client {
	return &Client{config: &ClientConfig{
		ConnectionTimeout: time.Second,
		RetryConfig: &RetryConfig{
			MaxRetries: 2,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
		},
	}}
}

func TestExecuteWithRetry_RetriesTransientErrors(t *testing.T) {
	c := testClient()
	attempts := 0

	result, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		attempts++
		if attempts < 3 {
			return nil, stderrors.New("rpc error: code = Unavailable desc = connection refused")
		}
		return "done", nil
	}, "complete job")

	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, 3, attempts)
}

func TestExecuteWithRetry_StopsOnPermanentError(t *testing.T) {
	c := testClient()
	attempts := 0

	_, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		attempts++
		return nil, stderrors.New("rpc error: code = NotFound desc = job not found")
	}, "complete job")

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest))
}

func TestExecuteWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	c := testClient()
	attempts := 0

	_, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		attempts++
		return nil, stderrors.New("context deadline exceeded")
	}, "complete job")

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestExecuteWithRetry_NilClientRunsOnce(t *testing.T) {
	var c *Client
	attempts := 0

	_, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		attempts++
		return nil, stderrors.New("unavailable")
	}, "complete job")

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestExecuteWithRetry_Cancelled(t *testing.T) {
	c := testClient()
	c.config.RetryConfig.BaseDelay = time.Hour
	c.config.RetryConfig.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ExecuteWithRetry(ctx, func(context.Context) (interface{}, error) {
		return nil, stderrors.New("connection reset by peer")
	}, "complete job")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestMapZeebeError(t *testing.T) {
	c := testClient()

	tests := []struct {
		msg  string
		code errors.ErrorCode
	}{
		{"connection refused", errors.ErrCodeExternalService},
		{"deadline exceeded", errors.ErrCodeTimeout},
		{"permission denied", errors.ErrCodeInvalidRequest},
		{"something odd", errors.ErrCodeExternalService},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := c.mapZeebeError(stderrors.New(tt.msg), "topology", 0)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestBackoff(t *testing.T) {
	rc := &RetryConfig{BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	assert.Equal(t, time.Second, backoff(rc, 0))
	assert.Equal(t, 4*time.Second, backoff(rc, 2))
	assert.Equal(t, 5*time.Second, backoff(rc, 5))
}

func TestClientConfigFrom(t *testing.T) {
	cc := ClientConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500"})

	assert.Equal(t, "zeebe:26500", cc.GatewayAddress)
	assert.True(t, cc.UsePlaintextConnection)
	assert.Equal(t, 30*time.Second, cc.RequestTimeout)
	assert.Equal(t, DefaultRetryConfig, cc.RetryConfig)
}
