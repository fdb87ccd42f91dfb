// Package camunda hands submitted applications to the review process in Zeebe.
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	apperrors "rental-process/internal/common/errors"
	"rental-process/internal/common/logger"
)

// Client wraps the Zeebe gRPC client with retry on transient failures.
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

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  500 * time.Millisecond,
	MaxDelay:   5 * time.Second,
}

// NewClientWithConfig connects and verifies the broker topology.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}
	if config.ConnectionTimeout <= 0 {
		config.ConnectionTimeout = 10 * time.Second
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()
	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}

	return &Client{client: zeebeClient, config: config}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// HealthCheck asks the broker for its topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

// CreateInstance starts the latest version of bpmnProcessID and returns the instance key.
func (c *Client) CreateInstance(ctx context.Context, bpmnProcessID string, vars map[string]interface{}) (int64, error) {
	if c.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
	}

	cmd, err := c.client.NewCreateInstanceCommand().
		BPMNProcessId(bpmnProcessID).
		LatestVersion().
		VariablesFromMap(vars)
	if err != nil {
		return 0, fmt.Errorf("encode variables: %w", err)
	}
	resp, err := cmd.Send(ctx)
	if err != nil {
		return 0, err
	}
	return resp.GetProcessInstanceKey(), nil
}

// executeWithRetry retries transient failures with capped exponential backoff.
func executeWithRetry(ctx context.Context, cfg *RetryConfig, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryableZeebeError(err) || attempt == cfg.MaxRetries {
			break
		}

		delay := cfg.BaseDelay * time.Duration(1<<attempt)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("cancelled after %d attempts: %w", attempt+1, ctx.Err())
		}
	}
	return lastErr
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"unavailable",
		"unreachable",
		"resource_exhausted",
	} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// ReviewStarter opens a back-office review for a submitted process.
type ReviewStarter interface {
	StartReview(ctx context.Context, processID string, vars map[string]interface{}) (int64, error)
}

// InstanceCreator is the part of Client the review starter depends on.
type InstanceCreator interface {
	CreateInstance(ctx context.Context, bpmnProcessID string, vars map[string]interface{}) (int64, error)
}

type ZeebeReviewStarter struct {
	creator       InstanceCreator
	bpmnProcessID string
	retry         *RetryConfig
	logger        logger.Logger
}

func NewReviewStarter(creator InstanceCreator, bpmnProcessID string, retry *RetryConfig, log logger.Logger) *ZeebeReviewStarter {
	if retry == nil {
		retry = DefaultRetryConfig
	}
	return &ZeebeReviewStarter{
		creator:       creator,
		bpmnProcessID: bpmnProcessID,
		retry:         retry,
		logger:        logger.ForComponent(log, "review"),
	}
}

func (s *ZeebeReviewStarter) StartReview(ctx context.Context, processID string, vars map[string]interface{}) (int64, error) {
	merged := make(map[string]interface{}, len(vars)+1)
	for k, v := range vars {
		merged[k] = v
	}
	merged["processId"] = processID

	var key int64
	err := executeWithRetry(ctx, s.retry, func(ctx context.Context) error {
		var err error
		key, err = s.creator.CreateInstance(ctx, s.bpmnProcessID, merged)
		return err
	})
	if err != nil {
		return 0, apperrors.NewReviewStartFailedError(err)
	}

	s.logger.Info("review instance started", map[string]interface{}{
		"processId":   processID,
		"instanceKey": key,
		"bpmnProcess": s.bpmnProcessID,
	})
	return key, nil
}

// NoopReviewStarter is used when the Zeebe hand-off is disabled.
type NoopReviewStarter struct {
	Logger logger.Logger
}

func (n NoopReviewStarter) StartReview(_ context.Context, processID string, _ map[string]interface{}) (int64, error) {
	if n.Logger != nil {
		n.Logger.Debug("review hand-off disabled", map[string]interface{}{"processId": processID})
	}
	return 0, nil
}
