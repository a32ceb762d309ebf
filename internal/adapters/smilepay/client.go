package smilepay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/kevin07696/smilepay-service/internal/adapters/ports"
	"github.com/kevin07696/smilepay-service/internal/domain"
	"github.com/kevin07696/smilepay-service/pkg/observability"
)

// maxResponseBytes bounds how much of a gateway reply is read
const maxResponseBytes = 64 << 10

// Config contains configuration for the SmilePay client
type Config struct {
	// Timeout bounds a single instruction request end to end
	Timeout time.Duration

	// UserAgent is sent on every request when set
	UserAgent string

	CircuitBreaker CircuitBreakerConfig
}

// DefaultConfig returns default configuration for the SmilePay client
func DefaultConfig() *Config {
	return &Config{
		Timeout:        10 * time.Second,
		UserAgent:      "smilepay-service/1.0",
		CircuitBreaker: DefaultCircuitBreakerConfig(),
	}
}

// Client implements ports.InstructionGateway against the SmilePay HTTP API
type Client struct {
	config         *Config
	httpClient     ports.HTTPClient
	logger         *zap.Logger
	circuitBreaker *CircuitBreaker
}

// NewClient creates a SmilePay client. httpClient carries transport settings; the
// per-request timeout from config is applied through the request context.
func NewClient(config *Config, httpClient ports.HTTPClient, logger *zap.Logger) *Client {
	cbConfig := config.CircuitBreaker
	cbConfig.IsFailure = func(err error) bool {
		var gwErr *GatewayError
		return errors.As(err, &gwErr) && gwErr.countsAsFailure()
	}
	breaker := NewCircuitBreaker(cbConfig)
	breaker.OnStateChange(func(from, to CircuitState) {
		logger.Warn("SmilePay circuit breaker state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		observability.SetGatewayCircuitState(int(to))
	})

	return &Client{
		config:         config,
		httpClient:     httpClient,
		logger:         logger,
		circuitBreaker: breaker,
	}
}

// BuildInstructionRequest implements ports.InstructionGateway
func (c *Client) BuildInstructionRequest(provider *domain.Provider, txn *domain.Transaction, callbackURL string) url.Values {
	return BuildInstructionRequest(provider, txn, callbackURL)
}

// RequestInstruction sends params to the provider's endpoint with a GET and parses
// the XML reply for the provider's payment method. It never retries.
func (c *Client) RequestInstruction(ctx context.Context, provider *domain.Provider, params url.Values) (*ports.InstructionResponse, error) {
	variant := provider.MethodVariant
	reference := params.Get(paramReference)
	start := time.Now()

	c.logger.Info("Requesting SmilePay payment instruction",
		zap.String("reference", reference),
		zap.String("method", string(variant)),
		zap.String("pay_zg", params.Get(paramMethod)),
	)

	var body []byte
	err := c.circuitBreaker.Call(func() error {
		var fetchErr error
		body, fetchErr = c.fetch(ctx, provider.APIEndpoint(), params)
		return fetchErr
	})
	if errors.Is(err, ErrCircuitOpen) {
		err = newGatewayError(KindCircuitOpen, "gateway temporarily unavailable", err)
	}

	var resp *ports.InstructionResponse
	if err == nil {
		resp, err = ParseInstructionResponse(body, variant)
	}

	elapsed := time.Since(start)
	if err != nil {
		kind := string(KindNetwork)
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			kind = string(gwErr.Kind)
		}
		observability.RecordGatewayRequest(string(variant), kind, elapsed.Seconds())
		c.logger.Error("SmilePay instruction request failed",
			zap.String("reference", reference),
			zap.String("kind", kind),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, err
	}

	observability.RecordGatewayRequest(string(variant), "success", elapsed.Seconds())
	c.logger.Info("SmilePay instruction issued",
		zap.String("reference", reference),
		zap.String("smilepay_no", resp.ProviderReference),
		zap.Time("pay_end_date", resp.PaymentDeadline),
		zap.Duration("elapsed", elapsed),
	)
	return resp, nil
}

// fetch performs the HTTP exchange and classifies transport failures
func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	target, err := url.Parse(endpoint)
	if err != nil {
		return nil, newGatewayError(KindNetwork, "invalid endpoint", err)
	}
	target.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, newGatewayError(KindNetwork, "failed to create request", err)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, newGatewayError(KindTimeout, "request timed out", err)
		}
		return nil, newGatewayError(KindNetwork, "request failed", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		gwErr := newGatewayError(KindHTTPStatus, fmt.Sprintf("unexpected HTTP status %d", httpResp.StatusCode), nil)
		gwErr.StatusCode = httpResp.StatusCode
		return nil, gwErr
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, newGatewayError(KindTimeout, "timed out reading response", err)
		}
		return nil, newGatewayError(KindNetwork, "failed to read response", err)
	}
	return body, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

var _ ports.InstructionGateway = (*Client)(nil)
