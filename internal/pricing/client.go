package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/takeymahesh06/silaiwala/internal/common/config"
	httpclient "github.com/takeymahesh06/silaiwala/internal/common/http"
	"github.com/takeymahesh06/silaiwala/internal/common/logger"
	"github.com/takeymahesh06/silaiwala/internal/common/metrics"
	"github.com/takeymahesh06/silaiwala/internal/common/observability"
)

const (
	QuotePath          = "/api/ai-pricing/calculate-price/"
	FactorsPath        = "/api/ai-pricing/factors/"
	AreasPath          = "/api/services/areas/"
	ServicePricingPath = "/api/ai-pricing/service/%d/pricing/"
	AnalyticsPath      = "/api/ai-pricing/analytics/"

	maxResponseBytes = 1 << 20
)

// Quoter is anything that can turn a request into a tagged result.
// Implementations never return an error; failures live in the result.
type Quoter interface {
	FetchQuote(ctx context.Context, req QuoteRequest) QuoteResult
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64
	RateBurst  int
	MaxRetries int
	UserAgent  string
}

// ConfigFrom maps the application config section onto client settings.
func ConfigFrom(cfg config.PricingConfig) Config {
	return Config{
		BaseURL:    cfg.BaseURL,
		Timeout:    config.GetDuration(cfg.Timeout),
		RateLimit:  cfg.RateLimit,
		RateBurst:  cfg.RateBurst,
		MaxRetries: cfg.MaxRetries,
		UserAgent:  cfg.UserAgent,
	}
}

type Client struct {
	config  Config
	baseURL string
	http    *httpclient.Client
	logger  logger.Logger
	obs     *observability.Observability
}

type ClientOption func(*Client)

func WithObservability(o *observability.Observability) ClientOption {
	return func(c *Client) { c.obs = o }
}

// WithHTTPClient replaces the default outbound client, mostly for tests.
func WithHTTPClient(h *httpclient.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

func NewClient(cfg Config, log logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		config:  cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger: log.With(map[string]interface{}{
			"component": "pricing-client",
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpclient.NewClient(cfg.Timeout,
			httpclient.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
			httpclient.WithUserAgent(cfg.UserAgent),
		)
	}
	return c
}

// FetchQuote POSTs one quote request and folds every outcome into a
// QuoteResult. It does not retry: the preview re-asks on the next change.
func (c *Client) FetchQuote(ctx context.Context, req QuoteRequest) QuoteResult {
	start := time.Now()
	ctx, end := c.obs.StartSpan(ctx, "pricing.fetch_quote",
		attribute.Int64("service_id", req.ServiceID),
		attribute.Int64("area_id", req.AreaID),
	)

	result := c.fetchQuote(ctx, req)

	outcome := metrics.OutcomeSuccess
	var spanErr error
	switch {
	case result.Cancelled:
		outcome = metrics.OutcomeCancelled
	case !result.OK():
		outcome = metrics.OutcomeError
		spanErr = errors.New(result.Message)
	}
	metrics.QuoteRequests.WithLabelValues(outcome).Inc()
	metrics.QuoteDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	end(spanErr)

	return result
}

func (c *Client) fetchQuote(ctx context.Context, req QuoteRequest) QuoteResult {
	if v := ValidateRequest(req); !v.Valid {
		c.logger.Warn("quote request rejected before sending", map[string]interface{}{
			"serviceId": req.ServiceID,
			"areaId":    req.AreaID,
			"errors":    v.GetErrorMessages(),
		})
		return errorResult(MessageUnableToCalculate)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return errorResult(MessageUnableToCalculate)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+QuotePath, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to build quote request", map[string]interface{}{"error": err.Error()})
		return errorResult(MessageAPIFailed)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return cancelledResult()
		}
		c.logger.Warn("pricing API unreachable", map[string]interface{}{
			"serviceId": req.ServiceID,
			"areaId":    req.AreaID,
			"timeout":   c.http.Timeout().String(),
			"error":     err.Error(),
		})
		return transientResult(MessageAPIFailed)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return cancelledResult()
		}
		return transientResult(MessageAPIFailed)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(data, MessageAPIFailed)
		c.logger.Warn("pricing API returned an error", map[string]interface{}{
			"serviceId":  req.ServiceID,
			"areaId":     req.AreaID,
			"statusCode": resp.StatusCode,
			"message":    msg,
		})
		res := errorResult(msg)
		res.Transient = resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return res
	}

	result := decodeQuote(data)
	if result.OK() {
		c.logger.Debug("quote received", map[string]interface{}{
			"serviceId":       req.ServiceID,
			"areaId":          req.AreaID,
			"calculatedPrice": *result.CalculatedPrice,
		})
	}
	return result
}
