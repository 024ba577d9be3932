package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

var (
	ErrPricingAPIFailed  = errors.New("PRICING_API_FAILED")
	ErrPricingAPITimeout = errors.New("PRICING_API_TIMEOUT")
)

// Decimal decodes both JSON numbers and the quoted decimals Django REST
// framework emits for DecimalField.
type Decimal float64

func (d *Decimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*d = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*d = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("decimal %q: %w", s, err)
		}
		*d = Decimal(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*d = Decimal(f)
	return nil
}

func (d *Decimal) float() *float64 {
	if d == nil {
		return nil
	}
	f := float64(*d)
	return &f
}

type MultiplierRange struct {
	Min Decimal `json:"min"`
	Max Decimal `json:"max"`
}

type Factor struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	FactorType      string          `json:"factor_type"`
	Weight          Decimal         `json:"weight"`
	MultiplierRange MultiplierRange `json:"multiplier_range"`
}

type Area struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Multiplier  Decimal `json:"multiplier"`
	IsActive    bool    `json:"is_active"`
}

type ServiceSummary struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Category        string `json:"category"`
	DifficultyLevel string `json:"difficulty_level"`
	EstimatedDays   int    `json:"estimated_days"`
}

type AreaPricing struct {
	AreaID          int64                  `json:"area_id"`
	AreaName        string                 `json:"area_name"`
	AreaMultiplier  Decimal                `json:"area_multiplier"`
	BasePrice       Decimal                `json:"base_price"`
	CalculatedPrice Decimal                `json:"calculated_price"`
	PriceMultiplier Decimal                `json:"price_multiplier"`
	ConfidenceScore Decimal                `json:"confidence_score"`
	FactorsApplied  map[string]interface{} `json:"factors_applied"`
}

type ServicePricing struct {
	Service     ServiceSummary `json:"service"`
	PricingData []AreaPricing  `json:"pricing_data"`
}

type AnalyticsSummary struct {
	TotalServices       int `json:"total_services"`
	TotalAreas          int `json:"total_areas"`
	TotalPricingRecords int `json:"total_pricing_records"`
	TotalHistoryRecords int `json:"total_history_records"`
}

type RecentPricing struct {
	Service         string  `json:"service"`
	Area            string  `json:"area"`
	BasePrice       Decimal `json:"base_price"`
	CalculatedPrice Decimal `json:"calculated_price"`
	ConfidenceScore Decimal `json:"confidence_score"`
	CreatedAt       string  `json:"created_at"`
}

type FactorSummary struct {
	Type            string          `json:"type"`
	Weight          Decimal         `json:"weight"`
	MultiplierRange MultiplierRange `json:"multiplier_range"`
}

type Analytics struct {
	Summary        AnalyticsSummary         `json:"summary"`
	RecentPricing  []RecentPricing          `json:"recent_pricing"`
	PricingFactors map[string]FactorSummary `json:"pricing_factors"`
}

// PricingFactors lists the active factors the backend prices with.
func (c *Client) PricingFactors(ctx context.Context) ([]Factor, error) {
	var body struct {
		Status  string   `json:"status"`
		Message string   `json:"message"`
		Factors []Factor `json:"factors"`
	}
	if err := c.getJSON(ctx, FactorsPath, &body); err != nil {
		return nil, err
	}
	if body.Status != string(StatusSuccess) {
		return nil, fmt.Errorf("%w: factors: %s", ErrPricingAPIFailed, body.Message)
	}
	return body.Factors, nil
}

// PricingAreas lists service areas. The endpoint may answer with a bare
// array or a paginated {"results": [...]} envelope.
func (c *Client) PricingAreas(ctx context.Context) ([]Area, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, AreasPath, &raw); err != nil {
		return nil, err
	}

	var areas []Area
	if err := json.Unmarshal(raw, &areas); err == nil {
		return areas, nil
	}
	var page struct {
		Results []Area `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("%w: decode areas: %v", ErrPricingAPIFailed, err)
	}
	return page.Results, nil
}

// ServicePricing returns the price of one service in every active area.
func (c *Client) ServicePricing(ctx context.Context, serviceID int64) (*ServicePricing, error) {
	if serviceID <= 0 {
		return nil, fmt.Errorf("%w: service_id %d", ErrInvalidAttribute, serviceID)
	}
	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		ServicePricing
	}
	if err := c.getJSON(ctx, fmt.Sprintf(ServicePricingPath, serviceID), &body); err != nil {
		return nil, err
	}
	if body.Status != string(StatusSuccess) {
		return nil, fmt.Errorf("%w: service pricing: %s", ErrPricingAPIFailed, body.Message)
	}
	return &body.ServicePricing, nil
}

func (c *Client) PricingAnalytics(ctx context.Context) (*Analytics, error) {
	var body struct {
		Status    string    `json:"status"`
		Message   string    `json:"message"`
		Analytics Analytics `json:"analytics"`
	}
	if err := c.getJSON(ctx, AnalyticsPath, &body); err != nil {
		return nil, err
	}
	if body.Status != string(StatusSuccess) {
		return nil, fmt.Errorf("%w: analytics: %s", ErrPricingAPIFailed, body.Message)
	}
	return &body.Analytics, nil
}

// getJSON performs an idempotent GET, retrying transport failures and 5xx
// responses with exponential backoff.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	ctx, end := c.obs.StartSpan(ctx, "pricing.get "+path)
	var lastErr error
	defer func() { end(lastErr) }()

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				lastErr = fmt.Errorf("%w: %v", ErrPricingAPITimeout, ctx.Err())
				return lastErr
			}
		}

		retry, err := c.getOnce(ctx, path, out)
		if err == nil {
			lastErr = nil
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			lastErr = fmt.Errorf("%w: %v", ErrPricingAPITimeout, ctx.Err())
			return lastErr
		}
		if !retry {
			return lastErr
		}
		c.logger.Warn("catalogue request failed", map[string]interface{}{
			"path":    path,
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}
	return lastErr
}

func (c *Client) getOnce(ctx context.Context, path string, out interface{}) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPricingAPIFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return true, fmt.Errorf("%w: %v", ErrPricingAPIFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return true, fmt.Errorf("%w: read body: %v", ErrPricingAPIFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := errorMessage(data, http.StatusText(resp.StatusCode))
		return resp.StatusCode >= 500, fmt.Errorf("%w: status %d: %s", ErrPricingAPIFailed, resp.StatusCode, msg)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("%w: decode error: %v", ErrPricingAPIFailed, err)
	}
	return false, nil
}
