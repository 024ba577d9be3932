package pricing

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// User facing fallbacks when the server gives no message of its own.
const (
	MessageAPIFailed         = "Pricing API failed"
	MessageUnableToCalculate = "Unable to calculate price"
)

// QuoteResult is either a success carrying CalculatedPrice or an error
// carrying Message, never both.
type QuoteResult struct {
	Status          Status                 `json:"status"`
	ServiceID       int64                  `json:"service_id,omitempty"`
	AreaID          int64                  `json:"area_id,omitempty"`
	BasePrice       *float64               `json:"base_price,omitempty"`
	CalculatedPrice *float64               `json:"calculated_price,omitempty"`
	PriceMultiplier *float64               `json:"price_multiplier,omitempty"`
	ConfidenceScore *float64               `json:"confidence_score,omitempty"`
	FactorsApplied  map[string]interface{} `json:"factors_applied,omitempty"`
	Message         string                 `json:"message,omitempty"`

	// Cancelled marks a result produced because the caller's context was
	// cancelled. Such results are never shown.
	Cancelled bool `json:"-"`
	// Transient is set when the failure came from the transport or a 5xx
	// and asking again may succeed.
	Transient bool `json:"-"`
}

func (r QuoteResult) OK() bool {
	return r.Status == StatusSuccess && r.CalculatedPrice != nil
}

// Price returns the calculated price, or 0 and false on an error result.
func (r QuoteResult) Price() (float64, bool) {
	if !r.OK() {
		return 0, false
	}
	return *r.CalculatedPrice, true
}

func errorResult(message string) QuoteResult {
	return QuoteResult{Status: StatusError, Message: message}
}

func transientResult(message string) QuoteResult {
	return QuoteResult{Status: StatusError, Message: message, Transient: true}
}

func cancelledResult() QuoteResult {
	return QuoteResult{Status: StatusError, Message: "request cancelled", Cancelled: true, Transient: true}
}

// wireQuote is the lenient decode target; calculated_price is kept raw so a
// string or null price can be told apart from a number.
type wireQuote struct {
	Status          string                 `json:"status"`
	ServiceID       int64                  `json:"service_id"`
	AreaID          int64                  `json:"area_id"`
	BasePrice       *Decimal               `json:"base_price"`
	CalculatedPrice json.RawMessage        `json:"calculated_price"`
	PriceMultiplier *Decimal               `json:"price_multiplier"`
	ConfidenceScore *Decimal               `json:"confidence_score"`
	FactorsApplied  map[string]interface{} `json:"factors_applied"`
}

// decodeQuote interprets a 2xx body. Anything short of status "success"
// with a finite numeric calculated_price becomes an error result.
func decodeQuote(body []byte) QuoteResult {
	var w wireQuote
	if err := json.Unmarshal(body, &w); err != nil {
		return errorResult(MessageUnableToCalculate)
	}
	if w.Status != string(StatusSuccess) {
		return errorResult(errorMessage(body, MessageUnableToCalculate))
	}

	raw := bytes.TrimSpace(w.CalculatedPrice)
	if len(raw) == 0 || raw[0] == '"' || bytes.Equal(raw, []byte("null")) {
		return errorResult(errorMessage(body, MessageUnableToCalculate))
	}
	var price float64
	if err := json.Unmarshal(raw, &price); err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return errorResult(MessageUnableToCalculate)
	}

	return QuoteResult{
		Status:          StatusSuccess,
		ServiceID:       w.ServiceID,
		AreaID:          w.AreaID,
		BasePrice:       w.BasePrice.float(),
		CalculatedPrice: &price,
		PriceMultiplier: w.PriceMultiplier.float(),
		ConfidenceScore: w.ConfidenceScore.float(),
		FactorsApplied:  w.FactorsApplied,
	}
}

// errorMessage picks the server's "message", then "detail", then fallback.
// Non-string values (DRF field error maps, for one) are ignored.
func errorMessage(body []byte, fallback string) string {
	var e struct {
		Message interface{} `json:"message"`
		Detail  interface{} `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return fallback
	}
	for _, v := range []interface{}{e.Message, e.Detail} {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return fallback
}
