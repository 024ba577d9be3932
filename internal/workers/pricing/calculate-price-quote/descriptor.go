package calculatepricequote

import (
	"encoding/json"

	"github.com/takeymahesh06/silaiwala/internal/common/errors"
	"github.com/takeymahesh06/silaiwala/pkg/registry"
)

// Activity describes this worker for the activity registry.
func Activity() registry.Activity {
	cfg := DefaultConfig()
	return registry.Activity{
		ID:                   TaskType,
		DisplayName:          "Calculate Price Quote",
		Description:          "Prices a tailoring order through the smart pricing API and records the quote against the order.",
		Category:             "pricing",
		Version:              "1.0.0",
		TaskType:             TaskType,
		ImplementationStatus: registry.StatusCompleted,
		InputSchema:          json.RawMessage(inputSchemaJSON),
		OutputSchema:         json.RawMessage(outputSchemaJSON),
		ErrorCodes: []string{
			string(errors.ErrCodeInvalidSelection),
			string(errors.ErrCodePriceUnavailable),
			string(errors.ErrCodePricingAPIFailed),
			string(errors.ErrCodePricingAPITimeout),
			string(errors.ErrCodeDatabaseInsertFailed),
		},
		Timeout: cfg.Timeout.String(),
		Retries: errors.GetRetryCount(errors.ErrCodePricingAPIFailed),
		Tags:    []string{"pricing", "orders"},
	}
}
