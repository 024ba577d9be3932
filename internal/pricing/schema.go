package pricing

import "github.com/takeymahesh06/silaiwala/internal/common/validation"

// requestSchema guards the outgoing body so a hand-built QuoteRequest with
// an out-of-range enum is rejected before it reaches the network.
var requestSchema = validation.MustCompile(`{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["service_id", "area_id", "order_context"],
  "properties": {
    "service_id": {"type": "integer", "minimum": 1},
    "area_id": {"type": "integer", "minimum": 1},
    "customer_id": {"type": "integer", "minimum": 1},
    "order_context": {
      "type": "object",
      "required": ["quantity", "urgency"],
      "properties": {
        "quantity": {"type": "integer", "minimum": 1},
        "urgency": {"enum": ["normal", "urgent", "rush"]},
        "fabric_type": {"enum": ["cotton", "rayon", "silk", "wool", "linen", "polyester", "georgette", "chiffon"]},
        "garment_length": {"enum": ["short", "medium", "long"]},
        "design_complexity": {"enum": ["simple", "moderate", "complex"]},
        "lining_required": {"enum": ["none", "partial", "full"]},
        "handwork_embroidery": {"enum": ["none", "light", "heavy"]},
        "trims_accessories": {"enum": ["minimal", "moderate", "heavy"]},
        "fit_adjustments": {"enum": ["none", "minor", "moderate", "major"]},
        "fabric_cost": {"type": "number", "minimum": 0},
        "special_requirements": {"type": "boolean"}
      }
    }
  }
}`)

// ValidateRequest checks a request against the wire schema.
func ValidateRequest(req QuoteRequest) *validation.ValidationResult {
	return requestSchema.Validate(req)
}
