package calculatepricequote

import (
	"github.com/takeymahesh06/silaiwala/internal/common/validation"
)

const inputSchemaJSON = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["orderId", "serviceId", "areaId"],
	"properties": {
		"orderId": {"type": "string", "minLength": 1},
		"serviceId": {"type": "integer", "minimum": 1},
		"areaId": {"type": "integer", "minimum": 1},
		"customerId": {"type": "integer", "minimum": 1},
		"quantity": {"type": "integer", "minimum": 1},
		"urgency": {"type": "string"},
		"fabricType": {"type": "string"},
		"garmentLength": {"type": "string"},
		"designComplexity": {"type": "string"},
		"liningRequired": {"type": "string"},
		"handworkEmbroidery": {"type": "string"},
		"trimsAccessories": {"type": "string"},
		"fitAdjustments": {"type": "string"},
		"fabricCost": {"type": "number", "minimum": 0},
		"specialRequirements": {"type": "boolean"}
	}
}`

const outputSchemaJSON = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["quoteAvailable", "quotedAt"],
	"properties": {
		"quoteAvailable": {"type": "boolean"},
		"quoteId": {"type": "string"},
		"calculatedPrice": {"type": "number"},
		"basePrice": {"type": "number"},
		"priceMultiplier": {"type": "number"},
		"confidenceScore": {"type": "number"},
		"factorsApplied": {"type": "object"},
		"quotedAt": {"type": "string", "format": "date-time"},
		"message": {"type": "string"}
	}
}`

var inputSchema = validation.MustCompile(inputSchemaJSON)

func GetInputSchema() *validation.Schema {
	return inputSchema
}
