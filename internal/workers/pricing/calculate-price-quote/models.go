package calculatepricequote

import (
	"strconv"
	"time"

	"github.com/takeymahesh06/silaiwala/internal/pricing"
)

// Input is the process variable set the task reads. Attribute values use
// the same vocabulary as the booking form.
type Input struct {
	OrderID             string   `json:"orderId"`
	ServiceID           int64    `json:"serviceId"`
	AreaID              int64    `json:"areaId"`
	CustomerID          *int64   `json:"customerId,omitempty"`
	Quantity            *int     `json:"quantity,omitempty"`
	Urgency             string   `json:"urgency,omitempty"`
	FabricType          string   `json:"fabricType,omitempty"`
	GarmentLength       string   `json:"garmentLength,omitempty"`
	DesignComplexity    string   `json:"designComplexity,omitempty"`
	LiningRequired      string   `json:"liningRequired,omitempty"`
	HandworkEmbroidery  string   `json:"handworkEmbroidery,omitempty"`
	TrimsAccessories    string   `json:"trimsAccessories,omitempty"`
	FitAdjustments      string   `json:"fitAdjustments,omitempty"`
	FabricCost          *float64 `json:"fabricCost,omitempty"`
	SpecialRequirements *bool    `json:"specialRequirements,omitempty"`
}

// Selection runs the input through the same parsing rules as the form.
func (in *Input) Selection() (pricing.Selection, error) {
	f := pricing.FormFields{
		ServiceID:          strconv.FormatInt(in.ServiceID, 10),
		AreaID:             strconv.FormatInt(in.AreaID, 10),
		Urgency:            in.Urgency,
		FabricType:         in.FabricType,
		GarmentLength:      in.GarmentLength,
		DesignComplexity:   in.DesignComplexity,
		LiningRequired:     in.LiningRequired,
		HandworkEmbroidery: in.HandworkEmbroidery,
		TrimsAccessories:   in.TrimsAccessories,
		FitAdjustments:     in.FitAdjustments,
	}
	if in.CustomerID != nil {
		f.CustomerID = strconv.FormatInt(*in.CustomerID, 10)
	}
	if in.Quantity != nil {
		f.Quantity = strconv.Itoa(*in.Quantity)
	}
	if in.FabricCost != nil {
		f.FabricCost = strconv.FormatFloat(*in.FabricCost, 'f', -1, 64)
	}
	if in.SpecialRequirements != nil {
		f.SpecialRequirements = strconv.FormatBool(*in.SpecialRequirements)
	}
	return pricing.SelectionFromForm(f)
}

type Output struct {
	QuoteAvailable  bool                   `json:"quoteAvailable"`
	QuoteID         string                 `json:"quoteId,omitempty"`
	CalculatedPrice *float64               `json:"calculatedPrice,omitempty"`
	BasePrice       *float64               `json:"basePrice,omitempty"`
	PriceMultiplier *float64               `json:"priceMultiplier,omitempty"`
	ConfidenceScore *float64               `json:"confidenceScore,omitempty"`
	FactorsApplied  map[string]interface{} `json:"factorsApplied,omitempty"`
	QuotedAt        time.Time              `json:"quotedAt"`
	Message         string                 `json:"message,omitempty"`
}
