package pricing

import (
	"math"
	"strings"
)

// QuoteRequest is the body POSTed to the calculate-price endpoint.
type QuoteRequest struct {
	ServiceID    int64        `json:"service_id"`
	AreaID       int64        `json:"area_id"`
	CustomerID   *int64       `json:"customer_id,omitempty"`
	OrderContext OrderContext `json:"order_context"`
}

// OrderContext carries quantity, urgency and whichever garment attributes
// are present. Absent attributes are left out of the JSON entirely.
type OrderContext struct {
	Quantity            int               `json:"quantity"`
	Urgency             Urgency           `json:"urgency"`
	FabricType          *FabricType       `json:"fabric_type,omitempty"`
	GarmentLength       *GarmentLength    `json:"garment_length,omitempty"`
	DesignComplexity    *DesignComplexity `json:"design_complexity,omitempty"`
	LiningRequired      *LiningRequired   `json:"lining_required,omitempty"`
	HandworkEmbroidery  *HandworkLevel    `json:"handwork_embroidery,omitempty"`
	TrimsAccessories    *TrimsLevel       `json:"trims_accessories,omitempty"`
	FitAdjustments      *FitAdjustment    `json:"fit_adjustments,omitempty"`
	FabricCost          *float64          `json:"fabric_cost,omitempty"`
	SpecialRequirements *bool             `json:"special_requirements,omitempty"`
}

// BuildRequest normalizes a selection into its wire shape. It never fails:
// blank enums and non-finite costs are dropped, quantity defaults to 1 and
// urgency to normal.
func BuildRequest(sel Selection) QuoteRequest {
	req := QuoteRequest{
		ServiceID: sel.ServiceID,
		AreaID:    sel.AreaID,
		OrderContext: OrderContext{
			Quantity: sel.Quantity,
			Urgency:  sel.Urgency,
		},
	}
	if req.OrderContext.Quantity < 1 {
		req.OrderContext.Quantity = 1
	}
	if req.OrderContext.Urgency == "" {
		req.OrderContext.Urgency = UrgencyNormal
	}
	if sel.CustomerID != nil {
		id := *sel.CustomerID
		req.CustomerID = &id
	}

	oc := &req.OrderContext
	oc.FabricType = present(sel.FabricType)
	oc.GarmentLength = present(sel.GarmentLength)
	oc.DesignComplexity = present(sel.DesignComplexity)
	oc.LiningRequired = present(sel.LiningRequired)
	oc.HandworkEmbroidery = present(sel.HandworkEmbroidery)
	oc.TrimsAccessories = present(sel.TrimsAccessories)
	oc.FitAdjustments = present(sel.FitAdjustments)

	// 0 is a real cost; only nil and non-finite values are absent.
	if c := sel.FabricCost; c != nil && !math.IsNaN(*c) && !math.IsInf(*c, 0) {
		cost := *c
		oc.FabricCost = &cost
	}
	if sel.SpecialRequirements != nil {
		b := *sel.SpecialRequirements
		oc.SpecialRequirements = &b
	}
	return req
}

// present copies an enum pointer, treating a blank value as absent.
func present[T ~string](v *T) *T {
	if v == nil || strings.TrimSpace(string(*v)) == "" {
		return nil
	}
	out := *v
	return &out
}
