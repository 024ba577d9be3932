package pricing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Selection is the set of pricing inputs the customer has chosen so far.
// Optional garment attributes are nil until chosen.
type Selection struct {
	ServiceID  int64
	AreaID     int64
	CustomerID *int64
	Quantity   int
	Urgency    Urgency

	FabricType          *FabricType
	GarmentLength       *GarmentLength
	DesignComplexity    *DesignComplexity
	LiningRequired      *LiningRequired
	HandworkEmbroidery  *HandworkLevel
	TrimsAccessories    *TrimsLevel
	FitAdjustments      *FitAdjustment
	FabricCost          *float64
	SpecialRequirements *bool
}

// Ready reports whether both mandatory identifiers are set. A selection that
// is not ready is never sent to the pricing API.
func (s Selection) Ready() bool {
	return s.ServiceID > 0 && s.AreaID > 0
}

// FormFields mirrors the booking form, where every control holds a string.
type FormFields struct {
	ServiceID           string `json:"service_id"`
	AreaID              string `json:"area_id"`
	CustomerID          string `json:"customer_id"`
	Quantity            string `json:"quantity"`
	Urgency             string `json:"urgency"`
	FabricType          string `json:"fabric_type"`
	GarmentLength       string `json:"garment_length"`
	DesignComplexity    string `json:"design_complexity"`
	LiningRequired      string `json:"lining_required"`
	HandworkEmbroidery  string `json:"handwork_embroidery"`
	TrimsAccessories    string `json:"trims_accessories"`
	FitAdjustments      string `json:"fit_adjustments"`
	FabricCost          string `json:"fabric_cost"`
	SpecialRequirements string `json:"special_requirements"`
}

// SelectionFromForm converts raw form strings into a Selection. Blank fields
// stay absent; malformed ones return an error wrapping ErrInvalidAttribute.
func SelectionFromForm(f FormFields) (Selection, error) {
	var (
		sel Selection
		err error
	)

	if sel.ServiceID, err = parseID("service_id", f.ServiceID); err != nil {
		return Selection{}, err
	}
	if sel.AreaID, err = parseID("area_id", f.AreaID); err != nil {
		return Selection{}, err
	}
	if id, err := parseID("customer_id", f.CustomerID); err != nil {
		return Selection{}, err
	} else if id > 0 {
		sel.CustomerID = &id
	}

	if q := strings.TrimSpace(f.Quantity); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			return Selection{}, fmt.Errorf("%w: quantity %q", ErrInvalidAttribute, f.Quantity)
		}
		sel.Quantity = n
	}

	urgency, err := ParseUrgency(f.Urgency)
	if err != nil {
		return Selection{}, err
	}
	if urgency != nil {
		sel.Urgency = *urgency
	}

	if sel.FabricType, err = ParseFabricType(f.FabricType); err != nil {
		return Selection{}, err
	}
	if sel.GarmentLength, err = ParseGarmentLength(f.GarmentLength); err != nil {
		return Selection{}, err
	}
	if sel.DesignComplexity, err = ParseDesignComplexity(f.DesignComplexity); err != nil {
		return Selection{}, err
	}
	if sel.LiningRequired, err = ParseLiningRequired(f.LiningRequired); err != nil {
		return Selection{}, err
	}
	if sel.HandworkEmbroidery, err = ParseHandworkLevel(f.HandworkEmbroidery); err != nil {
		return Selection{}, err
	}
	if sel.TrimsAccessories, err = ParseTrimsLevel(f.TrimsAccessories); err != nil {
		return Selection{}, err
	}
	if sel.FitAdjustments, err = ParseFitAdjustment(f.FitAdjustments); err != nil {
		return Selection{}, err
	}

	if c := strings.TrimSpace(f.FabricCost); c != "" {
		cost, err := strconv.ParseFloat(c, 64)
		if err != nil || math.IsNaN(cost) || math.IsInf(cost, 0) || cost < 0 {
			return Selection{}, fmt.Errorf("%w: fabric_cost %q", ErrInvalidAttribute, f.FabricCost)
		}
		sel.FabricCost = &cost
	}

	if r := strings.TrimSpace(f.SpecialRequirements); r != "" {
		b, err := strconv.ParseBool(r)
		if err != nil {
			return Selection{}, fmt.Errorf("%w: special_requirements %q", ErrInvalidAttribute, f.SpecialRequirements)
		}
		sel.SpecialRequirements = &b
	}

	return sel, nil
}

// parseID returns 0 for a blank field, so an unselected dropdown simply
// leaves the selection not ready.
func parseID(field, raw string) (int64, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidAttribute, field, raw)
	}
	return id, nil
}
