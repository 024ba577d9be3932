package pricing

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAttribute is wrapped by every parse failure of a form field.
var ErrInvalidAttribute = errors.New("INVALID_PRICING_ATTRIBUTE")

type Urgency string

const (
	UrgencyNormal Urgency = "normal"
	UrgencyUrgent Urgency = "urgent"
	UrgencyRush   Urgency = "rush"
)

type FabricType string

const (
	FabricCotton    FabricType = "cotton"
	FabricRayon     FabricType = "rayon"
	FabricSilk      FabricType = "silk"
	FabricWool      FabricType = "wool"
	FabricLinen     FabricType = "linen"
	FabricPolyester FabricType = "polyester"
	FabricGeorgette FabricType = "georgette"
	FabricChiffon   FabricType = "chiffon"
)

type GarmentLength string

const (
	LengthShort  GarmentLength = "short"
	LengthMedium GarmentLength = "medium"
	LengthLong   GarmentLength = "long"
)

type DesignComplexity string

const (
	DesignSimple   DesignComplexity = "simple"
	DesignModerate DesignComplexity = "moderate"
	DesignComplex  DesignComplexity = "complex"
)

type LiningRequired string

const (
	LiningNone    LiningRequired = "none"
	LiningPartial LiningRequired = "partial"
	LiningFull    LiningRequired = "full"
)

type HandworkLevel string

const (
	HandworkNone  HandworkLevel = "none"
	HandworkLight HandworkLevel = "light"
	HandworkHeavy HandworkLevel = "heavy"
)

type TrimsLevel string

const (
	TrimsMinimal  TrimsLevel = "minimal"
	TrimsModerate TrimsLevel = "moderate"
	TrimsHeavy    TrimsLevel = "heavy"
)

type FitAdjustment string

const (
	FitNone     FitAdjustment = "none"
	FitMinor    FitAdjustment = "minor"
	FitModerate FitAdjustment = "moderate"
	FitMajor    FitAdjustment = "major"
)

var (
	Urgencies          = []Urgency{UrgencyNormal, UrgencyUrgent, UrgencyRush}
	FabricTypes        = []FabricType{FabricCotton, FabricRayon, FabricSilk, FabricWool, FabricLinen, FabricPolyester, FabricGeorgette, FabricChiffon}
	GarmentLengths     = []GarmentLength{LengthShort, LengthMedium, LengthLong}
	DesignComplexities = []DesignComplexity{DesignSimple, DesignModerate, DesignComplex}
	LiningOptions      = []LiningRequired{LiningNone, LiningPartial, LiningFull}
	HandworkLevels     = []HandworkLevel{HandworkNone, HandworkLight, HandworkHeavy}
	TrimsLevels        = []TrimsLevel{TrimsMinimal, TrimsModerate, TrimsHeavy}
	FitAdjustments     = []FitAdjustment{FitNone, FitMinor, FitModerate, FitMajor}
)

func (u Urgency) Valid() bool          { return member(u, Urgencies) }
func (f FabricType) Valid() bool       { return member(f, FabricTypes) }
func (g GarmentLength) Valid() bool    { return member(g, GarmentLengths) }
func (d DesignComplexity) Valid() bool { return member(d, DesignComplexities) }
func (l LiningRequired) Valid() bool   { return member(l, LiningOptions) }
func (h HandworkLevel) Valid() bool    { return member(h, HandworkLevels) }
func (t TrimsLevel) Valid() bool       { return member(t, TrimsLevels) }
func (f FitAdjustment) Valid() bool    { return member(f, FitAdjustments) }

func member[T ~string](v T, allowed []T) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// parseEnum maps a raw form value onto an enum. Blank input means "not
// chosen" and yields nil; an unknown non-blank value is an error.
func parseEnum[T ~string](field, raw string, allowed []T) (*T, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return nil, nil
	}
	for _, a := range allowed {
		if string(a) == v {
			out := a
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %q", ErrInvalidAttribute, field, raw)
}

func ParseUrgency(raw string) (*Urgency, error) {
	return parseEnum("urgency", raw, Urgencies)
}

func ParseFabricType(raw string) (*FabricType, error) {
	return parseEnum("fabric_type", raw, FabricTypes)
}

func ParseGarmentLength(raw string) (*GarmentLength, error) {
	return parseEnum("garment_length", raw, GarmentLengths)
}

func ParseDesignComplexity(raw string) (*DesignComplexity, error) {
	return parseEnum("design_complexity", raw, DesignComplexities)
}

func ParseLiningRequired(raw string) (*LiningRequired, error) {
	return parseEnum("lining_required", raw, LiningOptions)
}

func ParseHandworkLevel(raw string) (*HandworkLevel, error) {
	return parseEnum("handwork_embroidery", raw, HandworkLevels)
}

func ParseTrimsLevel(raw string) (*TrimsLevel, error) {
	return parseEnum("trims_accessories", raw, TrimsLevels)
}

func ParseFitAdjustment(raw string) (*FitAdjustment, error) {
	return parseEnum("fit_adjustments", raw, FitAdjustments)
}
