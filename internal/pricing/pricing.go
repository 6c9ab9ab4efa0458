package pricing

import "math"

// Alert classification thresholds. These are intentionally independent of the
// display tier cutoffs below: classification drives alerting, tiers only drive
// dashboard color-coding, and the two tables use different cutoffs.
const (
	lowMarginPct     = 15.0
	highCostRatio    = 0.7
	targetBufferFrac = 0.8
)

// volatilityPct is the exclusive bound on the absolute percentage deviation
// between a suggested price and the current price.
const volatilityPct = 15.0

// Ingredient is one line of a recipe's bill of materials.
type Ingredient struct {
	Name         string
	AvgCost      float64
	Qty          float64
	WastePercent float64
}

// Recipe carries the cost inputs linked to a product when no explicit unit
// cost has been entered.
type Recipe struct {
	BaseCost    float64
	LaborCost   float64
	Ingredients []Ingredient
}

// UnitCost rolls up the recipe cost: base plus labor plus every ingredient at
// its average cost, quantity and waste allowance.
func (r Recipe) UnitCost() float64 {
	materials := 0.0
	for _, ing := range r.Ingredients {
		materials += ing.AvgCost * ing.Qty * (1.0 + ing.WastePercent/100.0)
	}
	return r.BaseCost + r.LaborCost + materials
}

// ResolvedCost is the outcome of cost resolution. An unknown cost is a valid
// state, not an error: Known is false, Cost is zero, and cost-dependent
// alerts are suppressed downstream.
type ResolvedCost struct {
	Cost      float64
	Known     bool
	HasRecipe bool
}

// ResolveCost determines a product's unit cost. An explicit cost wins over the
// recipe rollup; with neither, the cost is unknown.
func ResolveCost(cost *float64, recipe *Recipe) ResolvedCost {
	if cost != nil {
		return ResolvedCost{Cost: *cost, Known: true, HasRecipe: recipe != nil}
	}
	if recipe != nil {
		return ResolvedCost{Cost: recipe.UnitCost(), Known: true, HasRecipe: true}
	}
	return ResolvedCost{}
}

// Margin holds the derived margin figures for one product.
type Margin struct {
	Amount    float64
	Percent   float64
	CostRatio float64
}

// ComputeMargin derives margin amount, margin percentage and cost ratio from
// price and resolved cost. The percentage is 0 when the cost is unknown or
// the price is 0, so the result is always finite.
func ComputeMargin(price float64, rc ResolvedCost) Margin {
	m := Margin{Amount: price - rc.Cost}
	if !rc.Known || price == 0 {
		return m
	}
	m.Percent = (price - rc.Cost) / price * 100.0
	m.CostRatio = rc.Cost / price
	return m
}

// AlertType classifies a product's margin health.
type AlertType int

const (
	AlertNone AlertType = iota
	AlertLowMargin
	AlertHighCostRatio
	AlertBelowTarget
)

func (t AlertType) String() string {
	switch t {
	case AlertLowMargin:
		return "low_margin"
	case AlertHighCostRatio:
		return "high_cost_ratio"
	case AlertBelowTarget:
		return "below_target"
	default:
		return "none"
	}
}

// Severity returns the display severity for an alert type.
func (t AlertType) Severity() string {
	switch t {
	case AlertLowMargin, AlertHighCostRatio:
		return "high"
	case AlertBelowTarget:
		return "medium"
	default:
		return ""
	}
}

// Classify evaluates the alert rules in fixed priority order; the first match
// wins. Products without a known cost never alert, since every rule depends
// on cost data.
func Classify(price float64, rc ResolvedCost, targetMargin *float64) AlertType {
	if !rc.Known {
		return AlertNone
	}
	m := ComputeMargin(price, rc)
	if m.Percent < lowMarginPct {
		return AlertLowMargin
	}
	if price > 0 && rc.Cost/price > highCostRatio {
		return AlertHighCostRatio
	}
	if targetMargin != nil && m.Percent < *targetMargin*targetBufferFrac {
		return AlertBelowTarget
	}
	return AlertNone
}

// Tier maps a margin percentage to the dashboard color tier. Cutoffs are
// looser than the alert thresholds on purpose.
func Tier(marginPct float64) string {
	switch {
	case marginPct < 10:
		return "red"
	case marginPct < 20:
		return "orange"
	case marginPct < 30:
		return "yellow"
	default:
		return "green"
	}
}

// Deviation compares a suggested price against the current price.
type Deviation struct {
	PriceDifference  float64
	PercentageChange float64
	Volatile         bool
}

// Deviate computes the deviation of a suggested price from the current price.
// Volatile is true when the absolute percentage change strictly exceeds 15.
func Deviate(price, suggested float64) Deviation {
	d := Deviation{PriceDifference: suggested - price}
	if price != 0 {
		d.PercentageChange = d.PriceDifference / price * 100.0
	}
	d.Volatile = math.Abs(d.PercentageChange) > volatilityPct
	return d
}

// Watchlist reasons reported back to the vendor.
const (
	ReasonVolatility    = "High volatility detected"
	ReasonLowConfidence = "Low confidence in suggestion"
	ReasonNone          = "No monitoring needed"
)

// ShouldWatch decides watchlist membership for a freshly computed suggestion.
// A product is watched when the suggester itself flagged volatility, when the
// suggestion deviates volatilely from the current price, or when confidence
// falls below the configured floor. The decision only ever adds to the
// watchlist; removal is an explicit user action elsewhere.
func ShouldWatch(suggesterVolatility bool, dev Deviation, confidence, confidenceFloor float64) (bool, string) {
	switch {
	case suggesterVolatility || dev.Volatile:
		return true, ReasonVolatility
	case confidence < confidenceFloor:
		return true, ReasonLowConfidence
	default:
		return false, ReasonNone
	}
}

// Summary aggregates per-product classifications for the dashboard header.
type Summary struct {
	TotalAlerts    int `json:"totalAlerts"`
	LowMarginCount int `json:"lowMarginCount"`
	HighCostCount  int `json:"highCostCount"`
}

// Summarize counts alerting classifications. Input order is irrelevant to the
// counts and the caller's ordering is never touched.
func Summarize(alerts []AlertType) Summary {
	var s Summary
	for _, a := range alerts {
		if a == AlertNone {
			continue
		}
		s.TotalAlerts++
		switch a {
		case AlertLowMargin:
			s.LowMarginCount++
		case AlertHighCostRatio:
			s.HighCostCount++
		}
	}
	return s
}
