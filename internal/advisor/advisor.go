// Package advisor produces AI-style price suggestions. The hosting service
// only depends on the Suggester interface; whether the numbers come from the
// local heuristic engine or a remote model server is a deployment choice.
package advisor

import (
	"context"
	"fmt"
	"math"
	"time"
)

// PricePoint is one observed price/cost pair for a product.
type PricePoint struct {
	Price      float64   `json:"price"`
	UnitCost   float64   `json:"unitCost"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Request carries everything a suggester needs for one product.
type Request struct {
	UnitCost     float64      `json:"unitCost"`
	TargetMargin float64      `json:"targetMargin"`
	History      []PricePoint `json:"history"`
}

// Suggestion is the suggester's output. Confidence is opaque to callers: the
// pipeline only compares it against a configured floor.
type Suggestion struct {
	SuggestedPrice     float64 `json:"suggestedPrice"`
	Note               string  `json:"note"`
	VolatilityDetected bool    `json:"volatilityDetected"`
	Confidence         float64 `json:"confidence"`
}

// Suggester computes a price suggestion for one product.
type Suggester interface {
	Suggest(ctx context.Context, req Request) (Suggestion, error)
}

// Heuristic is the built-in suggestion engine. It prices off the unit cost
// and target margin, adjusted by observed price volatility, cost volatility
// and trend, and never suggests below 80% of the target margin.
type Heuristic struct{}

const (
	priceVolatilityCV = 0.15
	costVolatilityCV  = 0.1
	marginBufferFrac  = 0.8
)

// Suggest implements Suggester. It never fails: every input state maps to a
// defined suggestion.
func (Heuristic) Suggest(_ context.Context, req Request) (Suggestion, error) {
	base := basePrice(req.UnitCost, req.TargetMargin)

	if len(req.History) == 0 {
		return clampToMinimum(Suggestion{
			SuggestedPrice: base,
			Note:           "No price history available. Using basic margin calculation.",
			Confidence:     0.5,
		}, req), nil
	}

	prices := make([]float64, len(req.History))
	costs := make([]float64, len(req.History))
	for i, p := range req.History {
		prices[i] = p.Price
		costs[i] = p.UnitCost
	}

	priceCV := coefficientOfVariation(prices)
	costCV := coefficientOfVariation(costs)

	var s Suggestion
	switch {
	case priceCV > priceVolatilityCV:
		// High volatility: price conservatively above the base.
		adjustment := 1 + priceCV*0.1
		s = Suggestion{
			SuggestedPrice:     base * adjustment,
			Note:               fmt.Sprintf("High price volatility detected (%.1f%% CV). Using conservative pricing with %.1f%% adjustment.", priceCV*100, adjustment*100-100),
			VolatilityDetected: true,
			Confidence:         0.7,
		}
	case costCV > costVolatilityCV:
		adjustment := 1 + costCV*0.05
		s = Suggestion{
			SuggestedPrice: base * adjustment,
			Note:           fmt.Sprintf("High cost volatility detected (%.1f%% CV). Adjusting for cost uncertainty.", costCV*100),
			Confidence:     0.8,
		}
	default:
		trend := priceTrend(prices)
		adjustment := 1.0
		switch trend {
		case "increasing":
			adjustment = 1.02
		case "decreasing":
			adjustment = 0.98
		}
		s = Suggestion{
			SuggestedPrice: base * adjustment,
			Note:           fmt.Sprintf("Stable market conditions. %s price trend detected. Using trend-adjusted pricing.", trend),
			Confidence:     0.9,
		}
	}

	return clampToMinimum(s, req), nil
}

// basePrice is the cost-plus-target-margin price.
func basePrice(unitCost, targetMargin float64) float64 {
	denom := 1 - targetMargin/100
	if denom <= 0 {
		return unitCost
	}
	return unitCost / denom
}

// clampToMinimum raises the suggestion to the minimum price that still yields
// 80% of the target margin, then rounds to cents.
func clampToMinimum(s Suggestion, req Request) Suggestion {
	minMargin := req.TargetMargin * marginBufferFrac
	if denom := 1 - minMargin/100; denom > 0 {
		if minPrice := req.UnitCost / denom; s.SuggestedPrice < minPrice {
			s.SuggestedPrice = minPrice
			s.Note += " Adjusted to maintain minimum margin requirements."
		}
	}
	s.SuggestedPrice = roundCents(s.SuggestedPrice)
	return s
}

func coefficientOfVariation(values []float64) float64 {
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if mean == 0 {
		return 0
	}

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))

	return math.Sqrt(variance) / mean
}

// priceTrend fits a least-squares line over the series and reports its
// direction. A single observation has no slope and reads as stable.
func priceTrend(prices []float64) string {
	n := float64(len(prices))
	var sumX, sumY, sumXY, sumX2 float64
	for i, p := range prices {
		x := float64(i)
		sumX += x
		sumY += p
		sumXY += x * p
		sumX2 += x * x
	}

	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return "stable"
	}

	slope := (n*sumXY - sumX*sumY) / denom
	switch {
	case slope > 0:
		return "increasing"
	case slope < 0:
		return "decreasing"
	default:
		return "stable"
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
