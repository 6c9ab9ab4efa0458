package main

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cravedartisan/vendor-pricing/internal/advisor"
	"github.com/cravedartisan/vendor-pricing/internal/pricing"
)

// productWithMargin is a product decorated with the derived margin fields the
// dashboard renders. Nothing here is persisted; it is recomputed per request.
type productWithMargin struct {
	product
	CurrentMargin           float64 `json:"currentMargin"`
	CurrentMarginPercentage float64 `json:"currentMarginPercentage"`
	CostRatio               float64 `json:"costRatio"`
	HasRecipe               bool    `json:"hasRecipe"`
	AlertType               string  `json:"alertType"`
	Severity                string  `json:"severity"`
	MarginTier              string  `json:"marginTier"`
}

func (s *server) handleMarginAlerts(w http.ResponseWriter, r *http.Request) {
	products, err := s.listProducts(false)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Internal server error", "failed to load products")
		return
	}

	alerting := make([]productWithMargin, 0)
	alertTypes := make([]pricing.AlertType, 0, len(products))

	for _, p := range products {
		rc, err := s.resolveProductCost(p)
		if err != nil {
			s.jsonError(w, http.StatusInternalServerError, "Internal server error", "failed to resolve product cost")
			return
		}

		alert := pricing.Classify(p.Price, rc, p.TargetMargin)
		alertTypes = append(alertTypes, alert)
		if alert == pricing.AlertNone {
			continue
		}

		m := pricing.ComputeMargin(p.Price, rc)
		alerting = append(alerting, productWithMargin{
			product:                 p,
			CurrentMargin:           round2(m.Amount),
			CurrentMarginPercentage: round2(m.Percent),
			CostRatio:               round2(m.CostRatio),
			HasRecipe:               rc.HasRecipe,
			AlertType:               alert.String(),
			Severity:                alert.Severity(),
			MarginTier:              pricing.Tier(m.Percent),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"products": alerting,
		"count":    len(alerting),
		"summary":  pricing.Summarize(alertTypes),
	})
}

// suggestionContext bundles everything the suggestion handlers derive before
// calling the suggester.
type suggestionContext struct {
	product      product
	resolved     pricing.ResolvedCost
	targetMargin float64
	suggestion   advisor.Suggestion
	deviation    pricing.Deviation
}

// computeSuggestion loads the product, resolves its cost and price history,
// and asks the configured suggester for a price. A suggester failure is the
// only error callers should surface as "suggestion unavailable".
func (s *server) computeSuggestion(r *http.Request, productID string) (suggestionContext, int, error) {
	p, err := s.getProduct(productID)
	if errors.Is(err, sql.ErrNoRows) {
		return suggestionContext{}, http.StatusNotFound, fmt.Errorf("product does not exist")
	}
	if err != nil {
		return suggestionContext{}, http.StatusInternalServerError, fmt.Errorf("failed to load product")
	}

	rc, err := s.resolveProductCost(p)
	if err != nil {
		return suggestionContext{}, http.StatusInternalServerError, fmt.Errorf("failed to resolve product cost")
	}

	history, err := s.loadPriceHistory(p.ID)
	if err != nil {
		return suggestionContext{}, http.StatusInternalServerError, fmt.Errorf("failed to load price history")
	}

	settings, err := s.getMarginSettings()
	if err != nil {
		return suggestionContext{}, http.StatusInternalServerError, fmt.Errorf("failed to load margin settings")
	}

	target := settings.DefaultTargetMargin
	if p.TargetMargin != nil {
		target = *p.TargetMargin
	}

	suggestion, err := s.suggester.Suggest(r.Context(), advisor.Request{
		UnitCost:     rc.Cost,
		TargetMargin: target,
		History:      history,
	})
	if err != nil {
		return suggestionContext{}, http.StatusInternalServerError, fmt.Errorf("suggestion unavailable")
	}

	return suggestionContext{
		product:      p,
		resolved:     rc,
		targetMargin: target,
		suggestion:   suggestion,
		deviation:    pricing.Deviate(p.Price, suggestion.SuggestedPrice),
	}, http.StatusOK, nil
}

func suggestionPayload(sc suggestionContext) map[string]any {
	return map[string]any{
		"suggestedPrice":     sc.suggestion.SuggestedPrice,
		"note":               sc.suggestion.Note,
		"volatilityDetected": sc.suggestion.VolatilityDetected,
		"confidence":         sc.suggestion.Confidence,
		"priceDifference":    round2(sc.deviation.PriceDifference),
		"percentageChange":   round2(sc.deviation.PercentageChange),
	}
}

func costAnalysisPayload(sc suggestionContext) map[string]any {
	return map[string]any{
		"unitCost":  round2(sc.resolved.Cost),
		"hasRecipe": sc.resolved.HasRecipe,
	}
}

// handleAiSuggestionPreview computes a suggestion without touching the
// product record.
func (s *server) handleAiSuggestionPreview(w http.ResponseWriter, r *http.Request) {
	sc, status, err := s.computeSuggestion(r, chi.URLParam(r, "id"))
	if err != nil {
		s.jsonError(w, status, httpErrorLabel(status), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"product": map[string]any{
			"id":           sc.product.ID,
			"name":         sc.product.Name,
			"currentPrice": sc.product.Price,
			"targetMargin": sc.targetMargin,
		},
		"costAnalysis": costAnalysisPayload(sc),
		"aiSuggestion": suggestionPayload(sc),
	})
}

// handleAiSuggestApply recomputes the suggestion and writes it back onto the
// product: last suggestion, note, and the one-way watchlist flag. Concurrent
// applications for the same product race and the last write wins; that
// matches the single-vendor usage pattern and is deliberate.
func (s *server) handleAiSuggestApply(w http.ResponseWriter, r *http.Request) {
	sc, status, err := s.computeSuggestion(r, chi.URLParam(r, "id"))
	if err != nil {
		s.jsonError(w, status, httpErrorLabel(status), err.Error())
		return
	}

	settings, err := s.getMarginSettings()
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Internal server error", "failed to load margin settings")
		return
	}

	watch, reason := pricing.ShouldWatch(
		sc.suggestion.VolatilityDetected,
		sc.deviation,
		sc.suggestion.Confidence,
		settings.ConfidenceFloor,
	)

	// The flag only ever transitions to watched here; clearing it requires an
	// explicit watchlist delete.
	_, err = s.db.Exec(`
		UPDATE products
		SET
			last_ai_suggestion = ?,
			ai_suggestion_note = ?,
			on_watchlist = CASE WHEN ? THEN TRUE ELSE on_watchlist END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, sc.suggestion.SuggestedPrice, sc.suggestion.Note, watch, sc.product.ID)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Internal server error", "failed to save suggestion")
		return
	}

	if _, err := s.db.Exec(`
		INSERT INTO price_history (product_id, price, unit_cost)
		VALUES (?, ?, ?)
	`, sc.product.ID, sc.product.Price, sc.resolved.Cost); err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Internal server error", "failed to record price history")
		return
	}

	onWatchlist := sc.product.OnWatchlist || watch

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "AI suggestion applied successfully",
		"product": map[string]any{
			"id":           sc.product.ID,
			"name":         sc.product.Name,
			"currentPrice": sc.product.Price,
			"targetMargin": sc.targetMargin,
			"onWatchlist":  onWatchlist,
		},
		"costAnalysis": costAnalysisPayload(sc),
		"aiSuggestion": suggestionPayload(sc),
		"watchlistUpdate": map[string]any{
			"addedToWatchlist": watch,
			"reason":           reason,
		},
	})
}

// handleWatchlistClear is the only transition out of the watched state.
func (s *server) handleWatchlistClear(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := s.db.Exec(`
		UPDATE products
		SET on_watchlist = FALSE, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, id)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Internal server error", "failed to update watchlist")
		return
	}

	affected, err := result.RowsAffected()
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Internal server error", "failed to update watchlist")
		return
	}
	if affected == 0 {
		s.jsonError(w, http.StatusNotFound, "Product not found", "product does not exist")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Product removed from watchlist",
		"productId":   id,
		"onWatchlist": false,
	})
}

func httpErrorLabel(status int) string {
	switch status {
	case http.StatusNotFound:
		return "Product not found"
	default:
		return "Internal server error"
	}
}
