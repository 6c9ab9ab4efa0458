package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cravedartisan/vendor-pricing/internal/advisor"
	"github.com/cravedartisan/vendor-pricing/internal/pricing"
)

type product struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Price            float64  `json:"price"`
	Cost             *float64 `json:"cost"`
	TargetMargin     *float64 `json:"targetMargin"`
	Stock            int      `json:"stock"`
	IsAvailable      bool     `json:"isAvailable"`
	RecipeID         *int64   `json:"recipeId"`
	OnWatchlist      bool     `json:"onWatchlist"`
	LastAiSuggestion *float64 `json:"lastAiSuggestion"`
	AiSuggestionNote *string  `json:"aiSuggestionNote"`
	CreatedAt        string   `json:"createdAt"`
	UpdatedAt        string   `json:"updatedAt"`
}

type marginSettings struct {
	MinMarginPercent    float64 `json:"minMarginPercent"`
	DefaultTargetMargin float64 `json:"defaultTargetMargin"`
	ConfidenceFloor     float64 `json:"confidenceFloor"`
}

const productColumns = `
	id,
	name,
	COALESCE(description, ''),
	price,
	cost,
	target_margin,
	stock,
	is_available,
	recipe_id,
	on_watchlist,
	last_ai_suggestion,
	ai_suggestion_note,
	created_at,
	updated_at
`

func scanProduct(row interface{ Scan(...any) error }) (product, error) {
	var p product
	var cost, targetMargin, lastSuggestion sql.NullFloat64
	var recipeID sql.NullInt64
	var note sql.NullString
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&cost,
		&targetMargin,
		&p.Stock,
		&p.IsAvailable,
		&recipeID,
		&p.OnWatchlist,
		&lastSuggestion,
		&note,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return product{}, err
	}
	p.Cost = nullableFloat(cost)
	p.TargetMargin = nullableFloat(targetMargin)
	p.LastAiSuggestion = nullableFloat(lastSuggestion)
	p.RecipeID = nullableInt(recipeID)
	p.AiSuggestionNote = nullableString(note)
	return p, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullableInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func (s *server) listProducts(watchlistOnly bool) ([]product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if watchlistOnly {
		query += ` WHERE on_watchlist`
	}
	query += ` ORDER BY datetime(created_at), id`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

func (s *server) getProduct(id string) (product, error) {
	row := s.db.QueryRow(`SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	return scanProduct(row)
}

// loadRecipe returns the recipe with its ingredients, or nil when the id does
// not resolve. A dangling recipe link reads as "no recipe", not as a failure.
func (s *server) loadRecipe(id int64) (*pricing.Recipe, error) {
	var recipe pricing.Recipe
	err := s.db.QueryRow(`SELECT base_cost, labor_cost FROM recipes WHERE id = ?`, id).
		Scan(&recipe.BaseCost, &recipe.LaborCost)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query recipe: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT name, avg_cost, qty, waste_percent
		FROM recipe_ingredients
		WHERE recipe_id = ?
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query recipe ingredients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ing pricing.Ingredient
		if err := rows.Scan(&ing.Name, &ing.AvgCost, &ing.Qty, &ing.WastePercent); err != nil {
			return nil, fmt.Errorf("scan recipe ingredient: %w", err)
		}
		recipe.Ingredients = append(recipe.Ingredients, ing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipe ingredients: %w", err)
	}

	return &recipe, nil
}

func (s *server) resolveProductCost(p product) (pricing.ResolvedCost, error) {
	var recipe *pricing.Recipe
	if p.RecipeID != nil {
		r, err := s.loadRecipe(*p.RecipeID)
		if err != nil {
			return pricing.ResolvedCost{}, err
		}
		recipe = r
	}
	return pricing.ResolveCost(p.Cost, recipe), nil
}

func (s *server) loadPriceHistory(productID string) ([]advisor.PricePoint, error) {
	rows, err := s.db.Query(`
		SELECT price, unit_cost, recorded_at
		FROM price_history
		WHERE product_id = ?
		ORDER BY datetime(recorded_at), id
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	var history []advisor.PricePoint
	for rows.Next() {
		var point advisor.PricePoint
		var recordedAt string
		if err := rows.Scan(&point.Price, &point.UnitCost, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan price history: %w", err)
		}
		if ts, err := time.Parse("2006-01-02 15:04:05", recordedAt); err == nil {
			point.RecordedAt = ts
		}
		history = append(history, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price history: %w", err)
	}

	return history, nil
}

func (s *server) ensureMarginSettings() error {
	_, err := s.db.Exec(`
		INSERT INTO margin_settings (id, min_margin_percent, default_target_margin, confidence_floor)
		VALUES (1, 30, 30, 0.6)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("insert default margin_settings: %w", err)
	}
	return nil
}

func (s *server) getMarginSettings() (marginSettings, error) {
	if err := s.ensureMarginSettings(); err != nil {
		return marginSettings{}, err
	}

	var ms marginSettings
	err := s.db.QueryRow(`
		SELECT min_margin_percent, default_target_margin, confidence_floor
		FROM margin_settings
		WHERE id = 1
	`).Scan(&ms.MinMarginPercent, &ms.DefaultTargetMargin, &ms.ConfidenceFloor)
	if err != nil {
		return marginSettings{}, fmt.Errorf("query margin_settings: %w", err)
	}
	return ms, nil
}

func (s *server) updateMarginSettings(ms marginSettings) error {
	if err := s.ensureMarginSettings(); err != nil {
		return err
	}

	_, err := s.db.Exec(`
		UPDATE margin_settings
		SET
			min_margin_percent = ?,
			default_target_margin = ?,
			confidence_floor = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`, ms.MinMarginPercent, ms.DefaultTargetMargin, ms.ConfidenceFloor)
	if err != nil {
		return fmt.Errorf("update margin_settings: %w", err)
	}
	return nil
}

type productInput struct {
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	Price        *float64 `json:"price"`
	Cost         *float64 `json:"cost"`
	TargetMargin *float64 `json:"targetMargin"`
	Stock        *int     `json:"stock"`
	IsAvailable  *bool    `json:"isAvailable"`
	RecipeID     *int64   `json:"recipeId"`
}

func (in productInput) validate(requireName bool) error {
	if requireName && (in.Name == nil || strings.TrimSpace(*in.Name) == "") {
		return fmt.Errorf("name is required")
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return fmt.Errorf("name must not be empty")
	}
	if in.Price != nil && *in.Price < 0 {
		return fmt.Errorf("price must be greater than or equal to 0")
	}
	if in.Cost != nil && *in.Cost < 0 {
		return fmt.Errorf("cost must be greater than or equal to 0")
	}
	if in.TargetMargin != nil && (*in.TargetMargin < 0 || *in.TargetMargin >= 100) {
		return fmt.Errorf("targetMargin must be between 0 and 100")
	}
	if in.Stock != nil && *in.Stock < 0 {
		return fmt.Errorf("stock must be greater than or equal to 0")
	}
	return nil
}

func (s *server) handleProductsList(w http.ResponseWriter, r *http.Request) {
	watchlistOnly := r.URL.Query().Get("watchlist") == "true"

	products, err := s.listProducts(watchlistOnly)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Internal server error", "failed to load products")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"count":    len(products),
	})
}

func (s *server) handleProductGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.getProduct(chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		s.jsonError(w, http.StatusNotFound, "Product not found", "product does not exist")
		return
	}
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Internal server error", "failed to load product")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"product": p})
}

func (s *server) handleProductCreate(w http.ResponseWriter, r *http.Request) {
	var in productInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.jsonError(w, http.StatusBadRequest, "Invalid request", "request body must be valid JSON")
		return
	}
	if err := in.validate(true); err != nil {
		s.jsonError(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	p := product{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(*in.Name),
		Price:        0,
		Cost:         in.Cost,
		TargetMargin: in.TargetMargin,
		IsAvailable:  true,
		RecipeID:     in.RecipeID,
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.IsAvailable != nil {
		p.IsAvailable = *in.IsAvailable
	}

	if blocked := s.checkMinimumMargin(w, r, p); blocked {
		return
	}

	_, err := s.db.Exec(`
		INSERT INTO products (id, name, description, price, cost, target_margin, stock, is_available, recipe_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Description, p.Price, p.Cost, p.TargetMargin, p.Stock, p.IsAvailable, p.RecipeID)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Internal server error", "failed to create product")
		return
	}

	created, err := s.getProduct(p.ID)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Internal server error", "failed to load created product")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Product created successfully",
		"product": created,
	})
}

func (s *server) handleProductUpdate(w http.ResponseWriter, r *http.Request) {
	p, err := s.getProduct(chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		s.jsonError(w, http.StatusNotFound, "Product not found", "product does not exist")
		return
	}
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Internal server error", "failed to load product")
		return
	}

	var in productInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.jsonError(w, http.StatusBadRequest, "Invalid request", "request body must be valid JSON")
		return
	}
	if err := in.validate(false); err != nil {
		s.jsonError(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Cost != nil {
		p.Cost = in.Cost
	}
	if in.TargetMargin != nil {
		p.TargetMargin = in.TargetMargin
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.IsAvailable != nil {
		p.IsAvailable = *in.IsAvailable
	}
	if in.RecipeID != nil {
		p.RecipeID = in.RecipeID
	}

	if blocked := s.checkMinimumMargin(w, r, p); blocked {
		return
	}

	result, err := s.db.Exec(`
		UPDATE products
		SET
			name = ?,
			description = ?,
			price = ?,
			cost = ?,
			target_margin = ?,
			stock = ?,
			is_available = ?,
			recipe_id = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, p.Name, p.Description, p.Price, p.Cost, p.TargetMargin, p.Stock, p.IsAvailable, p.RecipeID, p.ID)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Internal server error", "failed to update product")
		return
	}
	if affected, err := result.RowsAffected(); err != nil || affected == 0 {
		s.jsonError(w, http.StatusNotFound, "Product not found", "product does not exist")
		return
	}

	updated, err := s.getProduct(p.ID)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Internal server error", "failed to load updated product")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Product updated successfully",
		"product": updated,
	})
}

// checkMinimumMargin rejects a write whose resolved margin falls below the
// vendor's configured minimum, unless the caller passes allowOverride=true.
// It reports true when it already wrote a response.
func (s *server) checkMinimumMargin(w http.ResponseWriter, r *http.Request, p product) bool {
	if r.URL.Query().Get("allowOverride") == "true" {
		return false
	}

	settings, err := s.getMarginSettings()
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Internal server error", "failed to load margin settings")
		return true
	}

	rc, err := s.resolveProductCost(p)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Internal server error", "failed to resolve product cost")
		return true
	}
	if !rc.Known {
		return false
	}

	m := pricing.ComputeMargin(p.Price, rc)
	if m.Percent >= settings.MinMarginPercent {
		return false
	}

	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":   "Margin below minimum",
		"message": fmt.Sprintf("margin %.1f%% is below the configured minimum of %.1f%%; pass allowOverride=true to save anyway", m.Percent, settings.MinMarginPercent),
	})
	return true
}

func (s *server) handleMarginSettingsGet(w http.ResponseWriter, r *http.Request) {
	settings, err := s.getMarginSettings()
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Internal server error", "failed to load margin settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

func (s *server) handleMarginSettingsUpdate(w http.ResponseWriter, r *http.Request) {
	var ms marginSettings
	if err := json.NewDecoder(r.Body).Decode(&ms); err != nil {
		s.jsonError(w, http.StatusBadRequest, "Invalid request", "request body must be valid JSON")
		return
	}

	if ms.MinMarginPercent < 0 || ms.MinMarginPercent > 100 {
		s.jsonError(w, http.StatusBadRequest, "Validation failed", "minMarginPercent must be between 0 and 100")
		return
	}
	if ms.DefaultTargetMargin < 0 || ms.DefaultTargetMargin >= 100 {
		s.jsonError(w, http.StatusBadRequest, "Validation failed", "defaultTargetMargin must be between 0 and 100")
		return
	}
	if ms.ConfidenceFloor < 0 || ms.ConfidenceFloor > 1 {
		s.jsonError(w, http.StatusBadRequest, "Validation failed", "confidenceFloor must be between 0 and 1")
		return
	}

	if err := s.updateMarginSettings(ms); err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Internal server error", "failed to update margin settings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Margin settings updated successfully",
		"settings": ms,
	})
}
