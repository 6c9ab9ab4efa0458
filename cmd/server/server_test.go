package main

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	_ "modernc.org/sqlite"
)

// newTestDB opens an in-memory database with the full schema the handlers
// touch, mirroring the goose migrations.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}

	_, err = db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE recipes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			base_cost NUMERIC NOT NULL DEFAULT 0,
			labor_cost NUMERIC NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE recipe_ingredients (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recipe_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			avg_cost NUMERIC NOT NULL DEFAULT 0,
			qty NUMERIC NOT NULL DEFAULT 1,
			waste_percent NUMERIC NOT NULL DEFAULT 0
		);
		CREATE TABLE products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			price NUMERIC NOT NULL DEFAULT 0,
			cost NUMERIC,
			target_margin NUMERIC,
			stock INTEGER NOT NULL DEFAULT 0,
			is_available BOOLEAN NOT NULL DEFAULT TRUE,
			recipe_id INTEGER,
			on_watchlist BOOLEAN NOT NULL DEFAULT FALSE,
			last_ai_suggestion NUMERIC,
			ai_suggestion_note TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE price_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id TEXT NOT NULL,
			price NUMERIC NOT NULL,
			unit_cost NUMERIC NOT NULL,
			recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE margin_settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			min_margin_percent NUMERIC NOT NULL DEFAULT 30,
			default_target_margin NUMERIC NOT NULL DEFAULT 30,
			confidence_floor NUMERIC NOT NULL DEFAULT 0.6,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		INSERT INTO margin_settings (id) VALUES (1);
	`)
	if err != nil {
		t.Fatalf("failed creating schema: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

type testProduct struct {
	id           string
	name         string
	price        float64
	cost         *float64
	targetMargin *float64
	recipeID     *int64
	onWatchlist  bool
	createdAt    string
}

func seedProduct(t *testing.T, db *sql.DB, p testProduct) {
	t.Helper()

	createdAt := p.createdAt
	if createdAt == "" {
		createdAt = "2024-01-01 10:00:00"
	}

	_, err := db.Exec(`
		INSERT INTO products (id, name, price, cost, target_margin, recipe_id, on_watchlist, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.id, p.name, p.price, p.cost, p.targetMargin, p.recipeID, p.onWatchlist, createdAt, createdAt)
	if err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func fptr(v float64) *float64 { return &v }
