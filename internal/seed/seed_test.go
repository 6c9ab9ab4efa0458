package seed

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/cravedartisan/vendor-pricing/internal/db"
	"github.com/cravedartisan/vendor-pricing/internal/migrations"
)

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "seed-test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	if err := migrations.Up(database, "../../migrations"); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	cfg := Config{
		AdminEmail:    "admin@cravedartisan.com",
		AdminPassword: "12345",
	}

	// admin + settings + recipe + 3 ingredients + 4 products
	const firstRunInserts = 10

	for i := 0; i < 5; i++ {
		stats, err := Run(database, cfg)
		if err != nil {
			t.Fatalf("run seed (iteration=%d): %v", i, err)
		}
		if i == 0 {
			if stats.Inserts != firstRunInserts {
				t.Fatalf("expected %d inserts in first run, got %d", firstRunInserts, stats.Inserts)
			}
			continue
		}
		if stats.Inserts != 0 {
			t.Fatalf("expected 0 inserts in iteration %d, got %d", i, stats.Inserts)
		}
	}

	assertCount(t, database, `SELECT COUNT(*) FROM users WHERE email = ?`, []any{"admin@cravedartisan.com"}, 1)
	assertCount(t, database, `SELECT COUNT(*) FROM margin_settings WHERE id = 1`, nil, 1)
	assertCount(t, database, `SELECT COUNT(*) FROM recipes WHERE name = ?`, []any{demoRecipeName}, 1)
	assertCount(t, database, `SELECT COUNT(*) FROM recipe_ingredients`, nil, 3)
	assertCount(t, database, `SELECT COUNT(*) FROM products`, nil, 4)

	var hash string
	if err := database.QueryRow(`SELECT password_hash FROM users WHERE email = ?`, "admin@cravedartisan.com").Scan(&hash); err != nil {
		t.Fatalf("query admin hash: %v", err)
	}
	if hash != hashPassword("12345") {
		t.Fatalf("expected admin hash to match password scheme")
	}
}

func TestSeedLinksRecipeOnlyWhereRequested(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "seed-link-test.db")
	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	if err := migrations.Up(database, "../../migrations"); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	if _, err := Run(database, Config{}); err != nil {
		t.Fatalf("run seed: %v", err)
	}

	assertCount(t, database, `SELECT COUNT(*) FROM products WHERE recipe_id IS NOT NULL`, nil, 1)
	assertCount(t, database, `SELECT COUNT(*) FROM products WHERE cost IS NULL AND recipe_id IS NOT NULL`, nil, 1)
	// No admin credentials provided: the user seed is skipped entirely.
	assertCount(t, database, `SELECT COUNT(*) FROM users`, nil, 0)
}

func assertCount(t *testing.T, database *sql.DB, query string, args []any, expected int) {
	t.Helper()

	var count int
	if err := database.QueryRow(query, args...).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != expected {
		t.Fatalf("expected count %d, got %d", expected, count)
	}
}
