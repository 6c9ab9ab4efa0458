package seed

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

const demoRecipeName = "Carved oak bowl"

// demoProduct is one catalog row inserted on first startup so the margin
// dashboard has something to show. The set deliberately covers every alert
// category plus a healthy product and a recipe-costed one.
type demoProduct struct {
	name         string
	description  string
	price        float64
	cost         *float64
	targetMargin *float64
	stock        int
	useRecipe    bool
}

func fptr(v float64) *float64 { return &v }

var demoProducts = []demoProduct{
	{
		name:         "Handcrafted Wooden Bowl",
		description:  "Hand-carved bowl made from sustainable oak",
		price:        45.99,
		targetMargin: fptr(35),
		stock:        5,
		useRecipe:    true,
	},
	{
		name:         "Lavender Soap Bar",
		description:  "Small-batch cold process soap",
		price:        8,
		cost:         fptr(7.2),
		targetMargin: fptr(30),
		stock:        40,
	},
	{
		name:        "Hand-poured Candle",
		description: "Soy wax candle in a reusable jar",
		price:       20,
		cost:        fptr(15),
		stock:       12,
	},
	{
		name:         "Ceramic Mug",
		description:  "Wheel-thrown stoneware mug",
		price:        30,
		cost:         fptr(21),
		targetMargin: fptr(40),
		stock:        18,
	},
}

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Run executes the startup seed in an idempotent way.
func Run(db *sql.DB, cfg Config) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := seedAdmin(tx, cfg.AdminEmail, cfg.AdminPassword, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureMarginSettings(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	recipeID, err := ensureDemoRecipe(tx, &stats)
	if err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureDemoProducts(tx, recipeID, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func seedAdmin(tx *sql.Tx, email, password string, stats *Stats) error {
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ? LIMIT 1)`, email).Scan(&exists); err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`INSERT INTO users (email, password_hash) VALUES (?, ?)`, email, hashPassword(password)); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++
	return nil
}

// hashPassword must stay in sync with the scheme the auth service verifies.
func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func ensureMarginSettings(tx *sql.Tx, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM margin_settings WHERE id = 1)`).Scan(&exists); err != nil {
		return fmt.Errorf("check margin settings existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`
		INSERT INTO margin_settings (id, min_margin_percent, default_target_margin, confidence_floor)
		VALUES (1, 30, 30, 0.6)
	`); err != nil {
		return fmt.Errorf("insert margin settings singleton: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureDemoRecipe(tx *sql.Tx, stats *Stats) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM recipes WHERE name = ? LIMIT 1`, demoRecipeName).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("check demo recipe existence: %w", err)
	}

	result, err := tx.Exec(`
		INSERT INTO recipes (name, base_cost, labor_cost)
		VALUES (?, ?, ?)
	`, demoRecipeName, 4, 6)
	if err != nil {
		return 0, fmt.Errorf("insert demo recipe: %w", err)
	}
	stats.Inserts++

	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read demo recipe id: %w", err)
	}

	ingredients := []struct {
		name         string
		avgCost      float64
		qty          float64
		wastePercent float64
	}{
		{"Oak blank", 12, 1, 10},
		{"Finishing oil", 3, 0.5, 0},
		{"Sandpaper", 1, 2, 0},
	}
	for _, ing := range ingredients {
		if _, err := tx.Exec(`
			INSERT INTO recipe_ingredients (recipe_id, name, avg_cost, qty, waste_percent)
			VALUES (?, ?, ?, ?, ?)
		`, id, ing.name, ing.avgCost, ing.qty, ing.wastePercent); err != nil {
			return 0, fmt.Errorf("insert demo ingredient: %w", err)
		}
		stats.Inserts++
	}

	return id, nil
}

func ensureDemoProducts(tx *sql.Tx, recipeID int64, stats *Stats) error {
	for _, p := range demoProducts {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM products WHERE name = ? LIMIT 1)`, p.name).Scan(&exists); err != nil {
			return fmt.Errorf("check demo product existence: %w", err)
		}
		if exists {
			continue
		}

		var linkedRecipe *int64
		if p.useRecipe {
			linkedRecipe = &recipeID
		}

		if _, err := tx.Exec(`
			INSERT INTO products (id, name, description, price, cost, target_margin, stock, is_available, recipe_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, TRUE, ?)
		`, uuid.NewString(), p.name, p.description, p.price, p.cost, p.targetMargin, p.stock, linkedRecipe); err != nil {
			return fmt.Errorf("insert demo product: %w", err)
		}
		stats.Inserts++
	}
	return nil
}
