package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings read from environment variables.
type Config struct {
	AdminEmail    string
	AdminPassword string
	SessionSecret string
	DBPath        string
	Port          string

	// AdvisorURL points at an external price-suggestion service. Empty means
	// the built-in heuristic engine is used.
	AdvisorURL string
}

// Load reads the environment and returns a populated Config. A .env file is
// loaded first when present; production deployments inject real env vars.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		DBPath:        envOr("DB_PATH", "./craved.db"),
		Port:          envOr("PORT", "8080"),
		AdvisorURL:    os.Getenv("ADVISOR_URL"),
	}

	for _, name := range []string{"ADMIN_EMAIL", "ADMIN_PASSWORD", "SESSION_SECRET"} {
		if os.Getenv(name) == "" {
			log.Printf("warning: %s is not set", name)
		}
	}

	return cfg
}

// IsDev reports whether the app runs in development mode. Anything other than
// an explicit "production" counts as development.
func (c Config) IsDev() bool {
	return os.Getenv("APP_ENV") != "production"
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
