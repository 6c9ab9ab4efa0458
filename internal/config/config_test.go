package config

import "testing"

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DB_PATH", "")
	t.Setenv("PORT", "")
	t.Setenv("ADVISOR_URL", "")

	cfg := Load()

	if cfg.DBPath != "./craved.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.Port)
	}
	if cfg.AdvisorURL != "" {
		t.Fatalf("expected empty advisor url, got %q", cfg.AdvisorURL)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DB_PATH", "/tmp/pricing.db")
	t.Setenv("PORT", "9090")
	t.Setenv("ADVISOR_URL", "http://localhost:11434/api/suggest")

	cfg := Load()

	if cfg.DBPath != "/tmp/pricing.db" {
		t.Fatalf("unexpected db path %q", cfg.DBPath)
	}
	if cfg.Port != "9090" {
		t.Fatalf("unexpected port %q", cfg.Port)
	}
	if cfg.AdvisorURL != "http://localhost:11434/api/suggest" {
		t.Fatalf("unexpected advisor url %q", cfg.AdvisorURL)
	}
}

func TestIsDev(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	if (Config{}).IsDev() {
		t.Fatalf("production must not be dev")
	}

	t.Setenv("APP_ENV", "development")
	if !(Config{}).IsDev() {
		t.Fatalf("development must be dev")
	}
}
