package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cravedartisan/vendor-pricing/internal/advisor"
	"github.com/cravedartisan/vendor-pricing/internal/config"
	"github.com/cravedartisan/vendor-pricing/internal/db"
	"github.com/cravedartisan/vendor-pricing/internal/migrations"
	"github.com/cravedartisan/vendor-pricing/internal/seed"
)

type server struct {
	auth      *authService
	db        *sql.DB
	suggester advisor.Suggester
}

func main() {
	cfg := config.Load()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(database, "migrations"); err != nil {
			log.Fatalf("failed to run database migrations: %v", err)
		}
	}
	if version, err := migrations.Version(database); err == nil {
		log.Printf("database schema at version %d", version)
	}

	stats, err := seed.Run(database, seed.Config{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	})
	if err != nil {
		log.Fatalf("failed to run startup seed: %v", err)
	}
	if stats.Inserts > 0 {
		log.Printf("startup seed inserted %d rows", stats.Inserts)
	}

	var suggester advisor.Suggester = advisor.Heuristic{}
	if cfg.AdvisorURL != "" {
		suggester = advisor.NewRemote(cfg.AdvisorURL)
		log.Printf("using remote suggestion service at %s", cfg.AdvisorURL)
	}

	srv := &server{
		auth:      newAuthService(database, cfg.SessionSecret),
		db:        database,
		suggester: suggester,
	}

	r := chi.NewRouter()
	r.Use(srv.authMiddleware)
	r.Post("/api/login", srv.handleLogin)
	r.Post("/api/logout", srv.handleLogout)
	r.Route("/api/vendor", func(r chi.Router) {
		r.Get("/products", srv.handleProductsList)
		r.Post("/products", srv.handleProductCreate)
		r.Get("/products/alerts/margin", srv.handleMarginAlerts)
		r.Get("/products/{id}", srv.handleProductGet)
		r.Put("/products/{id}", srv.handleProductUpdate)
		r.Get("/products/{id}/ai-suggestion", srv.handleAiSuggestionPreview)
		r.Post("/products/{id}/ai-suggest", srv.handleAiSuggestApply)
		r.Delete("/products/{id}/watchlist", srv.handleWatchlistClear)
		r.Get("/settings/margin", srv.handleMarginSettingsGet)
		r.Put("/settings/margin", srv.handleMarginSettingsUpdate)
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.jsonError(w, http.StatusBadRequest, "Invalid request", "request body must be valid JSON")
		return
	}

	valid, err := s.auth.validateCredentials(body.Email, body.Password)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Internal server error", "authentication failed")
		return
	}
	if !valid {
		s.jsonError(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
		return
	}

	s.auth.setSessionCookie(w, body.Email)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged in successfully"})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/login" {
			next.ServeHTTP(w, r)
			return
		}

		if !isAuthenticated(r, s.auth) {
			s.jsonError(w, http.StatusUnauthorized, "Unauthorized", "login required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func (s *server) jsonError(w http.ResponseWriter, status int, errLabel, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errLabel,
		"message": message,
	})
}

// round2 rounds to cents for response payloads.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
