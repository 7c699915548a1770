package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stocklink/bomsync/internal/bom"
	"github.com/stocklink/bomsync/internal/buildinfo"
	"github.com/stocklink/bomsync/internal/config"
	"github.com/stocklink/bomsync/internal/database"
	"github.com/stocklink/bomsync/internal/middleware"
	"github.com/stocklink/bomsync/internal/ws"
)

// Router wraps the mux router and the engine's entry points
type Router struct {
	*mux.Router
	db           *database.DB
	cfg          *config.Config
	orchestrator *bom.Orchestrator
	runs         bom.RunStore
	listener     *bom.DeductionListener
	hub          *ws.Hub
}

// NewRouter creates the HTTP router with all routes
func NewRouter(db *database.DB, cfg *config.Config, orchestrator *bom.Orchestrator, runs bom.RunStore, listener *bom.DeductionListener, hub *ws.Hub) *Router {
	r := &Router{
		Router:       mux.NewRouter(),
		db:           db,
		cfg:          cfg,
		orchestrator: orchestrator,
		runs:         runs,
		listener:     listener,
		hub:          hub,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Operator token exchange (API key in, JWT out)
	r.HandleFunc("/auth/token", r.issueToken).Methods("POST")

	// Operator API (JWT protected)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(cfg.JWTSecret))
	api.HandleFunc("/status", r.getStatus).Methods("GET")
	api.HandleFunc("/bom/effective/{productId}", r.getEffectiveStock).Methods("GET")
	api.HandleFunc("/bom/sync/{productId}", r.syncProduct).Methods("POST")
	api.HandleFunc("/bom/sync", r.syncAll).Methods("POST")
	api.HandleFunc("/bom/runs", r.listRuns).Methods("GET")
	api.HandleFunc("/bom/runs/{runId}", r.getRun).Methods("GET")
	api.HandleFunc("/bom/runs/{runId}/report.pdf", r.getRunReport).Methods("GET")
	api.HandleFunc("/bom/progress/ws", r.progressSocket).Methods("GET")

	// Order webhook fallback (per-account API key)
	hooks := r.PathPrefix("/webhooks").Subrouter()
	hooks.Use(middleware.WebhookAuth(middleware.GormAccountLookup(db.DB)))
	hooks.HandleFunc("/order", r.orderWebhook).Methods("POST")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// getStatus returns the current status
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":      "running",
		"build_time":  buildinfo.BuildTime,
		"commit_hash": buildinfo.CommitHash,
		"started_at":  buildinfo.StartTime,
	})
}

// progressSocket attaches a dashboard to the bulk-sync progress stream
func (r *Router) progressSocket(w http.ResponseWriter, req *http.Request) {
	ws.ServeWs(r.hub, w, req)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
