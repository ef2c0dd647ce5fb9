package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/xelth-com/sealflow/internal/accounts"
	"github.com/xelth-com/sealflow/internal/apperr"
	"github.com/xelth-com/sealflow/internal/audit"
	"github.com/xelth-com/sealflow/internal/buildinfo"
	"github.com/xelth-com/sealflow/internal/config"
	"github.com/xelth-com/sealflow/internal/identity"
	"github.com/xelth-com/sealflow/internal/middleware"
	"github.com/xelth-com/sealflow/internal/review"
)

// Deps are the services behind the HTTP API
type Deps struct {
	Applications *review.Service
	Accounts     *accounts.Service
	Audit        *audit.Logger
	Auth         *middleware.Auth
	Log          *zap.Logger
}

// Router wraps the mux router and the services it dispatches to
type Router struct {
	*mux.Router
	cfg      *config.Config
	apps     *review.Service
	accounts *accounts.Service
	audit    *audit.Logger
	log      *zap.Logger
	prefix   string
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(cfg *config.Config, deps Deps) *Router {
	r := &Router{
		Router:   mux.NewRouter(),
		cfg:      cfg,
		apps:     deps.Applications,
		accounts: deps.Accounts,
		audit:    deps.Audit,
		log:      deps.Log,
		prefix:   strings.TrimRight(cfg.PathPrefix, "/"),
	}
	r.Use(middleware.Logging(deps.Log))

	base := r.Router
	if r.prefix != "" {
		base = r.PathPrefix(r.prefix).Subrouter()
	}

	// Health check endpoint
	base.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Public verification of sealed documents
	base.HandleFunc("/verify/{code}", r.verify).Methods("GET")

	// Auth routes
	auth := base.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register", r.register).Methods("POST")
	auth.HandleFunc("/login", r.login).Methods("POST")
	auth.HandleFunc("/logout", r.logout).Methods("POST")

	// API routes (protected)
	api := base.PathPrefix("/api").Subrouter()
	api.Use(deps.Auth.Require)

	apps := api.PathPrefix("/applications").Subrouter()
	apps.HandleFunc("", r.listApplications).Methods("GET")
	apps.HandleFunc("", r.createApplication).Methods("POST")
	apps.HandleFunc("/{id}", r.getApplication).Methods("GET")
	apps.HandleFunc("/{id}/download", r.downloadApplication).Methods("GET")
	apps.HandleFunc("/{id}/review", r.reviewApplication).Methods("POST")
	if r.apps.ResubmissionEnabled() {
		apps.HandleFunc("/{id}/resubmit", r.resubmitApplication).Methods("POST")
	}

	users := api.PathPrefix("/users").Subrouter()
	users.HandleFunc("", r.listUsers).Methods("GET")
	users.HandleFunc("", r.createUser).Methods("POST")
	users.HandleFunc("/{id}", r.deleteUser).Methods("DELETE")

	api.HandleFunc("/logs", r.listLogs).Methods("GET")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"build":  buildinfo.Current(time.Now()),
	})
}

// principal returns the caller set by the auth middleware
func principal(req *http.Request) identity.Principal {
	p, _ := identity.FromContext(req.Context())
	return p
}

// fail maps a service error to its HTTP status and public message
func (r *Router) fail(w http.ResponseWriter, req *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		r.log.Error("Request failed",
			zap.String("method", req.Method), zap.String("path", req.URL.Path), zap.Error(err))
	}
	respondError(w, status, apperr.PublicMessage(err))
}

// decode reads a JSON body, answering 400 itself when it cannot
func decode(w http.ResponseWriter, req *http.Request, v interface{}) bool {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
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
