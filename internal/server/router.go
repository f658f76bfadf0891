package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kiesman99/imslice/internal/api"
)

// APIPrefix is where the API routes are mounted.
const APIPrefix = "/api/v1"

// NewRouter wires apiServer into a chi router with the standard middleware
// stack. Requests running longer than timeout are cancelled.
func NewRouter(apiServer *Server, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(timeout))
	r.Use(cors)

	api.HandlerWithOptions(apiServer, api.ChiServerOptions{
		BaseURL:          APIPrefix,
		BaseRouter:       r,
		ErrorHandlerFunc: apiServer.ParamError,
	})

	// Health without the prefix, kept for load balancers
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, APIPrefix+"/health", http.StatusMovedPermanently)
	})

	return r
}

// cors allows browser clients on any origin
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
