package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/agentplexus/hybridtable/hybridsearch"
	"github.com/agentplexus/hybridtable/registry"
)

// NewRouter builds the §6 HTTP surface, grounded on
// so-ta-ai-orchestration/cmd/api/main.go's middleware stack (request id,
// real ip, structured logging, panic recovery, timeout, then CORS).
func NewRouter(orch *hybridsearch.Orchestrator, reg *registry.Registry) http.Handler {
	h := NewHandlers(orch, reg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/indexes/omnisearch", h.Omnisearch)
	r.Post("/indexes/reindex", h.ReindexAll)

	r.Route("/indexes/{table}", func(r chi.Router) {
		r.Get("/", h.Search)
		r.Post("/", h.Upsert)
		r.Post("/reindex", h.ReindexTable)
	})

	return r
}
