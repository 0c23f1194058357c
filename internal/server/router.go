package server

import (
	"net/http"

	"github.com/satriadhikara/dock/internal/api"
	"github.com/satriadhikara/dock/internal/api/handlers"
	"github.com/satriadhikara/dock/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	OwnerResolver    middleware.OwnerResolver
	ChatHandler      *handlers.ChatHandler
	KnowledgeHandler *handlers.KnowledgeHandler
	SearchHandler    *handlers.SearchHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(cfg.OwnerResolver))

		r.Route("/api", func(r chi.Router) {
			r.Post("/chat", cfg.ChatHandler.Chat)

			r.Route("/knowledge", func(r chi.Router) {
				r.Post("/", cfg.KnowledgeHandler.Add)
				r.Get("/", cfg.KnowledgeHandler.List)
				r.Post("/ingest", cfg.KnowledgeHandler.Ingest)
				r.Delete("/contract/{id}", cfg.KnowledgeHandler.PurgeContract)
			})

			r.Post("/search", cfg.SearchHandler.Search)
		})
	})

	return r
}
