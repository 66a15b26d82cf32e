// Package router wires the lead API's HTTP surface.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/apexcrm/lead-console/internal/chatapi"
	"github.com/apexcrm/lead-console/internal/extraction"
	httpmiddleware "github.com/apexcrm/lead-console/internal/http/middleware"
	"github.com/apexcrm/lead-console/internal/leads"
	"github.com/apexcrm/lead-console/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	LeadsHandler       *leads.Handler
	ExtractionHandler  *extraction.Handler
	ChatHandler        *chatapi.Handler
	ChatSocketHandler  *chatapi.WSHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Requests/sec and burst for the extraction endpoint; zero disables
	// rate limiting.
	ExtractRateLimit float64
	ExtractBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.LeadsHandler != nil {
			api.Route("/leads", func(r chi.Router) {
				r.Get("/", cfg.LeadsHandler.List)
				r.Post("/", cfg.LeadsHandler.Create)
				r.Put("/{id}", cfg.LeadsHandler.UpdateStatus)
				r.Delete("/{id}", cfg.LeadsHandler.Delete)
			})
		}

		if cfg.ExtractionHandler != nil {
			extract := api.With()
			if cfg.ExtractRateLimit > 0 {
				extract = api.With(httpmiddleware.RateLimit(cfg.ExtractRateLimit, cfg.ExtractBurst))
			}
			extract.Post("/extract-lead", cfg.ExtractionHandler.ExtractLead)
		}

		if cfg.ChatHandler != nil {
			api.Route("/chat", func(r chi.Router) {
				r.Post("/stream", cfg.ChatHandler.HandleStream)
				r.Get("/transcript/{leadID}", cfg.ChatHandler.GetTranscript)
				r.Delete("/transcript/{leadID}", cfg.ChatHandler.ClearTranscript)
			})
		}
	})

	if cfg.ChatSocketHandler != nil {
		r.Get("/ws/chat", cfg.ChatSocketHandler.HandleWebSocket)
	}

	return r
}
