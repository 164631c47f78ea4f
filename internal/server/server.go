// Package server exposes the diary assistant over HTTP: the chat endpoints,
// the diary read APIs and the on-demand rollup triggers.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/echodiary/echodiary/internal/chat"
	"github.com/echodiary/echodiary/internal/diary"
	"github.com/echodiary/echodiary/internal/pipeline"
	"github.com/echodiary/echodiary/internal/rollup"
)

// Server bundles the services behind the HTTP surface.
type Server struct {
	Chat     *chat.Service
	Pipeline *pipeline.Pipeline
	Diaries  diary.Store
	Rollups  *rollup.Runner
	Location *time.Location
}

// NewRouter builds the chi router. allowedOrigins enables CORS when
// non-empty.
func NewRouter(s *Server, allowedOrigins []string) http.Handler {
	if s.Location == nil {
		s.Location = time.UTC
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/conversation", s.handleConversation)
		r.Get("/conversation/ws", s.handleConversationWS)

		r.Get("/diaries", s.handleDiaries)
		r.Get("/monthly-diaries", s.handleMonthlyDiaries)
		r.Get("/yearly-monthly-diaries", s.handleYearlyMonthlyDiaries)

		r.Post("/rollups/daily", s.handleDailyRollup)
		r.Post("/rollups/monthly", s.handleMonthlyRollup)

		r.Get("/recent-summary", s.handleRecentSummary)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
