// Package server assembles all HTTP handlers and starts the server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matthewbaird/mllabeler/internal/handler"
	"github.com/matthewbaird/mllabeler/internal/labeling"
	"github.com/matthewbaird/mllabeler/internal/similar"
	"github.com/matthewbaird/mllabeler/internal/wire"
)

// Config holds server configuration.
type Config struct {
	Port   int
	Engine *labeling.Engine
	Finder *similar.Service
	Hub    *wire.Hub
}

// Router builds the HTTP routes. The websocket hub is mounted at /ws when
// set; its selection reports feed the same path as POST /v1/selection.
func Router(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	lh := handler.NewLabelingHandler(cfg.Engine, cfg.Finder)
	r.Route("/v1", func(r chi.Router) {
		lh.Routes(r)
		if cfg.Finder != nil {
			handler.NewSimilarHandler(cfg.Finder).Routes(r)
		}
	})

	if cfg.Hub != nil {
		cfg.Hub.OnSelection(lh.SelectionChanged)
		r.Handle("/ws", cfg.Hub)
	}
	return r
}

// Run starts the HTTP server and shuts it down when ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           Router(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
