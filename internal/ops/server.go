// Package ops exposes the operational HTTP surface shared by all binaries.
package ops

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Serve starts the ops server in the background. A listener failure is
// logged, not fatal; the binary keeps running without the ops surface.
func Serve(addr string) {
	go func() {
		slog.Info("ops server listening", "addr", addr)
		if err := http.ListenAndServe(addr, NewRouter()); err != nil {
			slog.Error("ops server stopped", "error", err)
		}
	}()
}
