// Package server exposes the run ledger and analysis results over a
// read-only HTTP API.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hillwinds/benetl/internal/store"
)

// shutdownGrace bounds how long in-flight requests may drain once a stop
// signal arrives.
const shutdownGrace = 10 * time.Second

// Serve runs srv on ln until ctx is cancelled, then drains in-flight
// requests before returning. The drain runs on a fresh context so the
// cancellation that triggered the shutdown does not abort responses still
// being written.
func Serve(ctx context.Context, srv *http.Server, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return eris.Wrap(err, "server: serve")
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return nil
}

// NewRouter builds the HTTP API over the store.
func NewRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		runs, err := st.ListRunMetrics(req.Context(), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Route("/analysis", func(r chi.Router) {
		r.Get("/gaps", func(w http.ResponseWriter, req *http.Request) {
			gaps, err := st.Gaps(req.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, gaps)
		})
		r.Get("/spikes", func(w http.ResponseWriter, req *http.Request) {
			spikes, err := st.Spikes(req.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, spikes)
		})
		r.Get("/roster", func(w http.ResponseWriter, req *http.Request) {
			roster, err := st.Roster(req.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, roster)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
