package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqlhr/askaql/internal/log"
)

// health is a simple health check endpoint for Docker/Kubernetes probes.
// Returns 200 OK with {"status":"ok"}.
func health(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

// readiness reports whether the server can serve traffic. With a pool it
// pings the database and includes pool stats; without one it degrades to
// a plain ok so the probe still works in tests.
func readiness(pool *pgxpool.Pool, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			logger.Warn("readiness ping failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "Database unavailable", "", logger)
			return
		}

		stats := pool.Stat()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":            "ok",
			"total_conns":       stats.TotalConns(),
			"idle_conns":        stats.IdleConns(),
			"acquired_conns":    stats.AcquiredConns(),
			"max_conns":         stats.MaxConns(),
			"empty_acquire_cnt": stats.EmptyAcquireCount(),
		}, logger)
	}
}
