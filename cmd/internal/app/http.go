package app

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"stepgate/cmd/internal/auth/account"
	"stepgate/cmd/internal/auth/elevation"
	"stepgate/cmd/internal/metrics"
	"stepgate/cmd/internal/things"
)

type routes struct {
	accounts *account.Handler
	gate     *elevation.Gate
	things   *things.Handler
	metrics  *metrics.Metrics
}

func registerHTTP(mux *http.ServeMux, log Logger, cfg Config, dbPool *pgxpool.Pool, rt routes) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDB && dbPool == nil {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}
		if dbPool != nil {
			if err := PingDB(r.Context(), dbPool, 2*time.Second); err != nil {
				log.Info("readyz.db.not_ready", "err", err)
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	rt.accounts.Register(mux)
	rt.gate.Register(mux)
	rt.things.Register(mux)
}
