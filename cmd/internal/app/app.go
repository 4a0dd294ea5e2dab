// Package app wires the stepgate server: config, logging, stores, HTTP routes.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"stepgate/cmd/identity"
	"stepgate/cmd/internal/audit"
	"stepgate/cmd/internal/auth/account"
	"stepgate/cmd/internal/auth/elevation"
	"stepgate/cmd/internal/auth/session"
	"stepgate/cmd/internal/metrics"
	"stepgate/cmd/internal/things"
	"stepgate/cmd/internal/web"
)

// App is the stepgate server runtime.
type App struct {
	cfg Config
	log Logger

	dbPool  *pgxpool.Pool
	handler http.Handler
}

// stores groups one persistence backend: all Postgres or all in-memory.
type stores struct {
	pool     *pgxpool.Pool
	users    identity.Store
	sessions session.Store
	things   things.Store
	audit    audit.Recorder
	failures audit.FailureCounter
}

// New constructs a fully wired App from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if err := ValidateSecurityConfig(cfg, sessCfg); err != nil {
		return nil, err
	}
	if sessCfg.SigningKeyHex == "" {
		sessCfg.SigningKeyHex = session.GenerateSigningKeyHex()
		log.Warn("session.signing_key.ephemeral", "reason", "STEPGATE_SESSION_SIGNING_KEY_HEX not set")
	}

	verifier, err := elevation.LoadVerifierFromEnv()
	if err != nil {
		return nil, err
	}

	st, err := newStores(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}
	closeOnErr := func(err error) (*App, error) {
		if st.pool != nil {
			st.pool.Close()
		}
		return nil, err
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	tokens, err := session.NewPasetoV4CookieManager(sessCfg)
	if err != nil {
		return closeOnErr(err)
	}
	sessions, err := session.NewManager(sessCfg, st.sessions, tokens)
	if err != nil {
		return closeOnErr(err)
	}
	views, err := web.NewRenderer(log, sessCfg.CookieSecure)
	if err != nil {
		return closeOnErr(err)
	}

	accCfg := account.LoadConfigFromEnv()
	accounts, err := account.NewHandler(log, accCfg, st.users, sessions, views,
		account.WithAudit(st.audit, st.failures),
		account.WithMetrics(m),
	)
	if err != nil {
		return closeOnErr(err)
	}
	gate, err := elevation.NewGate(log, accounts, sessions, verifier, views,
		elevation.WithAudit(st.audit),
		elevation.WithMetrics(m),
		elevation.WithMaxBodyBytes(accCfg.MaxBodyBytes),
	)
	if err != nil {
		return closeOnErr(err)
	}
	thingsHandler, err := things.NewHandler(log, st.things, gate, views)
	if err != nil {
		return closeOnErr(err)
	}

	mux := http.NewServeMux()
	registerHTTP(mux, log, cfg, st.pool, routes{
		accounts: accounts,
		gate:     gate,
		things:   thingsHandler,
		metrics:  m,
	})

	return &App{
		cfg:     cfg,
		log:     log,
		dbPool:  st.pool,
		handler: WithRequestLogging(WithSecurityHeaders(mux), log, m),
	}, nil
}

// Handler is the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbPool != nil)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		a.Close()
		return err
	}
	a.Close()

	a.log.Info("server.stopped")
	return nil
}

// Close releases the DB pool. The app owns the pool; stores never close it.
func (a *App) Close() {
	if a.dbPool != nil {
		a.dbPool.Close()
		a.dbPool = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStores picks Postgres when STEPGATE_DATABASE_URL is set, memory otherwise.
func newStores(ctx context.Context, cfg Config, log Logger) (stores, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		mem := audit.NewMemoryRecorder(0)
		return stores{
			users:    identity.NewMemoryStore(),
			sessions: session.NewMemoryStore(),
			things:   things.NewMemoryStore(),
			audit:    audit.Multi{audit.NewLogRecorder(log), mem},
			failures: mem,
		}, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return stores{}, err
	}
	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema, "auto_migrate", cfg.DBAutoMigrate)

	fail := func(err error) (stores, error) {
		pool.Close()
		return stores{}, err
	}

	users, err := identity.NewPostgresStore(pool, identity.WithSchema(cfg.DBSchema))
	if err != nil {
		return fail(err)
	}
	sess, err := session.NewPostgresStore(pool, cfg.DBSchema)
	if err != nil {
		return fail(err)
	}
	th, err := things.NewPostgresStore(pool, cfg.DBSchema)
	if err != nil {
		return fail(err)
	}
	rec, err := audit.NewPostgresRecorder(log, pool, cfg.DBSchema)
	if err != nil {
		return fail(err)
	}

	return stores{pool: pool, users: users, sessions: sess, things: th, audit: rec, failures: rec}, nil
}
