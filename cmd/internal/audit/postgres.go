package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"stepgate/cmd/identity/ids"
	"stepgate/cmd/internal/pgutil"
)

// PostgresRecorder writes events to <schema>.audit_log.
type PostgresRecorder struct {
	log   *slog.Logger
	pool  *pgxpool.Pool
	table string
}

// NewPostgresRecorder constructs a PostgresRecorder.
func NewPostgresRecorder(log *slog.Logger, pool *pgxpool.Pool, schema string) (*PostgresRecorder, error) {
	if pool == nil {
		return nil, fmt.Errorf("audit: nil pool")
	}
	schema, err := pgutil.CheckSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &PostgresRecorder{log: log, pool: pool, table: pgutil.Ident(schema, "audit_log")}, nil
}

func (r *PostgresRecorder) Record(ctx context.Context, ev Event) {
	ev, ok := normalize(ev)
	if !ok {
		return
	}

	id, err := ids.NewULID(ev.At)
	if err != nil {
		r.log.Error("audit.insert.fail", "err", err, "action", ev.Action)
		return
	}
	meta := ev.Meta
	if meta == nil {
		meta = map[string]any{}
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO `+r.table+` (
			id, user_id, session_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, orNil(ev.UserID), orNil(ev.SessionID), ev.Action, ev.At, orNil(ev.IP), orNil(ev.UserAgent), meta)
	if err != nil {
		r.log.Error("audit.insert.fail", "err", err, "action", ev.Action)
	}
}

func (r *PostgresRecorder) CountByIP(ctx context.Context, action, ip string, since time.Time) (int, error) {
	if ip == "" {
		return 0, nil
	}
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM `+r.table+`
		WHERE action = $1
		  AND ip = $2::inet
		  AND created_at >= $3
	`, action, ip, since).Scan(&n)
	return n, err
}

func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
