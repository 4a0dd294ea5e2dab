// Package audit records security-relevant events (sign-in, sign-out, elevation).
package audit

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Actions recorded by stepgate.
const (
	ActionSignUp             = "auth.signup"
	ActionLoginSuccess       = "auth.login.success"
	ActionLoginFailed        = "auth.login.failed"
	ActionLoginRateLimited   = "auth.login.rate_limited"
	ActionLogout             = "auth.logout"
	ActionLogoutAll          = "auth.logout_all"
	ActionElevationBegin     = "elevation.begin"
	ActionElevationConfirmed = "elevation.confirm.success"
	ActionElevationMismatch  = "elevation.confirm.mismatch"
)

// Event is one audit row.
type Event struct {
	Action    string
	UserID    string
	SessionID string
	IP        string
	UserAgent string
	Meta      map[string]any
	At        time.Time
}

// Recorder persists audit events. Record must not fail the request: errors are
// logged by the implementation.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

// FailureCounter counts recent events for throttling decisions.
type FailureCounter interface {
	CountByIP(ctx context.Context, action, ip string, since time.Time) (int, error)
}

// LogRecorder writes events to the structured log only (dev mode).
type LogRecorder struct {
	log *slog.Logger
}

// NewLogRecorder returns a Recorder backed by log.
func NewLogRecorder(log *slog.Logger) *LogRecorder {
	if log == nil {
		log = slog.Default()
	}
	return &LogRecorder{log: log}
}

func (r *LogRecorder) Record(_ context.Context, ev Event) {
	ev, ok := normalize(ev)
	if !ok {
		return
	}
	r.log.Info("audit."+ev.Action, "user_id", ev.UserID, "session_id", ev.SessionID, "ip", ev.IP)
}

// MemoryRecorder keeps events in memory. It backs the dev-mode throttle and tests.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []Event
	limit  int
}

// NewMemoryRecorder keeps at most limit events (oldest dropped first).
func NewMemoryRecorder(limit int) *MemoryRecorder {
	if limit <= 0 {
		limit = 10_000
	}
	return &MemoryRecorder{limit: limit}
}

func (r *MemoryRecorder) Record(_ context.Context, ev Event) {
	ev, ok := normalize(ev)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if over := len(r.events) - r.limit; over > 0 {
		r.events = append(r.events[:0], r.events[over:]...)
	}
}

func (r *MemoryRecorder) CountByIP(_ context.Context, action, ip string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Action == action && ev.IP == ip && !ev.At.Before(since) {
			n++
		}
	}
	return n, nil
}

// Events returns a copy of the recorded events.
func (r *MemoryRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Multi fans an event out to several recorders.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, ev Event) {
	for _, r := range m {
		if r != nil {
			r.Record(ctx, ev)
		}
	}
}

func normalize(ev Event) (Event, bool) {
	ev.Action = strings.TrimSpace(ev.Action)
	if ev.Action == "" {
		return Event{}, false
	}
	ev.UserAgent = strings.TrimSpace(ev.UserAgent)
	if len(ev.UserAgent) > 512 {
		ev.UserAgent = ev.UserAgent[:512]
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	return ev, true
}
