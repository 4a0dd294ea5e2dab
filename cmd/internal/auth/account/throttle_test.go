package account

import (
	"context"
	"testing"
	"time"

	"stepgate/cmd/internal/audit"
)

func TestIPLimiterAllow(t *testing.T) {
	t.Parallel()

	l := newIPLimiter(60, 2)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	if !l.Allow("10.0.0.1", now) || !l.Allow("10.0.0.1", now) {
		t.Fatalf("burst not honored")
	}
	if l.Allow("10.0.0.1", now) {
		t.Fatalf("expected limit after burst")
	}
	if !l.Allow("10.0.0.2", now) {
		t.Fatalf("limit leaked across IPs")
	}
	if !l.Allow("10.0.0.1", now.Add(time.Second)) {
		t.Fatalf("expected refill after one interval")
	}
}

func TestIPLimiterSweepsIdle(t *testing.T) {
	t.Parallel()

	l := newIPLimiter(60, 1)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	l.Allow("10.0.0.1", now)
	l.Allow("10.0.0.2", now)

	l.Allow("10.0.0.3", now.Add(11*time.Minute))
	if got := l.size(); got != 1 {
		t.Fatalf("entries=%d want 1 after sweep", got)
	}
}

func TestIPLimiterDisabled(t *testing.T) {
	t.Parallel()

	var l *ipLimiter = newIPLimiter(0, 5)
	if l != nil {
		t.Fatalf("expected nil limiter")
	}
	for range 100 {
		if !l.Allow("10.0.0.1", time.Now()) {
			t.Fatalf("nil limiter blocked")
		}
	}
}

func TestCheckLoginIPThrottle(t *testing.T) {
	t.Parallel()

	rec := audit.NewMemoryRecorder(0)
	h := &Handler{cfg: Config{LoginIPMax: 2, LoginIPWindow: 5 * time.Minute}, failures: rec}
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	rec.Record(ctx, audit.Event{Action: audit.ActionLoginFailed, IP: "10.0.0.1", At: now.Add(-10 * time.Minute)})
	rec.Record(ctx, audit.Event{Action: audit.ActionLoginFailed, IP: "10.0.0.1", At: now.Add(-time.Minute)})
	rec.Record(ctx, audit.Event{Action: audit.ActionLoginSuccess, IP: "10.0.0.1", At: now})

	blocked, _, err := h.checkLoginIPThrottle(ctx, "10.0.0.1", now)
	if err != nil || blocked {
		t.Fatalf("blocked=%v err=%v want false/nil", blocked, err)
	}

	rec.Record(ctx, audit.Event{Action: audit.ActionLoginFailed, IP: "10.0.0.1", At: now})
	blocked, retry, err := h.checkLoginIPThrottle(ctx, "10.0.0.1", now)
	if err != nil || !blocked || retry != 5*time.Minute {
		t.Fatalf("blocked=%v retry=%s err=%v want true/5m/nil", blocked, retry, err)
	}

	if blocked, _, _ := h.checkLoginIPThrottle(ctx, "", now); blocked {
		t.Fatalf("empty IP blocked")
	}
}
