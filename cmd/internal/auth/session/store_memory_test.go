package session

import (
	"context"
	"testing"
	"time"

	"stepgate/cmd/security/token"
)

func TestMemoryStore_DeleteStale(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	create := func(name string, exp time.Time) Row {
		t.Helper()
		row, err := s.Create(ctx, CreateInput{Now: now, TokenHash: token.HashSHA256Hex(name), ExpiresAt: exp})
		if err != nil {
			t.Fatalf("Create(%s): %v", name, err)
		}
		return row
	}

	active := create("active", now.Add(time.Hour))
	create("expired", now.Add(-time.Second))
	revoked := create("revoked", now.Add(time.Hour))
	if err := s.Revoke(ctx, now, revoked.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	n, err := s.DeleteStale(ctx, now)
	if err != nil {
		t.Fatalf("DeleteStale: %v", err)
	}
	if n != 2 || s.Len() != 1 {
		t.Fatalf("deleted=%d left=%d; want 2 and 1", n, s.Len())
	}
	if _, err := s.GetByTokenHash(ctx, active.TokenHash); err != nil {
		t.Fatalf("active row lost: %v", err)
	}
	if _, err := s.GetByTokenHash(ctx, token.HashSHA256Hex("revoked")); err != ErrSessionNotFound {
		t.Fatalf("revoked row: got %v want ErrSessionNotFound", err)
	}
}
