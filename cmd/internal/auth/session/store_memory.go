package session

import (
	"context"
	"maps"
	"sync"
	"time"

	"stepgate/cmd/identity/ids"
)

// MemoryStore is the dev-mode Store. Revoked and expired rows stay until the
// Manager's periodic DeleteStale sweep.
type MemoryStore struct {
	mu     sync.Mutex
	rows   map[string]Row
	byHash map[string]string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:   make(map[string]Row),
		byHash: make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, in CreateInput) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}

	id, err := ids.NewULID(in.Now)
	if err != nil {
		return Row{}, err
	}

	row := Row{
		ID:         id,
		TokenHash:  in.TokenHash,
		UserID:     in.UserID,
		Values:     maps.Clone(in.Values),
		CreatedAt:  in.Now,
		LastUsedAt: in.Now,
		ExpiresAt:  in.ExpiresAt,
		UserAgent:  in.UserAgent,
		IP:         in.IP,
	}
	if row.Values == nil {
		row.Values = map[string]string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[id] = row
	s.byHash[in.TokenHash] = id
	return cloneRow(row), nil
}

func (s *MemoryStore) GetByTokenHash(ctx context.Context, tokenHash string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byHash[tokenHash]
	if !ok {
		return Row{}, ErrSessionNotFound
	}
	return cloneRow(s.rows[id]), nil
}

func (s *MemoryStore) Save(ctx context.Context, now time.Time, sessionID, userID string, values map[string]string) error {
	return s.update(ctx, sessionID, func(r *Row) error {
		if r.RevokedAt != nil {
			return ErrSessionRevoked
		}
		r.UserID = userID
		r.Values = maps.Clone(values)
		r.LastUsedAt = now
		return nil
	})
}

func (s *MemoryStore) Touch(ctx context.Context, now time.Time, sessionID string) error {
	return s.update(ctx, sessionID, func(r *Row) error {
		r.LastUsedAt = now
		return nil
	})
}

func (s *MemoryStore) Revoke(ctx context.Context, now time.Time, sessionID string) error {
	err := s.update(ctx, sessionID, func(r *Row) error {
		if r.RevokedAt == nil {
			at := now
			r.RevokedAt = &at
		}
		return nil
	})
	if err == ErrSessionNotFound {
		return nil
	}
	return err
}

func (s *MemoryStore) RevokeAll(ctx context.Context, now time.Time, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.rows {
		if r.UserID == userID && r.RevokedAt == nil {
			at := now
			r.RevokedAt = &at
			s.rows[id] = r
		}
	}
	return nil
}

func (s *MemoryStore) DeleteStale(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.rows {
		if r.RevokedAt == nil && r.ExpiresAt.After(now) {
			continue
		}
		delete(s.byHash, r.TokenHash)
		delete(s.rows, id)
		n++
	}
	return n, nil
}

// Len reports the number of stored rows, stale ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *MemoryStore) update(ctx context.Context, sessionID string, fn func(*Row) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if err := fn(&r); err != nil {
		return err
	}
	s.rows[sessionID] = r
	return nil
}

func cloneRow(r Row) Row {
	r.Values = maps.Clone(r.Values)
	if r.RevokedAt != nil {
		at := *r.RevokedAt
		r.RevokedAt = &at
	}
	return r
}
