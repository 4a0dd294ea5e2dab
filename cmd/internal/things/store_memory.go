package things

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"stepgate/cmd/identity/ids"
)

// MemoryStore keeps things in process memory (dev mode and tests).
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]Thing
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]Thing)}
}

func (s *MemoryStore) Create(ctx context.Context, in CreateInput) (Thing, error) {
	if err := ctx.Err(); err != nil {
		return Thing{}, err
	}
	if in.UserID == "" {
		return Thing{}, errors.New("things: missing user id")
	}
	name, err := normalizeName(in.Name)
	if err != nil {
		return Thing{}, err
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return Thing{}, err
	}

	t := Thing{ID: id, UserID: in.UserID, Name: name, CreatedAt: now}
	s.mu.Lock()
	s.rows[id] = t
	s.mu.Unlock()
	return t, nil
}

// List returns userID's things, newest first.
func (s *MemoryStore) List(ctx context.Context, userID string) ([]Thing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]Thing, 0)
	for _, t := range s.rows {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Thing) int { return cmp.Compare(b.ID, a.ID) })
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, userID, id string) (Thing, error) {
	if err := ctx.Err(); err != nil {
		return Thing{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.rows[id]
	if !ok || t.UserID != userID {
		return Thing{}, ErrNotFound
	}
	return t, nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[id]
	if !ok || t.UserID != userID {
		return ErrNotFound
	}
	delete(s.rows, id)
	return nil
}
