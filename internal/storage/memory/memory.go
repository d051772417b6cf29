// Package memory is a process-local document store used by tests and by the
// "memory" database driver. Documents are kept as encoded JSON so callers
// never share state with the store.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pokebot/pokebot/internal/game/safari"
	"github.com/pokebot/pokebot/internal/game/trainer"
)

var (
	_ trainer.Store = (*Store)(nil)
	_ safari.Store  = (*Store)(nil)
)

// Store holds trainer documents and safari sessions in memory.
// It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	trainers map[int64][]byte
	safari   map[int64][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{trainers: make(map[int64][]byte), safari: make(map[int64][]byte)}
}

func decode(raw []byte) (*trainer.Trainer, error) {
	var t trainer.Trainer
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decoding trainer: %w", err)
	}
	return &t, nil
}

// Load returns a copy of the document for id.
func (s *Store) Load(_ context.Context, id int64) (*trainer.Trainer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.trainers[id]
	if !ok {
		return nil, trainer.ErrNotFound
	}
	return decode(raw)
}

// Create inserts t unless id already has a document.
func (s *Store) Create(_ context.Context, t *trainer.Trainer) (*trainer.Trainer, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if raw, ok := s.trainers[t.ID]; ok {
		existing, err := decode(raw)
		return existing, false, err
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, false, fmt.Errorf("encoding trainer: %w", err)
	}
	s.trainers[t.ID] = raw
	out, err := decode(raw)
	return out, true, err
}

// Update applies fn to a copy of the document and stores the result when fn
// and the document invariants both hold.
func (s *Store) Update(_ context.Context, id int64, fn func(*trainer.Trainer) error) (*trainer.Trainer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.loadLocked(id)
	if err != nil {
		return nil, err
	}
	if err := fn(t); err != nil {
		return nil, err
	}
	if err := s.saveLocked(t); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdatePair applies fn to copies of both documents and stores both or neither.
func (s *Store) UpdatePair(_ context.Context, a, b int64, fn func(a, b *trainer.Trainer) error) error {
	if a == b {
		return fmt.Errorf("update pair: ids must differ (%d)", a)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ta, err := s.loadLocked(a)
	if err != nil {
		return err
	}
	tb, err := s.loadLocked(b)
	if err != nil {
		return err
	}
	if err := fn(ta, tb); err != nil {
		return err
	}
	for _, t := range []*trainer.Trainer{ta, tb} {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("trainer %d: %w", t.ID, err)
		}
	}
	if err := s.saveLocked(ta); err != nil {
		return err
	}
	return s.saveLocked(tb)
}

// IsKilled reports the kill flag; unknown users are not killed.
func (s *Store) IsKilled(ctx context.Context, id int64) (bool, error) {
	t, err := s.Load(ctx, id)
	if err != nil {
		if errors.Is(err, trainer.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return t.Killed, nil
}

func (s *Store) loadLocked(id int64) (*trainer.Trainer, error) {
	raw, ok := s.trainers[id]
	if !ok {
		return nil, trainer.ErrNotFound
	}
	return decode(raw)
}

func (s *Store) saveLocked(t *trainer.Trainer) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("trainer %d: %w", t.ID, err)
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding trainer: %w", err)
	}
	s.trainers[t.ID] = raw
	return nil
}

// IDs returns every stored user id in ascending order.
func (s *Store) IDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.trainers))
	for id := range s.trainers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SaveSafariSession upserts a safari session.
func (s *Store) SaveSafariSession(_ context.Context, sess *safari.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding safari session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.safari[sess.UserID] = raw
	return nil
}

// DeleteSafariSession removes a safari session; missing sessions are ignored.
func (s *Store) DeleteSafariSession(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.safari, userID)
	return nil
}

// LoadSafariSessions returns every stored session ordered by user id.
func (s *Store) LoadSafariSessions(_ context.Context) ([]*safari.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*safari.Session, 0, len(s.safari))
	for _, raw := range s.safari {
		var sess safari.Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			return nil, fmt.Errorf("decoding safari session: %w", err)
		}
		out = append(out, &sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
