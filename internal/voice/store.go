package voice

import (
	"context"
	"slices"
	"sync"
)

// Store persists the mutable part of the catalog: custom voices and the set
// of hidden voice ids. Built-in presets are never stored.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// SaveCustom inserts or replaces a custom voice.
	SaveCustom(ctx context.Context, p Preset) error

	// ListCustom returns all custom voices, newest first.
	ListCustom(ctx context.Context) ([]Preset, error)

	// SetHidden records whether the voice with id is hidden. Hiding an id
	// the store has never seen is allowed; built-ins live only in code.
	SetHidden(ctx context.Context, id string, hidden bool) error

	// HiddenIDs returns every hidden voice id in ascending order.
	HiddenIDs(ctx context.Context) ([]string, error)

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
}

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store]. It is used
// when no database is configured and in tests. The zero value is ready to use.
type MemStore struct {
	mu     sync.RWMutex
	custom []Preset
	hidden map[string]struct{}
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{hidden: make(map[string]struct{})}
}

// SaveCustom implements [Store.SaveCustom].
func (s *MemStore) SaveCustom(_ context.Context, p Preset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.IsCustom = true
	p.IsHidden = false
	if i := slices.IndexFunc(s.custom, func(c Preset) bool { return c.ID == p.ID }); i >= 0 {
		s.custom[i] = p
		return nil
	}
	s.custom = slices.Insert(s.custom, 0, p)
	return nil
}

// ListCustom implements [Store.ListCustom].
func (s *MemStore) ListCustom(_ context.Context) ([]Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.custom), nil
}

// SetHidden implements [Store.SetHidden].
func (s *MemStore) SetHidden(_ context.Context, id string, hidden bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hidden == nil {
		s.hidden = make(map[string]struct{})
	}
	if hidden {
		s.hidden[id] = struct{}{}
	} else {
		delete(s.hidden, id)
	}
	return nil
}

// HiddenIDs implements [Store.HiddenIDs].
func (s *MemStore) HiddenIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.hidden))
	for id := range s.hidden {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Ping implements [Store.Ping]. It always succeeds.
func (s *MemStore) Ping(context.Context) error { return nil }
