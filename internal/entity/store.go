package entity

import (
	"sync"
)

// Store is the in-memory entity state store.
//
// It is mutated only by inbound remote notifications (ApplyChange) and by
// the initial full dump after (re)connecting (ReplaceAll). Everything else
// reads through Get, which returns copies.
//
// All methods are safe for concurrent use. Change listeners are invoked
// synchronously after the store mutation commits, on the caller's
// goroutine, so a listener observes the store already updated.
type Store struct {
	mu       sync.RWMutex
	entities map[string]Entity

	listenerMu sync.RWMutex
	listeners  []func(StateChange)
}

// NewStore creates an empty entity store.
func NewStore() *Store {
	return &Store{
		entities: make(map[string]Entity),
	}
}

// Get retrieves an entity by ID.
// Returns ErrEntityNotFound if the entity does not exist.
// The returned entity is a copy; callers can safely modify it.
func (s *Store) Get(id string) (Entity, error) {
	s.mu.RLock()
	e, ok := s.entities[id]
	s.mu.RUnlock()

	if !ok {
		return Entity{}, ErrEntityNotFound
	}
	return e.clone(), nil
}

// Set stores an entity snapshot, replacing any previous one.
func (s *Store) Set(e Entity) {
	s.mu.Lock()
	s.entities[e.ID] = e.clone()
	s.mu.Unlock()
}

// ApplyChange applies an inbound state_changed notification.
// A nil NewState removes the entity. Listeners are notified after the
// mutation commits.
func (s *Store) ApplyChange(ch StateChange) {
	s.mu.Lock()
	if ch.NewState == nil {
		delete(s.entities, ch.EntityID)
	} else {
		s.entities[ch.EntityID] = ch.NewState.clone()
	}
	s.mu.Unlock()

	s.notify(ch)
}

// ReplaceAll replaces the entire store contents with the given snapshot.
// Used for the initial get_states dump and after reconnects, when the
// remote view is authoritative for every entity at once.
func (s *Store) ReplaceAll(entities []Entity) {
	fresh := make(map[string]Entity, len(entities))
	for _, e := range entities {
		fresh[e.ID] = e.clone()
	}

	s.mu.Lock()
	s.entities = fresh
	s.mu.Unlock()
}

// Len returns the number of entities in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// Subscribe registers a listener invoked for every applied change.
// Listeners must not block; long work belongs on their own goroutine.
func (s *Store) Subscribe(fn func(StateChange)) {
	s.listenerMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenerMu.Unlock()
}

func (s *Store) notify(ch StateChange) {
	s.listenerMu.RLock()
	listeners := s.listeners
	s.listenerMu.RUnlock()

	for _, fn := range listeners {
		fn(ch)
	}
}
