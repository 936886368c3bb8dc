package formwork

import "sort"

// Observer is notified after every write to a Store.
type Observer interface {
	ValueChanged(id string, value any, deleted bool)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(id string, value any, deleted bool)

func (f ObserverFunc) ValueChanged(id string, value any, deleted bool) { f(id, value, deleted) }

// Store is the single shared mutable map of field values. The host writes user
// input into it one field at a time; the session subscribes and runs a cascade
// per write. Store is not safe for concurrent use.
type Store struct {
	values    map[string]any
	observers map[int]Observer
	nextID    int
}

// NewStore creates a store seeded with a copy of initial.
func NewStore(initial map[string]any) *Store {
	s := &Store{
		values:    make(map[string]any, len(initial)),
		observers: make(map[int]Observer),
	}
	for k, v := range initial {
		s.values[k] = cloneValue(v)
	}
	return s
}

// Get returns the value stored under id.
func (s *Store) Get(id string) (any, bool) {
	v, ok := s.values[id]
	return v, ok
}

// Has reports whether id has an entry, even a nil one.
func (s *Store) Has(id string) bool {
	_, ok := s.values[id]
	return ok
}

// Set writes a value and notifies observers.
func (s *Store) Set(id string, value any) {
	s.values[id] = value
	s.notify(id, value, false)
}

// Delete removes an entry and notifies observers.
func (s *Store) Delete(id string) {
	if _, ok := s.values[id]; !ok {
		return
	}
	delete(s.values, id)
	s.notify(id, nil, true)
}

// Keys returns the stored ids in sorted order.
func (s *Store) Keys() []string {
	return sortedKeys(s.values)
}

// Snapshot returns a deep copy of all values.
func (s *Store) Snapshot() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = cloneValue(v)
	}
	return out
}

// Subscribe registers an observer and returns a function that removes it.
func (s *Store) Subscribe(o Observer) func() {
	id := s.nextID
	s.nextID++
	s.observers[id] = o
	return func() { delete(s.observers, id) }
}

func (s *Store) notify(id string, value any, deleted bool) {
	ids := make([]int, 0, len(s.observers))
	for k := range s.observers {
		ids = append(ids, k)
	}
	sort.Ints(ids)
	for _, k := range ids {
		if o, ok := s.observers[k]; ok {
			o.ValueChanged(id, value, deleted)
		}
	}
}
