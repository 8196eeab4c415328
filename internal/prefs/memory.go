package prefs

import "sync"

// MemoryStore is an in-process Store. It keeps nothing across restarts.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	observers *observerSet
}

// NewMemoryStore creates an empty in-memory preference store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:   make(map[string]*entry),
		observers: newObserverSet(),
	}
}

func (s *MemoryStore) PrefType(name string) PrefType {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v := s.entries[name].effective(); v != nil {
		return v.kind
	}
	return PrefInvalid
}

func (s *MemoryStore) GetString(name, fallback string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.entries[name].effective()
	if v == nil || v.kind != PrefString {
		return fallback
	}
	return v.str
}

func (s *MemoryStore) GetBool(name string, fallback bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.entries[name].effective()
	if v == nil || v.kind != PrefBool {
		return fallback
	}
	return v.b
}

func (s *MemoryStore) SetString(name, v string) error {
	return s.setUser(name, stringValue(v))
}

func (s *MemoryStore) SetBool(name string, v bool) error {
	return s.setUser(name, boolValue(v))
}

func (s *MemoryStore) setUser(name string, v *value) error {
	var lockedErr error
	s.mutate(name, func(e *entry) {
		if e.locked {
			lockedErr = &LockedError{Name: name}
			return
		}
		e.user = v
	})
	return lockedErr
}

func (s *MemoryStore) SetDefaultString(name, v string) error {
	s.mutate(name, func(e *entry) { e.def = stringValue(v) })
	return nil
}

func (s *MemoryStore) ClearUserPref(name string) error {
	s.mutate(name, func(e *entry) { e.user = nil })
	return nil
}

func (s *MemoryStore) IsLocked(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.entries[name]
	return e != nil && e.locked
}

func (s *MemoryStore) Lock(name string) error {
	s.mutate(name, func(e *entry) { e.locked = true })
	return nil
}

func (s *MemoryStore) Unlock(name string) error {
	s.mutate(name, func(e *entry) { e.locked = false })
	return nil
}

func (s *MemoryStore) Observe(name string, fn Observer) func() {
	return s.observers.add(name, fn)
}

// mutate applies fn to the entry for name and notifies observers once the
// lock is released if the effective value changed.
func (s *MemoryStore) mutate(name string, fn func(e *entry)) {
	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok {
		e = &entry{}
	}
	before := e.effective()
	fn(e)
	after := e.effective()
	if e.empty() {
		delete(s.entries, name)
	} else {
		s.entries[name] = e
	}
	s.mu.Unlock()

	if !before.equal(after) {
		s.observers.notify(name)
	}
}
