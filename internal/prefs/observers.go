package prefs

import "sync"

type registration struct {
	id int
	fn Observer
}

// observerSet keeps observers per preference name in registration order.
type observerSet struct {
	mu     sync.Mutex
	nextID int
	byName map[string][]registration
}

func newObserverSet() *observerSet {
	return &observerSet{byName: make(map[string][]registration)}
}

func (s *observerSet) add(name string, fn Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.byName[name] = append(s.byName[name], registration{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(name, id) })
	}
}

func (s *observerSet) remove(name string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	regs := s.byName[name]
	for i, r := range regs {
		if r.id == id {
			s.byName[name] = append(regs[:i:i], regs[i+1:]...)
			break
		}
	}
	if len(s.byName[name]) == 0 {
		delete(s.byName, name)
	}
}

// notify calls every observer of name. It must be called without holding the
// store lock so observers can write preferences.
func (s *observerSet) notify(name string) {
	s.mu.Lock()
	regs := make([]registration, len(s.byName[name]))
	copy(regs, s.byName[name])
	s.mu.Unlock()

	for _, r := range regs {
		r.fn(name)
	}
}
