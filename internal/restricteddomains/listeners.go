package restricteddomains

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Listener is notified of reconciler events. Returned errors are logged and
// otherwise ignored.
type Listener func(ctx context.Context) error

type listenerRegistration struct {
	id int
	fn Listener
}

// Listeners is a subscription registry. Each listener is isolated: a failing
// or panicking listener does not prevent the others from running.
type Listeners struct {
	name   string
	logger *slog.Logger

	mu     sync.Mutex
	nextID int
	regs   []listenerRegistration
}

// NewListeners creates an empty registry for the named event.
func NewListeners(name string, logger *slog.Logger) *Listeners {
	return &Listeners{name: name, logger: logger}
}

// Add registers fn and returns a function removing it.
func (l *Listeners) Add(fn Listener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	l.regs = append(l.regs, listenerRegistration{id: id, fn: fn})
	return func() { l.remove(id) }
}

func (l *Listeners) remove(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, r := range l.regs {
		if r.id == id {
			l.regs = append(l.regs[:i:i], l.regs[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered listeners.
func (l *Listeners) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.regs)
}

// Notify runs every listener in registration order.
func (l *Listeners) Notify(ctx context.Context) {
	l.mu.Lock()
	regs := make([]listenerRegistration, len(l.regs))
	copy(regs, l.regs)
	l.mu.Unlock()

	for _, r := range regs {
		if err := l.call(ctx, r.fn); err != nil {
			l.logger.Warn("Listener failed",
				"event", l.name,
				"listener", r.id,
				"error", err)
		}
	}
}

func (l *Listeners) call(ctx context.Context, fn Listener) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("listener panicked: %v", p)
		}
	}()
	return fn(ctx)
}
