package notifier

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNoWindow is returned when a tab is created while no window is open.
var ErrNoWindow = errors.New("no browser window is open")

// Bridge is an in-memory host. Tab events and notification clicks are fed to
// it by a remote client; it records what the notifier asked the host to do.
type Bridge struct {
	mu            sync.Mutex
	nextTabID     int
	windows       int
	tabs          map[int]Tab
	notifications map[string]Notification
	opened        []string
}

// NewBridge creates a bridge with the given number of open windows.
func NewBridge(windows int) *Bridge {
	return &Bridge{
		windows:       windows,
		tabs:          make(map[int]Tab),
		notifications: make(map[string]Notification),
	}
}

// ReportTab records a tab update and returns the stored tab. A zero ID
// allocates a new tab.
func (b *Bridge) ReportTab(tab Tab) Tab {
	b.mu.Lock()
	defer b.mu.Unlock()

	if tab.ID == 0 {
		b.nextTabID++
		tab.ID = b.nextTabID
	} else if tab.ID > b.nextTabID {
		b.nextTabID = tab.ID
	}
	b.tabs[tab.ID] = tab
	return tab
}

// CloseWindows simulates a host running without any window.
func (b *Bridge) CloseWindows() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.windows = 0
}

func (b *Bridge) Query(ctx context.Context, patterns []string) ([]Tab, error) {
	matcher, err := NewMatcher(patterns)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Tab
	for _, tab := range b.tabs {
		if matcher.Match(tab.URL) {
			out = append(out, tab)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *Bridge) Create(ctx context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.windows == 0 {
		return ErrNoWindow
	}
	b.openLocked(url)
	return nil
}

// Windows returns the window service of the bridge.
func (b *Bridge) Windows() Windows { return bridgeWindows{b} }

type bridgeWindows struct{ b *Bridge }

func (w bridgeWindows) Create(ctx context.Context, url string) error {
	w.b.mu.Lock()
	defer w.b.mu.Unlock()

	w.b.windows++
	w.b.openLocked(url)
	return nil
}

func (b *Bridge) openLocked(url string) {
	b.nextTabID++
	b.tabs[b.nextTabID] = Tab{ID: b.nextTabID, URL: url, Status: TabStatusComplete}
	b.opened = append(b.opened, url)
}

// Notifications returns the notification service of the bridge.
func (b *Bridge) Notifications() Notifications { return bridgeNotifications{b} }

type bridgeNotifications struct{ b *Bridge }

func (n bridgeNotifications) Create(ctx context.Context, id string, notification Notification) error {
	n.b.mu.Lock()
	defer n.b.mu.Unlock()
	n.b.notifications[id] = notification
	return nil
}

func (n bridgeNotifications) Clear(ctx context.Context, id string) error {
	n.b.mu.Lock()
	defer n.b.mu.Unlock()
	delete(n.b.notifications, id)
	return nil
}

// ActiveNotifications returns the notifications currently shown, by id.
func (b *Bridge) ActiveNotifications() map[string]Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]Notification, len(b.notifications))
	for id, n := range b.notifications {
		out[id] = n
	}
	return out
}

// Opened returns the URLs opened on behalf of the notifier.
func (b *Bridge) Opened() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.opened...)
}

// WindowCount returns the number of open windows.
func (b *Bridge) WindowCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.windows
}
