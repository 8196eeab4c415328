package notifier

import "context"

// TabStatusComplete is the status of a tab that finished loading.
const TabStatusComplete = "complete"

// Tab is a browser tab as reported by the host.
type Tab struct {
	ID     int    `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// Notification is a basic user notification.
type Notification struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Tabs is the host's tab service.
type Tabs interface {
	// Query returns the tabs whose URL matches one of the match patterns.
	Query(ctx context.Context, patterns []string) ([]Tab, error)
	// Create opens url in a new tab of the current window.
	Create(ctx context.Context, url string) error
}

// Windows is the host's window service.
type Windows interface {
	// Create opens url in a new top-level window.
	Create(ctx context.Context, url string) error
}

// Notifications is the host's notification service.
type Notifications interface {
	Create(ctx context.Context, id string, n Notification) error
	Clear(ctx context.Context, id string) error
}
