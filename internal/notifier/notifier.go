// Package notifier tells the user, once per domain and session, that
// add-ons are restricted on a site they have open.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/alex-galey/restricted-domains/internal/i18n"
	"github.com/alex-galey/restricted-domains/internal/restricteddomains"
)

// DomainSource is the part of the reconciler the notifier depends on.
type DomainSource interface {
	Domains() []string
	IsDisabled() bool
	IsInstalled() bool
	OnEnabled(fn restricteddomains.Listener) func()
}

// Config holds the notifier settings.
type Config struct {
	HelpURL string
	Locale  string
}

// NotificationID returns the notification id used for domain.
func NotificationID(domain string) string {
	return "user-notification-" + domain
}

// Notifier shows restricted domain notifications.
type Notifier struct {
	source        DomainSource
	tabs          Tabs
	windows       Windows
	notifications Notifications
	catalog       *i18n.Catalog
	cfg           Config
	logger        *slog.Logger
	matcher       *Matcher

	mu          sync.Mutex
	notified    []string
	unsubscribe func()
}

// New creates a notifier for the domains of source.
func New(source DomainSource, tabs Tabs, windows Windows, notifications Notifications, catalog *i18n.Catalog, cfg Config, logger *slog.Logger) (*Notifier, error) {
	if cfg.HelpURL == "" {
		return nil, errors.New("help url cannot be empty")
	}
	if cfg.Locale == "" {
		cfg.Locale = i18n.BaseLocale
	}

	matcher, err := NewMatcher(MatchPatterns(source.Domains()))
	if err != nil {
		return nil, err
	}

	return &Notifier{
		source:        source,
		tabs:          tabs,
		windows:       windows,
		notifications: notifications,
		catalog:       catalog,
		cfg:           cfg,
		logger:        logger,
		matcher:       matcher,
	}, nil
}

// Start checks the tabs that are already open, then re-checks them every
// time the extension is enabled again.
func (n *Notifier) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.unsubscribe == nil {
		n.unsubscribe = n.source.OnEnabled(n.notifyOnExistingTabs)
	}
	n.mu.Unlock()

	if n.source.IsDisabled() {
		n.logger.Debug("Extension disabled, skipping open tabs")
		return nil
	}
	return n.notifyOnExistingTabs(ctx)
}

// Stop stops reacting to enable events.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.unsubscribe != nil {
		n.unsubscribe()
		n.unsubscribe = nil
	}
}

// HandleTabUpdated notifies for tabs that finished loading a restricted
// domain.
func (n *Notifier) HandleTabUpdated(ctx context.Context, tab Tab) error {
	if tab.Status != TabStatusComplete || !n.matcher.Match(tab.URL) {
		return nil
	}
	if !n.active() {
		return nil
	}

	domain, err := Hostname(tab.URL)
	if err != nil {
		return err
	}
	return n.showNotification(ctx, domain)
}

// HandleNotificationClicked opens the help page and clears the notification.
// When no tab can be created, typically because the host has no window
// open, a new window is opened instead.
func (n *Notifier) HandleNotificationClicked(ctx context.Context, id string) error {
	if err := n.tabs.Create(ctx, n.cfg.HelpURL); err != nil {
		n.logger.Debug("Failed to open help page in a tab, opening a window", "error", err)
		if err := n.windows.Create(ctx, n.cfg.HelpURL); err != nil {
			return fmt.Errorf("open help page: %w", err)
		}
	}

	if err := n.notifications.Clear(ctx, id); err != nil {
		n.logger.Warn("Failed to clear notification", "notification", id, "error", err)
	}
	return nil
}

// Notified returns the domains already notified in this session.
func (n *Notifier) Notified() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string{}, n.notified...)
}

// active reports whether the domains are currently restricted by the
// extension.
func (n *Notifier) active() bool {
	return n.source.IsInstalled() && !n.source.IsDisabled()
}

func (n *Notifier) notifyOnExistingTabs(ctx context.Context) error {
	if !n.source.IsInstalled() {
		return nil
	}
	tabs, err := n.tabs.Query(ctx, n.matcher.Patterns())
	if err != nil {
		return fmt.Errorf("query tabs: %w", err)
	}

	var domains []string
	for _, tab := range tabs {
		domain, err := Hostname(tab.URL)
		if err != nil {
			n.logger.Debug("Ignoring tab without host", "tab", tab.ID, "error", err)
			continue
		}
		if !slices.Contains(domains, domain) {
			domains = append(domains, domain)
		}
	}

	var errs []error
	for _, domain := range domains {
		if err := n.showNotification(ctx, domain); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) showNotification(ctx context.Context, domain string) error {
	n.mu.Lock()
	if slices.Contains(n.notified, domain) {
		n.mu.Unlock()
		return nil
	}
	n.notified = append(n.notified, domain)
	n.mu.Unlock()

	printer := n.catalog.Printer(n.cfg.Locale)
	notification := Notification{
		Type:    "basic",
		Title:   printer.Sprintf(i18n.MsgNotificationTitle),
		Message: printer.Sprintf(i18n.MsgNotificationMessage, domain),
	}

	n.logger.Info("Showing restricted domain notification", "domain", domain)
	if err := n.notifications.Create(ctx, NotificationID(domain), notification); err != nil {
		return fmt.Errorf("create notification for %s: %w", domain, err)
	}
	return nil
}
