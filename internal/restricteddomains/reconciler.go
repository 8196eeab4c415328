// Package restricteddomains keeps the host's shared list of restricted
// domains in sync with the install and enable state of one extension.
//
// The shared list is owned by nobody: enterprise policy, the user and other
// extensions write it too. The reconciler only ever adds its own domains and,
// when it goes away, removes the ones it added. Domains that were already
// restricted before the first activation are recorded once and never removed.
package restricteddomains

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/alex-galey/restricted-domains/internal/prefs"
)

var (
	ErrMissingExtensionID = errors.New("extension id cannot be empty")
	ErrNoDomains          = errors.New("at least one domain is required")
)

// Config identifies the extension and the domains it registers.
type Config struct {
	ExtensionID string
	Domains     []string
}

// Reconciler owns the relationship between the configured domains and the
// shared restricted domains preference.
//
// Lifecycle of the owned preferences:
//   - domainsToPreserve and managedDomains are written on the first enable,
//     read on disable, and cleared once a disable consumed them.
//   - disabled is a user toggle, cleared on uninstall.
type Reconciler struct {
	store       prefs.Store
	extensionID string
	domains     []string
	logger      *slog.Logger
	onEnabled   *Listeners

	preservePref string
	managedPref  string
	disabledPref string

	mu          sync.Mutex
	started     bool
	enabled     bool
	uninstalled bool
	cancels     []func()

	// writing is set while the reconciler writes the shared preference so
	// the change notifications it causes are not treated as external.
	// Notifications seen meanwhile set dirty and are re-checked once the
	// write completes.
	writeMu sync.Mutex
	writing bool
	dirty   bool
}

// NewReconciler creates a reconciler. Nothing is written until OnStartup or
// Enable is called.
func NewReconciler(store prefs.Store, cfg Config, logger *slog.Logger) (*Reconciler, error) {
	if cfg.ExtensionID == "" {
		return nil, ErrMissingExtensionID
	}
	domains := NormalizeDomains(cfg.Domains)
	if len(domains) == 0 {
		return nil, ErrNoDomains
	}

	logger = logger.With("extension", cfg.ExtensionID)
	return &Reconciler{
		store:        store,
		extensionID:  cfg.ExtensionID,
		domains:      domains,
		logger:       logger,
		onEnabled:    NewListeners("enabled", logger),
		preservePref: ScopedPrefName(cfg.ExtensionID, domainsToPreserveName),
		managedPref:  ScopedPrefName(cfg.ExtensionID, managedDomainsName),
		disabledPref: ScopedPrefName(cfg.ExtensionID, disabledName),
	}, nil
}

// ID returns the extension identifier.
func (r *Reconciler) ID() string { return r.extensionID }

// Domains returns the configured domains.
func (r *Reconciler) Domains() []string { return slices.Clone(r.domains) }

// IsDisabled reports the persisted disabled toggle.
func (r *Reconciler) IsDisabled() bool {
	return r.store.GetBool(r.disabledPref, false)
}

// IsInstalled reports whether the extension is installed. It turns false on
// uninstall and true again on the next startup.
func (r *Reconciler) IsInstalled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.uninstalled
}

// OnEnabled registers fn to run each time the extension is enabled again
// after having been disabled.
func (r *Reconciler) OnEnabled(fn Listener) func() {
	return r.onEnabled.Add(fn)
}

// OnStartup starts observing the shared preference and the disabled toggle,
// and registers the domains unless the extension is disabled.
func (r *Reconciler) OnStartup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}
	r.started = true
	r.uninstalled = false
	r.cancels = append(r.cancels,
		r.store.Observe(RestrictedDomainsPref, r.handleRestrictedDomainsChanged),
		r.store.Observe(r.disabledPref, r.handleDisabledChanged),
	)

	if r.IsDisabled() {
		// The toggle may have been set while stopped; drop what an earlier
		// run registered.
		r.logger.Info("Extension started disabled, domains not registered")
		return r.disableLocked()
	}
	return r.enableLocked()
}

// OnShutdown stops observing preferences. The shared preference is left as
// is: shutting down is not uninstalling.
func (r *Reconciler) OnShutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()
	r.enabled = false
	return nil
}

// OnUninstall handles the host's uninstall notification, which is broadcast
// for every extension.
func (r *Reconciler) OnUninstall(ctx context.Context, extensionID string) error {
	if extensionID != r.extensionID {
		return nil
	}
	return r.Uninstall(ctx)
}

// Uninstall removes the domains this extension added and forgets every
// preference it owns, so a reinstall starts from scratch.
func (r *Reconciler) Uninstall(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Observers go first: clearing the disabled toggle must not re-enable.
	r.stopLocked()
	r.uninstalled = true

	err := r.disableLocked()
	if clearErr := r.store.ClearUserPref(r.disabledPref); clearErr != nil {
		err = errors.Join(err, fmt.Errorf("clear %s: %w", r.disabledPref, clearErr))
	}

	if err != nil {
		r.logger.Error("Extension uninstalled with errors", "error", err)
		return err
	}
	r.logger.Info("Extension uninstalled")
	return nil
}

// Enable registers the domains. Listeners run when this re-enables a
// disabled extension.
func (r *Reconciler) Enable(ctx context.Context) error {
	r.mu.Lock()
	wasEnabled := r.enabled
	err := r.enableLocked()
	r.mu.Unlock()

	if err == nil && !wasEnabled {
		r.onEnabled.Notify(ctx)
	}
	return err
}

// Disable removes the domains this extension added. It is a no-op when the
// extension was never enabled.
func (r *Reconciler) Disable(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.disableLocked()
}

// ReconcileOnExternalChange re-adds missing domains when enabled.
func (r *Reconciler) ReconcileOnExternalChange(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled {
		return nil
	}
	return r.ensureRegisteredLocked()
}

// SetDisabled persists the toggle and applies it. While stopped, the toggle
// is applied on the next startup.
func (r *Reconciler) SetDisabled(ctx context.Context, disabled bool) error {
	if err := r.store.SetBool(r.disabledPref, disabled); err != nil {
		return fmt.Errorf("set %s: %w", r.disabledPref, err)
	}
	return r.syncDisabledState(ctx)
}

// syncDisabledState moves the reconciler to the state the toggle asks for.
// Calling it repeatedly is harmless.
func (r *Reconciler) syncDisabledState(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}

	var (
		err      error
		reenable bool
	)
	disabled := r.IsDisabled()
	switch {
	case disabled && r.enabled:
		r.logger.Info("Extension disabled")
		err = r.disableLocked()
	case !disabled && !r.enabled:
		r.logger.Info("Extension enabled")
		err = r.enableLocked()
		reenable = err == nil
	}
	r.mu.Unlock()

	if reenable {
		r.onEnabled.Notify(ctx)
	}
	return err
}

func (r *Reconciler) handleRestrictedDomainsChanged(string) {
	r.writeMu.Lock()
	if r.writing {
		r.dirty = true
		r.writeMu.Unlock()
		return
	}
	r.writeMu.Unlock()

	if err := r.ReconcileOnExternalChange(context.Background()); err != nil {
		r.logger.Error("Failed to reconcile restricted domains", "error", err)
	}
}

func (r *Reconciler) handleDisabledChanged(string) {
	if err := r.syncDisabledState(context.Background()); err != nil {
		r.logger.Error("Failed to apply disabled toggle", "error", err)
	}
}

func (r *Reconciler) stopLocked() {
	for _, cancel := range r.cancels {
		cancel()
	}
	r.cancels = nil
	r.started = false
}

func (r *Reconciler) enableLocked() error {
	current := r.restrictedDomains()

	if r.store.PrefType(r.preservePref) == prefs.PrefInvalid {
		preserve := intersection(r.domains, current)
		if err := r.saveSnapshot(preserve); err != nil {
			return err
		}
		r.logger.Debug("Captured domains to preserve", "domains", preserve)
	} else if err := r.migrateLocked(current); err != nil {
		return err
	}

	r.enabled = true
	return r.ensureRegisteredLocked()
}

// migrateLocked adapts an existing snapshot to a domain list that changed
// since it was captured. New domains that are already restricted belong to
// someone else; dropped domains this extension added are unregistered.
func (r *Reconciler) migrateLocked(current []string) error {
	if r.store.PrefType(r.managedPref) == prefs.PrefInvalid {
		return r.store.SetString(r.managedPref, JoinDomainList(r.domains))
	}

	managed := ParseDomainList(r.store.GetString(r.managedPref, ""))
	if sameDomains(managed, r.domains) {
		return nil
	}

	preserve := r.domainsToPreserve()
	added := difference(r.domains, managed)
	stale := difference(difference(managed, r.domains), preserve)

	r.logger.Info("Domain list changed since last activation",
		"added", added,
		"removed", stale)

	if len(intersection(current, stale)) > 0 {
		if err := r.writeRestrictedDomains(difference(current, stale)); err != nil {
			return err
		}
	}

	preserve = intersection(r.domains, append(preserve, intersection(added, current)...))
	return r.saveSnapshot(preserve)
}

func (r *Reconciler) ensureRegisteredLocked() error {
	current := r.restrictedDomains()
	missing := difference(r.domains, current)
	if len(missing) == 0 {
		return nil
	}

	r.logger.Info("Registering restricted domains", "domains", missing)
	return r.writeRestrictedDomains(append(current, missing...))
}

func (r *Reconciler) disableLocked() error {
	r.enabled = false

	if r.store.PrefType(r.preservePref) == prefs.PrefInvalid {
		r.logger.Debug("Domains were never registered, nothing to remove")
		return nil
	}

	managed := ParseDomainList(r.store.GetString(r.managedPref, ""))
	toRemove := difference(unique(append(slices.Clone(r.domains), managed...)), r.domainsToPreserve())

	current := r.restrictedDomains()
	if len(intersection(current, toRemove)) > 0 {
		r.logger.Info("Unregistering restricted domains", "domains", toRemove)
		if err := r.writeRestrictedDomains(difference(current, toRemove)); err != nil {
			return err
		}
	}

	return errors.Join(
		r.store.ClearUserPref(r.preservePref),
		r.store.ClearUserPref(r.managedPref),
	)
}

func (r *Reconciler) saveSnapshot(preserve []string) error {
	if err := r.store.SetString(r.preservePref, JoinDomainList(preserve)); err != nil {
		return fmt.Errorf("set %s: %w", r.preservePref, err)
	}
	if err := r.store.SetString(r.managedPref, JoinDomainList(r.domains)); err != nil {
		return fmt.Errorf("set %s: %w", r.managedPref, err)
	}
	return nil
}

func (r *Reconciler) domainsToPreserve() []string {
	return ParseDomainList(r.store.GetString(r.preservePref, ""))
}

func (r *Reconciler) restrictedDomains() []string {
	return ParseDomainList(r.store.GetString(RestrictedDomainsPref, ""))
}

// writeRestrictedDomains must be called with mu held.
func (r *Reconciler) writeRestrictedDomains(domains []string) error {
	r.writeMu.Lock()
	r.writing = true
	r.writeMu.Unlock()

	err := WriteRestrictedDomains(r.store, domains)

	r.writeMu.Lock()
	r.writing = false
	dirty := r.dirty
	r.dirty = false
	r.writeMu.Unlock()

	if err != nil {
		return err
	}
	// Another writer may have changed the preference during the write.
	if dirty && r.enabled {
		return r.ensureRegisteredLocked()
	}
	return nil
}
