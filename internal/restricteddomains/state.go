package restricteddomains

import "github.com/alex-galey/restricted-domains/internal/prefs"

// State is a read-only view of the reconciler and the preferences it manages.
type State struct {
	ExtensionID         string   `json:"extensionId"`
	Domains             []string `json:"domains"`
	Enabled             bool     `json:"enabled"`
	Disabled            bool     `json:"disabled"`
	Installed           bool     `json:"installed"`
	RestrictedDomains   []string `json:"restrictedDomains"`
	Locked              bool     `json:"locked"`
	SnapshotInitialized bool     `json:"snapshotInitialized"`
	DomainsToPreserve   []string `json:"domainsToPreserve"`
}

// State returns the current state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	enabled := r.enabled
	installed := !r.uninstalled
	r.mu.Unlock()

	return State{
		ExtensionID:         r.extensionID,
		Domains:             r.Domains(),
		Enabled:             enabled,
		Disabled:            r.IsDisabled(),
		Installed:           installed,
		RestrictedDomains:   r.restrictedDomains(),
		Locked:              r.store.IsLocked(RestrictedDomainsPref),
		SnapshotInitialized: r.store.PrefType(r.preservePref) != prefs.PrefInvalid,
		DomainsToPreserve:   r.domainsToPreserve(),
	}
}
