package restricteddomains

import (
	"fmt"

	"github.com/alex-galey/restricted-domains/internal/prefs"
)

// WriteRestrictedDomains stores a de-duplicated list in the shared
// preference.
//
// The preference can be locked by an enterprise policy. In that case the
// value is written the way the policy engine does it: unlock, write the
// default layer, lock again. Other consumers keep seeing a locked preference.
func WriteRestrictedDomains(store prefs.Store, domains []string) error {
	value := JoinDomainList(domains)

	if !store.IsLocked(RestrictedDomainsPref) {
		if err := store.SetString(RestrictedDomainsPref, value); err != nil {
			return fmt.Errorf("set %s: %w", RestrictedDomainsPref, err)
		}
		return nil
	}

	if err := store.Unlock(RestrictedDomainsPref); err != nil {
		return fmt.Errorf("unlock %s: %w", RestrictedDomainsPref, err)
	}
	writeErr := store.SetDefaultString(RestrictedDomainsPref, value)
	if err := store.Lock(RestrictedDomainsPref); err != nil {
		return fmt.Errorf("relock %s: %w", RestrictedDomainsPref, err)
	}
	if writeErr != nil {
		return fmt.Errorf("set default %s: %w", RestrictedDomainsPref, writeErr)
	}
	return nil
}
