// Package prefs models the host preference service: a string/bool key-value
// store with a user layer, a default layer, administrative locks and change
// observers.
package prefs

// PrefType describes the kind of value stored under a preference name.
type PrefType int

const (
	PrefInvalid PrefType = iota
	PrefString
	PrefBool
)

func (t PrefType) String() string {
	switch t {
	case PrefString:
		return "string"
	case PrefBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Observer is called with the preference name after its effective value changed.
type Observer func(name string)

// Store is the preference service used by extensions.
//
// A preference has a user value and a default value. The effective value is
// the default value while the preference is locked, otherwise the user value
// when one is set, otherwise the default value.
type Store interface {
	// PrefType returns the kind of the effective value, PrefInvalid if unset.
	PrefType(name string) PrefType

	GetString(name, fallback string) string
	GetBool(name string, fallback bool) bool

	// SetString writes the user layer. It fails with ErrPrefLocked when the
	// preference is locked.
	SetString(name, value string) error
	SetBool(name string, value bool) error

	// SetDefaultString writes the default layer.
	SetDefaultString(name, value string) error

	// ClearUserPref removes the user value. Clearing an absent value is a no-op.
	ClearUserPref(name string) error

	IsLocked(name string) bool
	Lock(name string) error
	Unlock(name string) error

	// Observe registers fn for changes of name and returns a function that
	// removes the registration.
	Observe(name string, fn Observer) (cancel func())
}
