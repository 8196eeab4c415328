package prefs

import (
	"errors"
	"fmt"
)

// ErrPrefLocked is returned when writing the user layer of a locked preference.
var ErrPrefLocked = errors.New("preference is locked")

// LockedError carries the name of the locked preference.
type LockedError struct {
	Name string
}

func (e *LockedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Name, ErrPrefLocked)
}

func (e *LockedError) Unwrap() error { return ErrPrefLocked }

// IsLockedError returns true when err is (or wraps) a locked preference error.
func IsLockedError(err error) bool {
	if err == nil {
		return false
	}
	var le *LockedError
	if errors.As(err, &le) {
		return true
	}
	return errors.Is(err, ErrPrefLocked)
}
