package prefs

import "strconv"

type value struct {
	kind PrefType
	str  string
	b    bool
}

func stringValue(s string) *value { return &value{kind: PrefString, str: s} }
func boolValue(b bool) *value     { return &value{kind: PrefBool, b: b} }

func (v *value) equal(o *value) bool {
	if v == nil || o == nil {
		return v == o
	}
	return v.kind == o.kind && v.str == o.str && v.b == o.b
}

// encode renders the value for storage backends that keep text columns.
func (v *value) encode() string {
	if v.kind == PrefBool {
		return strconv.FormatBool(v.b)
	}
	return v.str
}

func decodeValue(kind PrefType, raw string) *value {
	switch kind {
	case PrefBool:
		b, _ := strconv.ParseBool(raw)
		return boolValue(b)
	case PrefString:
		return stringValue(raw)
	default:
		return nil
	}
}

// entry holds both layers and the lock state of one preference.
type entry struct {
	user   *value
	def    *value
	locked bool
}

func (e *entry) effective() *value {
	if e == nil {
		return nil
	}
	if e.locked {
		return e.def
	}
	if e.user != nil {
		return e.user
	}
	return e.def
}

func (e *entry) empty() bool {
	return e.user == nil && e.def == nil && !e.locked
}
