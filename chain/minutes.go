package chain

import "strconv"

// Minutes is an optional point in time expressed in minutes from the planning origin.
//
// The zero value is Unset. Minutes values are comparable with ==, which the
// propagator relies on for its fixed-point test.
type Minutes struct {
	value int
	set   bool
}

// Unset is the "no time" sentinel.
var Unset = Minutes{}

// At returns a set Minutes value.
func At(v int) Minutes {
	return Minutes{value: v, set: true}
}

// IsSet reports whether the value is set.
func (m Minutes) IsSet() bool {
	return m.set
}

// Value returns the minutes, or 0 when unset.
func (m Minutes) Value() int {
	return m.value
}

// Get returns the minutes and whether they are set.
func (m Minutes) Get() (int, bool) {
	return m.value, m.set
}

// String returns the minutes or "unset".
func (m Minutes) String() string {
	if !m.set {
		return "unset"
	}

	return strconv.Itoa(m.value)
}
