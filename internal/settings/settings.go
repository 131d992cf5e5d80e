// Package settings encodes the dashboard's layer visibility flags into the
// compact digit string carried by the settings URL parameter.
package settings

import "strings"

// Flag is a position in the settings string.
type Flag int

// Flags in their fixed URL order. New flags are only ever appended.
const (
	Radar Flag = iota
	Reports
	Warnings
	Realtime
	States
	Counties
	LabelMode

	// Count is the number of known flags.
	Count int = iota
)

var flagNames = [Count]string{
	"radar",
	"reports",
	"warnings",
	"realtime",
	"states",
	"counties",
	"labelMode",
}

// String returns the flag's short name.
func (f Flag) String() string {
	if f < 0 || int(f) >= Count {
		return "unknown"
	}
	return flagNames[f]
}

// Vector holds one value per flag, indexed by Flag.
type Vector [Count]bool

// Encode emits one '1' or '0' per flag in the fixed order.
func Encode(v Vector) string {
	var b strings.Builder
	b.Grow(Count)
	for _, on := range v {
		if on {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Decode applies s positionally on top of prior. Positions past the end of s
// keep their prior value so that older, shorter strings stay valid when a
// trailing flag is added. Characters beyond Count are ignored.
func Decode(s string, prior Vector) Vector {
	v := prior
	for i := 0; i < len(s) && i < Count; i++ {
		v[i] = s[i] == '1'
	}
	return v
}

// Value reports the value of f in s and whether s is long enough to carry it.
func Value(s string, f Flag) (on bool, ok bool) {
	if f < 0 || int(f) >= Count || int(f) >= len(s) {
		return false, false
	}
	return s[f] == '1', true
}

// WithFlag returns s with position f rewritten to on. A string too short to
// carry f is returned unchanged.
func WithFlag(s string, f Flag, on bool) string {
	if f < 0 || int(f) >= Count || int(f) >= len(s) {
		return s
	}
	c := byte('0')
	if on {
		c = '1'
	}
	if s[f] == c {
		return s
	}
	b := []byte(s)
	b[f] = c
	return string(b)
}
