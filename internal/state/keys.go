package state

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Key names one entry of the application state.
type Key string

// The enumerated set of state keys. The string values double as the JSON
// field names used by the dashboard API.
const (
	KeySTS           Key = "sts"
	KeyETS           Key = "ets"
	KeySeconds       Key = "seconds"
	KeyRealtime      Key = "realtime"
	KeyByState       Key = "byState"
	KeyWFOFilter     Key = "wfoFilter"
	KeyStateFilter   Key = "stateFilter"
	KeyLSRTypes      Key = "lsrTypes"
	KeySBWTypes      Key = "sbwTypes"
	KeyLayerSettings Key = "layerSettings"
)

var allKeys = []Key{
	KeySTS,
	KeyETS,
	KeySeconds,
	KeyRealtime,
	KeyByState,
	KeyWFOFilter,
	KeyStateFilter,
	KeyLSRTypes,
	KeySBWTypes,
	KeyLayerSettings,
}

// Keys returns every known key in notification order.
func Keys() []Key {
	out := make([]Key, len(allKeys))
	copy(out, allKeys)
	return out
}

// Valid reports whether k is one of the known keys.
func (k Key) Valid() bool {
	for _, known := range allKeys {
		if k == known {
			return true
		}
	}
	return false
}

// Default window and relative duration.
const (
	DefaultWindow  = 24 * time.Hour
	DefaultSeconds = int64(DefaultWindow / time.Second)

	// MaxSeconds is the longest window a time.Duration can hold.
	MaxSeconds = int64(math.MaxInt64 / time.Second)
)

// ValidSeconds normalizes a raw seconds value to a positive whole number of
// seconds. Accepted inputs are the integer kinds, finite floats and decimal
// strings. Anything else, anything <= 0 and anything above MaxSeconds is an
// error.
func ValidSeconds(v any) (int64, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("%w: %v is not finite", ErrInvalidSeconds, x)
		}
		if x > float64(MaxSeconds) {
			return 0, fmt.Errorf("%w: %v is longer than %d", ErrInvalidSeconds, x, MaxSeconds)
		}
		n = int64(x)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidSeconds, x)
		}
		n = parsed
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidSeconds, v)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %d is not positive", ErrInvalidSeconds, n)
	}
	if n > MaxSeconds {
		return 0, fmt.Errorf("%w: %d is longer than %d", ErrInvalidSeconds, n, MaxSeconds)
	}
	return n, nil
}

// checkType verifies that value has the Go type the key stores.
func checkType(key Key, value any) error {
	ok := false
	switch key {
	case KeySTS, KeyETS:
		t, isTime := value.(time.Time)
		ok = isTime && !t.IsZero()
	case KeySeconds:
		switch value.(type) {
		case int, int32, int64, float64, string:
			ok = true
		}
	case KeyRealtime, KeyByState:
		_, ok = value.(bool)
	case KeyWFOFilter, KeyStateFilter, KeyLSRTypes, KeySBWTypes:
		_, ok = value.([]string)
	case KeyLayerSettings:
		_, ok = value.(string)
	}
	if !ok {
		return fmt.Errorf("%w: %T for key %s", ErrInvalidValue, value, key)
	}
	return nil
}
