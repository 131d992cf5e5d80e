package state

import (
	"fmt"
	"slices"
	"time"
)

// Snapshot is a typed copy of every key.
type Snapshot struct {
	STS           time.Time `json:"sts"`
	ETS           time.Time `json:"ets"`
	Seconds       int64     `json:"seconds"`
	Realtime      bool      `json:"realtime"`
	ByState       bool      `json:"byState"`
	WFOFilter     []string  `json:"wfoFilter"`
	StateFilter   []string  `json:"stateFilter"`
	LSRTypes      []string  `json:"lsrTypes"`
	SBWTypes      []string  `json:"sbwTypes"`
	LayerSettings string    `json:"layerSettings"`
}

// RegionFilter returns the filter selected by ByState.
func (s Snapshot) RegionFilter() []string {
	if s.ByState {
		return s.StateFilter
	}
	return s.WFOFilter
}

// Patch lists the keys to write. Nil fields are left alone; an empty,
// non-nil slice clears a filter.
type Patch struct {
	STS           *time.Time `json:"sts,omitempty"`
	ETS           *time.Time `json:"ets,omitempty"`
	Seconds       *int64     `json:"seconds,omitempty"`
	Realtime      *bool      `json:"realtime,omitempty"`
	ByState       *bool      `json:"byState,omitempty"`
	WFOFilter     []string   `json:"wfoFilter,omitempty"`
	StateFilter   []string   `json:"stateFilter,omitempty"`
	LSRTypes      []string   `json:"lsrTypes,omitempty"`
	SBWTypes      []string   `json:"sbwTypes,omitempty"`
	LayerSettings *string    `json:"layerSettings,omitempty"`
}

// Empty reports whether the patch writes nothing.
func (p Patch) Empty() bool {
	return p.STS == nil && p.ETS == nil && p.Seconds == nil && p.Realtime == nil &&
		p.ByState == nil && p.WFOFilter == nil && p.StateFilter == nil &&
		p.LSRTypes == nil && p.SBWTypes == nil && p.LayerSettings == nil
}

// TouchesWindow reports whether the patch writes sts or ets.
func (p Patch) TouchesWindow() bool {
	return p.STS != nil || p.ETS != nil
}

func (p Patch) updates() (map[Key]any, error) {
	out := make(map[Key]any)
	if p.STS != nil {
		if p.STS.IsZero() {
			return nil, fmt.Errorf("%w: sts is zero", ErrInvalidWindow)
		}
		out[KeySTS] = p.STS.UTC()
	}
	if p.ETS != nil {
		if p.ETS.IsZero() {
			return nil, fmt.Errorf("%w: ets is zero", ErrInvalidWindow)
		}
		out[KeyETS] = p.ETS.UTC()
	}
	if p.Seconds != nil {
		n, err := ValidSeconds(*p.Seconds)
		if err != nil {
			return nil, err
		}
		out[KeySeconds] = n
	}
	if p.Realtime != nil {
		out[KeyRealtime] = *p.Realtime
	}
	if p.ByState != nil {
		out[KeyByState] = *p.ByState
	}
	if p.WFOFilter != nil {
		out[KeyWFOFilter] = slices.Clone(p.WFOFilter)
	}
	if p.StateFilter != nil {
		out[KeyStateFilter] = slices.Clone(p.StateFilter)
	}
	if p.LSRTypes != nil {
		out[KeyLSRTypes] = slices.Clone(p.LSRTypes)
	}
	if p.SBWTypes != nil {
		out[KeySBWTypes] = slices.Clone(p.SBWTypes)
	}
	if p.LayerSettings != nil {
		out[KeyLayerSettings] = *p.LayerSettings
	}
	return out, nil
}

// Snapshot returns a consistent copy of the whole state. An invalid raw
// seconds value is reported as zero.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

// snapshot copies the state. Callers hold mu.
func (s *Store) snapshot() Snapshot {
	seconds, err := ValidSeconds(s.values[KeySeconds])
	if err != nil {
		seconds = 0
	}
	return Snapshot{
		STS:           s.values[KeySTS].(time.Time),
		ETS:           s.values[KeyETS].(time.Time),
		Seconds:       seconds,
		Realtime:      s.values[KeyRealtime].(bool),
		ByState:       s.values[KeyByState].(bool),
		WFOFilter:     slices.Clone(s.values[KeyWFOFilter].([]string)),
		StateFilter:   slices.Clone(s.values[KeyStateFilter].([]string)),
		LSRTypes:      slices.Clone(s.values[KeyLSRTypes].([]string)),
		SBWTypes:      slices.Clone(s.values[KeySBWTypes].([]string)),
		LayerSettings: s.values[KeyLayerSettings].(string),
	}
}

// STS returns the start of the window.
func (s *Store) STS() time.Time { return s.Get(KeySTS).(time.Time) }

// ETS returns the end of the window.
func (s *Store) ETS() time.Time { return s.Get(KeyETS).(time.Time) }

// Realtime reports whether realtime mode is on.
func (s *Store) Realtime() bool { return s.Get(KeyRealtime).(bool) }

// ByState reports whether the state filter governs the region query.
func (s *Store) ByState() bool { return s.Get(KeyByState).(bool) }

// Seconds returns the validated realtime window length.
func (s *Store) Seconds() (int64, error) { return ValidSeconds(s.Get(KeySeconds)) }

// LayerSettings returns the raw settings digit string.
func (s *Store) LayerSettings() string { return s.Get(KeyLayerSettings).(string) }
