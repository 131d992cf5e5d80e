// Package state holds the dashboard's process-wide application state: the
// time window, region filters, layer settings and realtime mode, plus the
// subscriptions widgets use to mirror it.
package state

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

var (
	// ErrInvalidValue is returned when a value has the wrong type for its key.
	ErrInvalidValue = errors.New("invalid state value")
	// ErrInvalidWindow is returned when a write would leave sts after ets.
	ErrInvalidWindow = errors.New("invalid time window")
	// ErrInvalidSeconds is returned for a relative window that is not a
	// positive number of seconds.
	ErrInvalidSeconds = errors.New("invalid seconds")
)

// Subscriber receives the new value of the key it was registered for.
type Subscriber func(value any)

// Store is a keyed container with change notifications. Writes are
// committed under a lock; subscribers run afterwards on the writing
// goroutine, in registration order, so they may read the store freely.
type Store struct {
	mu     sync.RWMutex
	values map[Key]any
	subs   map[Key][]Subscriber
}

// New returns a store holding the defaults: a 24 hour window ending at now,
// realtime off and empty filters.
func New(now time.Time) *Store {
	now = now.UTC()
	return &Store{
		values: map[Key]any{
			KeySTS:           now.Add(-DefaultWindow),
			KeyETS:           now,
			KeySeconds:       DefaultSeconds,
			KeyRealtime:      false,
			KeyByState:       false,
			KeyWFOFilter:     []string{},
			KeyStateFilter:   []string{},
			KeyLSRTypes:      []string{},
			KeySBWTypes:      []string{},
			KeyLayerSettings: "",
		},
		subs: make(map[Key][]Subscriber),
	}
}

// Get returns the current value of key, or nil for an unknown key.
func (s *Store) Get(key Key) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.values[key])
}

// Set replaces the value of key and notifies its subscribers when the value
// changed. An empty or unknown key is ignored. Moving sts past ets, or ets
// before sts, drags the other bound along so the window stays ordered.
func (s *Store) Set(key Key, value any) error {
	if !key.Valid() {
		return nil
	}
	if err := checkType(key, value); err != nil {
		return err
	}
	if t, ok := value.(time.Time); ok {
		value = t.UTC()
	}

	s.mu.Lock()
	var changed []Key
	if s.commit(key, value) {
		changed = append(changed, key)
	}
	if t, ok := value.(time.Time); ok {
		switch key {
		case KeySTS:
			if t.After(s.values[KeyETS].(time.Time)) && s.commit(KeyETS, t) {
				changed = append(changed, KeyETS)
			}
		case KeyETS:
			if t.Before(s.values[KeySTS].(time.Time)) && s.commit(KeySTS, t) {
				changed = append([]Key{KeySTS}, changed...)
			}
		}
	}
	calls := s.pending(changed)
	s.mu.Unlock()

	calls.run()
	return nil
}

// Subscribe registers fn for changes to key. Subscribers of one key are
// invoked in registration order. Nil callbacks and unknown keys are ignored.
func (s *Store) Subscribe(key Key, fn Subscriber) {
	if fn == nil || !key.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[key] = append(s.subs[key], fn)
}

// SetWindow commits sts and ets together. Both are validated before either
// is written.
func (s *Store) SetWindow(sts, ets time.Time) error {
	return s.ApplyPatch(Patch{STS: &sts, ETS: &ets})
}

// ApplyPatch writes every field present in p. The whole patch is validated
// first; on error nothing is written.
func (s *Store) ApplyPatch(p Patch) error {
	updates, err := p.updates()
	if err != nil {
		return err
	}

	s.mu.Lock()
	sts := s.values[KeySTS].(time.Time)
	ets := s.values[KeyETS].(time.Time)
	if p.STS != nil {
		sts = p.STS.UTC()
	}
	if p.ETS != nil {
		ets = p.ETS.UTC()
	}
	if sts.After(ets) {
		s.mu.Unlock()
		return fmt.Errorf("%w: sts %s is after ets %s", ErrInvalidWindow,
			sts.Format(time.RFC3339), ets.Format(time.RFC3339))
	}

	var changed []Key
	for _, key := range allKeys {
		value, ok := updates[key]
		if !ok {
			continue
		}
		if s.commit(key, value) {
			changed = append(changed, key)
		}
	}
	calls := s.pending(changed)
	s.mu.Unlock()

	calls.run()
	return nil
}

// SlideWindow moves the window to [now-seconds, now] when realtime is on.
// The realtime check and the write happen under one lock, so a concurrent
// write that turns realtime off is never overwritten. It reports whether the
// window was slid; with realtime off it returns false and writes nothing.
func (s *Store) SlideWindow(now time.Time) (Snapshot, bool, error) {
	s.mu.Lock()
	if !s.values[KeyRealtime].(bool) {
		snap := s.snapshot()
		s.mu.Unlock()
		return snap, false, nil
	}
	seconds, err := ValidSeconds(s.values[KeySeconds])
	if err != nil {
		snap := s.snapshot()
		s.mu.Unlock()
		return snap, false, err
	}

	ets := now.UTC()
	sts := ets.Add(-time.Duration(seconds) * time.Second)
	var changed []Key
	if s.commit(KeySTS, sts) {
		changed = append(changed, KeySTS)
	}
	if s.commit(KeyETS, ets) {
		changed = append(changed, KeyETS)
	}
	snap := s.snapshot()
	calls := s.pending(changed)
	s.mu.Unlock()

	calls.run()
	return snap, true, nil
}

// commit stores value and reports whether it differed. Callers hold mu.
func (s *Store) commit(key Key, value any) bool {
	if equal(s.values[key], value) {
		return false
	}
	s.values[key] = clone(value)
	return true
}

type call struct {
	fn    Subscriber
	value any
}

type calls []call

func (c calls) run() {
	for _, cl := range c {
		cl.fn(cl.value)
	}
}

// pending snapshots the subscriber calls for the changed keys. Callers hold mu.
func (s *Store) pending(changed []Key) calls {
	var out calls
	for _, key := range changed {
		for _, fn := range s.subs[key] {
			out = append(out, call{fn: fn, value: clone(s.values[key])})
		}
	}
	return out
}

func equal(a, b any) bool {
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case []string:
		y, ok := b.([]string)
		return ok && slices.Equal(x, y)
	}
	if _, ok := b.([]string); ok {
		return false
	}
	return a == b
}

func clone(v any) any {
	if list, ok := v.([]string); ok {
		return slices.Clone(list)
	}
	return v
}
