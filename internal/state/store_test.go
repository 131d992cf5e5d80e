package state

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"
)

var testNow = time.Date(2025, 11, 24, 12, 0, 0, 0, time.UTC)

func TestNewDefaults(t *testing.T) {
	s := New(testNow)

	if !s.ETS().Equal(testNow) {
		t.Errorf("ets = %v, want %v", s.ETS(), testNow)
	}
	if want := testNow.Add(-24 * time.Hour); !s.STS().Equal(want) {
		t.Errorf("sts = %v, want %v", s.STS(), want)
	}
	if s.Realtime() {
		t.Error("realtime should default to false")
	}
	if s.ByState() {
		t.Error("byState should default to false")
	}
	if n, err := s.Seconds(); err != nil || n != DefaultSeconds {
		t.Errorf("seconds = %d, %v; want %d", n, err, DefaultSeconds)
	}
	if got := s.Get(KeyWFOFilter).([]string); len(got) != 0 {
		t.Errorf("wfoFilter = %v, want empty", got)
	}
}

func TestSetNotifiesInOrder(t *testing.T) {
	s := New(testNow)
	var got []string

	s.Subscribe(KeyRealtime, func(v any) { got = append(got, "first") })
	s.Subscribe(KeyRealtime, func(v any) {
		if v != true {
			t.Errorf("subscriber got %v, want true", v)
		}
		got = append(got, "second")
	})

	if err := s.Set(KeyRealtime, true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !slices.Equal(got, []string{"first", "second"}) {
		t.Errorf("notification order = %v", got)
	}
}

func TestSetUnchangedDoesNotNotify(t *testing.T) {
	s := New(testNow)
	calls := 0
	s.Subscribe(KeyWFOFilter, func(any) { calls++ })

	_ = s.Set(KeyWFOFilter, []string{"DMX"})
	_ = s.Set(KeyWFOFilter, []string{"DMX"})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestSetUnknownKeyIsNoop(t *testing.T) {
	s := New(testNow)
	before := s.Snapshot()

	if err := s.Set("", "x"); err != nil {
		t.Errorf("Set(\"\") = %v, want nil", err)
	}
	if err := s.Set(Key("bogus"), 1); err != nil {
		t.Errorf("Set(bogus) = %v, want nil", err)
	}
	if s.Get(Key("bogus")) != nil {
		t.Error("unknown key should read as nil")
	}
	after := s.Snapshot()
	if !after.STS.Equal(before.STS) || after.Realtime != before.Realtime {
		t.Error("unknown key write changed state")
	}
}

func TestSetWrongType(t *testing.T) {
	s := New(testNow)
	if err := s.Set(KeyRealtime, "yes"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Set(realtime, string) = %v, want ErrInvalidValue", err)
	}
	if err := s.Set(KeySTS, time.Time{}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Set(sts, zero) = %v, want ErrInvalidValue", err)
	}
	if s.Realtime() {
		t.Error("rejected write changed realtime")
	}
}

func TestSetDragsOtherBound(t *testing.T) {
	s := New(testNow)
	later := testNow.Add(2 * time.Hour)

	if err := s.Set(KeySTS, later); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !s.ETS().Equal(later) {
		t.Errorf("ets = %v, want dragged to %v", s.ETS(), later)
	}

	earlier := testNow.Add(-48 * time.Hour)
	if err := s.Set(KeyETS, earlier); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !s.STS().Equal(earlier) {
		t.Errorf("sts = %v, want dragged to %v", s.STS(), earlier)
	}
}

func TestSetWindowValidatesBeforeCommit(t *testing.T) {
	s := New(testNow)
	notified := false
	s.Subscribe(KeySTS, func(any) { notified = true })
	s.Subscribe(KeyETS, func(any) { notified = true })

	err := s.SetWindow(testNow, testNow.Add(-time.Hour))
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("SetWindow = %v, want ErrInvalidWindow", err)
	}
	if notified {
		t.Error("invalid window notified subscribers")
	}
	if !s.ETS().Equal(testNow) || !s.STS().Equal(testNow.Add(-24*time.Hour)) {
		t.Error("invalid window was partially written")
	}

	sts := testNow.Add(-4 * time.Hour)
	if err := s.SetWindow(sts, testNow); err != nil {
		t.Fatalf("SetWindow: %v", err)
	}
	if !s.STS().Equal(sts) {
		t.Errorf("sts = %v, want %v", s.STS(), sts)
	}
}

func TestApplyPatchRejectsBadSeconds(t *testing.T) {
	s := New(testNow)
	bad := int64(-5)
	on := true
	err := s.ApplyPatch(Patch{Seconds: &bad, Realtime: &on})
	if !errors.Is(err, ErrInvalidSeconds) {
		t.Fatalf("ApplyPatch = %v, want ErrInvalidSeconds", err)
	}
	if s.Realtime() {
		t.Error("rejected patch still enabled realtime")
	}
}

func TestInactiveFilterIsKept(t *testing.T) {
	s := New(testNow)
	_ = s.Set(KeyWFOFilter, []string{"DMX", "OAX"})
	_ = s.Set(KeyByState, true)

	snap := s.Snapshot()
	if !slices.Equal(snap.WFOFilter, []string{"DMX", "OAX"}) {
		t.Errorf("wfoFilter = %v, want kept", snap.WFOFilter)
	}
	if len(snap.RegionFilter()) != 0 {
		t.Errorf("RegionFilter = %v, want state filter (empty)", snap.RegionFilter())
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := New(testNow)
	_ = s.Set(KeyLSRTypes, []string{"T", "H"})
	got := s.Get(KeyLSRTypes).([]string)
	got[0] = "X"
	if s.Get(KeyLSRTypes).([]string)[0] != "T" {
		t.Error("Get exposed internal slice")
	}
}

func TestSubscriberMayReadStore(t *testing.T) {
	s := New(testNow)
	var seen time.Time
	s.Subscribe(KeyETS, func(any) { seen = s.STS() })

	sts := testNow.Add(-time.Hour)
	ets := testNow.Add(time.Hour)
	if err := s.SetWindow(sts, ets); err != nil {
		t.Fatalf("SetWindow: %v", err)
	}
	if !seen.Equal(sts) {
		t.Errorf("subscriber saw sts %v, want %v", seen, sts)
	}
}

func TestValidSeconds(t *testing.T) {
	tests := []struct {
		in      any
		want    int64
		wantErr bool
	}{
		{int64(14400), 14400, false},
		{3600, 3600, false},
		{"900", 900, false},
		{1.5e3, 1500, false},
		{0, 0, true},
		{-5, 0, true},
		{"abc", 0, true},
		{true, 0, true},
		{nil, 0, true},
		{MaxSeconds, MaxSeconds, false},
		{MaxSeconds + 1, 0, true},
		{int64(math.MaxInt64), 0, true},
		{int64(math.MinInt64), 0, true},
		{"10000000000", 0, true},
		{1e300, 0, true},
	}
	for _, tt := range tests {
		got, err := ValidSeconds(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidSeconds(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidSeconds) {
			t.Errorf("ValidSeconds(%v) error = %v, want ErrInvalidSeconds", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ValidSeconds(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSlideWindow(t *testing.T) {
	s := New(testNow.Add(-72 * time.Hour))
	_ = s.Set(KeyRealtime, true)
	_ = s.Set(KeySeconds, int64(3600))

	var notified []Key
	s.Subscribe(KeySTS, func(any) { notified = append(notified, KeySTS) })
	s.Subscribe(KeyETS, func(any) { notified = append(notified, KeyETS) })

	snap, slid, err := s.SlideWindow(testNow)
	if err != nil || !slid {
		t.Fatalf("SlideWindow = %v, %v", slid, err)
	}
	if !snap.ETS.Equal(testNow) || !snap.STS.Equal(testNow.Add(-time.Hour)) {
		t.Errorf("window = %v..%v", snap.STS, snap.ETS)
	}
	if !slices.Equal(notified, []Key{KeySTS, KeyETS}) {
		t.Errorf("notified = %v", notified)
	}
}

func TestSlideWindowRealtimeOff(t *testing.T) {
	s := New(testNow)
	before := s.Snapshot()
	snap, slid, err := s.SlideWindow(testNow.Add(time.Hour))
	if err != nil || slid {
		t.Fatalf("SlideWindow = %v, %v, want no slide", slid, err)
	}
	if !snap.ETS.Equal(before.ETS) || !s.ETS().Equal(before.ETS) {
		t.Errorf("ets moved to %v", s.ETS())
	}
}

func TestSlideWindowInvalidSeconds(t *testing.T) {
	s := New(testNow)
	_ = s.Set(KeyRealtime, true)
	_ = s.Set(KeySeconds, "abc")
	if _, slid, err := s.SlideWindow(testNow.Add(time.Hour)); slid || !errors.Is(err, ErrInvalidSeconds) {
		t.Errorf("SlideWindow = %v, %v, want ErrInvalidSeconds", slid, err)
	}
	if !s.ETS().Equal(testNow) {
		t.Errorf("ets moved to %v", s.ETS())
	}
}
