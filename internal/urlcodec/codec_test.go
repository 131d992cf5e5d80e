package urlcodec

import (
	"net/url"
	"slices"
	"testing"
	"time"

	"github.com/Zachdehooge/lsr-dashboard/internal/settings"
	"github.com/Zachdehooge/lsr-dashboard/internal/state"
)

var now = time.Date(2025, 11, 24, 12, 0, 0, 0, time.UTC)

func mustQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	q, err := url.ParseQuery(raw)
	if err != nil {
		t.Fatalf("ParseQuery(%q): %v", raw, err)
	}
	return q
}

func TestDecodeAbsoluteWindow(t *testing.T) {
	p := Decode(mustQuery(t, "by=wfo&wfo=DMX,OAX&sts=202501010000&ets=202501020130&settings=1010101"), now)

	if len(p.Problems) != 0 {
		t.Fatalf("unexpected problems: %v", p.Problems)
	}
	if want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC); !p.STS.Equal(want) {
		t.Errorf("sts = %v, want %v", *p.STS, want)
	}
	if want := time.Date(2025, 1, 2, 1, 30, 0, 0, time.UTC); !p.ETS.Equal(want) {
		t.Errorf("ets = %v, want %v", *p.ETS, want)
	}
	if *p.Realtime {
		t.Error("absolute window should not enable realtime")
	}
	if *p.ByState {
		t.Error("by=wfo decoded as byState")
	}
	if !slices.Equal(p.WFOFilter, []string{"DMX", "OAX"}) {
		t.Errorf("wfoFilter = %v", p.WFOFilter)
	}
	if p.StateFilter != nil {
		t.Errorf("stateFilter = %v, want untouched", p.StateFilter)
	}
	if p.LayerSettings == nil || *p.LayerSettings != "1010101" {
		t.Errorf("layerSettings = %v, want 1010101", p.LayerSettings)
	}
}

func TestDecodeRelativeWindow(t *testing.T) {
	for _, raw := range []string{"seconds=14400", "seconds=-14400"} {
		p := Decode(mustQuery(t, raw), now)
		if !*p.Realtime {
			t.Errorf("%s: realtime not enabled", raw)
		}
		if p.Seconds == nil || *p.Seconds != 14400 {
			t.Errorf("%s: seconds = %v, want 14400", raw, p.Seconds)
		}
		if !p.ETS.Equal(now) {
			t.Errorf("%s: ets = %v, want now", raw, *p.ETS)
		}
		if want := now.Add(-4 * time.Hour); !p.STS.Equal(want) {
			t.Errorf("%s: sts = %v, want %v", raw, *p.STS, want)
		}
	}
}

func TestDecodeAbsoluteWinsOverSeconds(t *testing.T) {
	p := Decode(mustQuery(t, "sts=202501010000&ets=202501020000&seconds=600"), now)
	if *p.Realtime {
		t.Error("sts/ets present should give an absolute window")
	}
	if p.Seconds != nil {
		t.Errorf("seconds = %d, want unset", *p.Seconds)
	}
	if want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC); !p.STS.Equal(want) {
		t.Errorf("sts = %v, want %v", *p.STS, want)
	}
}

func TestDecodeDefaults(t *testing.T) {
	p := Decode(url.Values{}, now)
	if !p.ETS.Equal(now) || !p.STS.Equal(now.Add(-24*time.Hour)) {
		t.Errorf("window = %v..%v, want default", *p.STS, *p.ETS)
	}
	if *p.Realtime {
		t.Error("default window should leave realtime false")
	}
	if !slices.Equal(p.WFOFilter, []string{}) || !slices.Equal(p.LSRTypes, []string{}) || !slices.Equal(p.SBWTypes, []string{}) {
		t.Errorf("missing lists = %v/%v/%v, want cleared", p.WFOFilter, p.LSRTypes, p.SBWTypes)
	}
	if p.WFOFilter == nil || p.LSRTypes == nil || p.SBWTypes == nil {
		t.Error("missing lists should clear the store, not leave it alone")
	}
	if p.LayerSettings == nil || *p.LayerSettings != "" {
		t.Error("missing settings should clear the layer settings")
	}
	if p.StateFilter != nil {
		t.Errorf("inactive state filter = %v, want untouched", p.StateFilter)
	}
}

func TestDecodeMalformedFallsBack(t *testing.T) {
	tests := []string{
		"sts=2025010100&ets=202501020000",
		"sts=20250101000a&ets=202501020000",
		"sts=202513010000&ets=202501020000",
		"sts=202502300000&ets=202503010000",
		"sts=202501012460&ets=202501020000",
		"sts=202501020000&ets=202501010000",
		"sts=199901010000&ets=199901020000",
		"seconds=abc",
		"seconds=0",
		"seconds=10000000000",
		"seconds=9223372036854775807",
		"seconds=-9223372036854775808",
		"seconds=999999999",
	}
	for _, raw := range tests {
		p := Decode(mustQuery(t, raw), now)
		if len(p.Problems) == 0 {
			t.Errorf("%s: expected a problem report", raw)
		}
		if !p.ETS.Equal(now) || !p.STS.Equal(now.Add(-24*time.Hour)) {
			t.Errorf("%s: window = %v..%v, want default", raw, *p.STS, *p.ETS)
		}
		if *p.Realtime {
			t.Errorf("%s: malformed input enabled realtime", raw)
		}
		if p.Seconds != nil {
			t.Errorf("%s: seconds = %d, want unset", raw, *p.Seconds)
		}
		if err := p.Apply(state.New(now)); err != nil {
			t.Errorf("%s: Apply: %v", raw, err)
		}
	}
}

func TestDecodeReplacesStaleState(t *testing.T) {
	s := state.New(now)
	_ = s.Set(state.KeyWFOFilter, []string{"DMX"})
	_ = s.Set(state.KeyStateFilter, []string{"IA"})
	_ = s.Set(state.KeyLSRTypes, []string{"T"})
	_ = s.Set(state.KeySBWTypes, []string{"TO"})
	_ = s.Set(state.KeyLayerSettings, "1111111")

	link := "by=wfo&sts=202511231200&ets=202511241200"
	if err := DecodeQuery(link, now).Apply(s); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := EncodeQuery(s.Snapshot()); got != link {
		t.Errorf("re-encoded = %q, want %q", got, link)
	}
	if got := s.Get(state.KeyStateFilter).([]string); !slices.Equal(got, []string{"IA"}) {
		t.Errorf("inactive state filter = %v, want kept", got)
	}
}

func TestDecodeByState(t *testing.T) {
	p := Decode(mustQuery(t, "by=state&state=ia,NE&wfo=DMX"), now)
	if !*p.ByState {
		t.Fatal("by=state not decoded")
	}
	if !slices.Equal(p.StateFilter, []string{"IA", "NE"}) {
		t.Errorf("stateFilter = %v", p.StateFilter)
	}
	if p.WFOFilter != nil {
		t.Errorf("inactive wfo param was decoded: %v", p.WFOFilter)
	}
}

func TestDecodeSettingsRealtimeBit(t *testing.T) {
	p := Decode(mustQuery(t, "sts=202501010000&ets=202501010400&settings=0001"), now)
	if !*p.Realtime {
		t.Fatal("settings realtime bit ignored")
	}
	if p.Seconds == nil || *p.Seconds != 14400 {
		t.Errorf("seconds = %v, want window length 14400", p.Seconds)
	}
}

func TestPartialLayers(t *testing.T) {
	p := Decode(mustQuery(t, "settings=10"), now)
	prior := settings.Vector{false, false, true, false, true, true, true}
	got := p.Layers(prior)
	want := settings.Vector{true, false, true, false, true, true, true}
	if got != want {
		t.Errorf("Layers = %v, want %v", got, want)
	}
}

func TestEncodeAbsolute(t *testing.T) {
	snap := state.Snapshot{
		STS:           time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ETS:           time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		WFOFilter:     []string{"DMX", "OAX"},
		LSRTypes:      []string{"T", "H"},
		LayerSettings: "1010101",
	}
	got := EncodeQuery(snap)
	want := "by=wfo&wfo=DMX,OAX&lsrTypes=T,H&sts=202501010000&ets=202501020000&settings=1010101"
	if got != want {
		t.Errorf("EncodeQuery =\n %s\nwant\n %s", got, want)
	}
}

func TestEncodeRealtimeUsesSeconds(t *testing.T) {
	snap := state.Snapshot{
		STS:           now.Add(-time.Hour),
		ETS:           now,
		Seconds:       3600,
		Realtime:      true,
		LayerSettings: "1110000",
	}
	p := Encode(snap)
	if p.Has(ParamSTS) || p.Has(ParamETS) {
		t.Errorf("realtime link carries absolute window: %s", p.Encode())
	}
	if p.Get(ParamSeconds) != "3600" {
		t.Errorf("seconds = %q, want 3600", p.Get(ParamSeconds))
	}
	if p.Get(ParamSettings) != "1111000" {
		t.Errorf("settings = %q, want realtime bit set", p.Get(ParamSettings))
	}
}

func TestEncodeOmitsInactiveFilter(t *testing.T) {
	s := state.New(now)
	_ = s.Set(state.KeyWFOFilter, []string{"DMX", "OAX"})
	_ = s.Set(state.KeyByState, true)

	p := Encode(s.Snapshot())
	if p.Has(ParamWFO) {
		t.Errorf("wfo emitted while byState: %s", p.Encode())
	}
	if p.Has(ParamState) {
		t.Errorf("empty state filter emitted: %s", p.Encode())
	}
	if p.Get(ParamBy) != ByState {
		t.Errorf("by = %q, want state", p.Get(ParamBy))
	}
	if got := s.Get(state.KeyWFOFilter).([]string); !slices.Equal(got, []string{"DMX", "OAX"}) {
		t.Errorf("store wfoFilter = %v, want kept", got)
	}
}

func TestRoundTrip(t *testing.T) {
	snaps := []state.Snapshot{
		{
			STS:           time.Date(2024, 5, 20, 6, 15, 0, 0, time.UTC),
			ETS:           time.Date(2024, 5, 21, 6, 15, 0, 0, time.UTC),
			WFOFilter:     []string{"DMX"},
			LayerSettings: "1100110",
		},
		{
			STS:         time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
			ETS:         time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
			ByState:     true,
			StateFilter: []string{"IA", "NE", "KS"},
			SBWTypes:    []string{"TO", "SV"},
		},
		{
			Seconds:       14400,
			Realtime:      true,
			LSRTypes:      []string{"T"},
			LayerSettings: "1111111",
		},
	}
	for i, want := range snaps {
		q := EncodeQuery(want)
		s := state.New(now)
		if err := DecodeQuery(q, now).Apply(s); err != nil {
			t.Fatalf("case %d: Apply: %v", i, err)
		}
		got := s.Snapshot()

		if got.Realtime != want.Realtime || got.ByState != want.ByState {
			t.Errorf("case %d: flags = %v/%v, want %v/%v", i, got.Realtime, got.ByState, want.Realtime, want.ByState)
		}
		if want.Realtime {
			if got.Seconds != want.Seconds {
				t.Errorf("case %d: seconds = %d, want %d", i, got.Seconds, want.Seconds)
			}
		} else if !got.STS.Equal(want.STS) || !got.ETS.Equal(want.ETS) {
			t.Errorf("case %d: window = %v..%v, want %v..%v", i, got.STS, got.ETS, want.STS, want.ETS)
		}
		if !slices.Equal(got.RegionFilter(), want.RegionFilter()) {
			t.Errorf("case %d: region = %v, want %v", i, got.RegionFilter(), want.RegionFilter())
		}
		if !slices.Equal(got.LSRTypes, want.LSRTypes) && len(want.LSRTypes) > 0 {
			t.Errorf("case %d: lsrTypes = %v, want %v", i, got.LSRTypes, want.LSRTypes)
		}
		if !slices.Equal(got.SBWTypes, want.SBWTypes) && len(want.SBWTypes) > 0 {
			t.Errorf("case %d: sbwTypes = %v, want %v", i, got.SBWTypes, want.SBWTypes)
		}
		if got.LayerSettings != want.LayerSettings {
			t.Errorf("case %d: settings = %q, want %q", i, got.LayerSettings, want.LayerSettings)
		}
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	ts := time.Date(2009, 7, 4, 23, 59, 0, 0, time.UTC)
	s := FormatTimestamp(ts.In(time.FixedZone("CDT", -5*3600)))
	if s != "200907042359" {
		t.Fatalf("FormatTimestamp = %s", s)
	}
	got, err := ParseTimestamp(s)
	if err != nil {
		t.Fatalf("ParseTimestamp: %v", err)
	}
	if !got.Equal(ts) {
		t.Errorf("ParseTimestamp = %v, want %v", got, ts)
	}
}

func TestParamsOrderAndCommas(t *testing.T) {
	p := ParseParams("?b=2&a=1&b=3&c=x%2Cy")
	if got := p.Keys(); !slices.Equal(got, []string{"b", "a", "c"}) {
		t.Errorf("Keys = %v", got)
	}
	if p.Get("b") != "2" {
		t.Errorf("b = %q, want first value", p.Get("b"))
	}
	p.Set("a", "9")
	p.Del("b")
	p.Set("d", "hello world")
	if got := p.Encode(); got != "a=9&c=x,y&d=hello+world" {
		t.Errorf("Encode = %q", got)
	}
}
