// Package urlcodec translates dashboard state to and from the query
// parameters of a shareable dashboard link.
package urlcodec

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Zachdehooge/lsr-dashboard/internal/settings"
	"github.com/Zachdehooge/lsr-dashboard/internal/state"
)

// Query parameter names.
const (
	ParamBy       = "by"
	ParamWFO      = "wfo"
	ParamState    = "state"
	ParamLSRTypes = "lsrTypes"
	ParamSBWTypes = "sbwTypes"
	ParamSTS      = "sts"
	ParamETS      = "ets"
	ParamSeconds  = "seconds"
	ParamSettings = "settings"
)

// Values of the by parameter.
const (
	ByWFO   = "wfo"
	ByState = "state"
)

// Partial is the state a link describes, ready to be applied to a store.
// Problems lists the malformed parameters that were replaced by defaults.
type Partial struct {
	state.Patch
	Problems []string
}

// Apply writes the decoded state into s.
func (p Partial) Apply(s *state.Store) error {
	if err := s.ApplyPatch(p.Patch); err != nil {
		return fmt.Errorf("failed to apply decoded url: %w", err)
	}
	return nil
}

// Layers decodes the settings parameter on top of prior. Positions the
// settings parameter does not cover keep their prior value.
func (p Partial) Layers(prior settings.Vector) settings.Vector {
	if p.LayerSettings == nil {
		return prior
	}
	return settings.Decode(*p.LayerSettings, prior)
}

// Decode reads a dashboard link. The link is a complete description of the
// state: the active region filter, the type filters and the layer settings
// are cleared when their parameter is absent. The inactive region filter is
// left alone. Absolute sts and ets win over seconds when both are present.
// Any malformed window falls back to the 24 hour window ending at now;
// Decode itself never fails.
func Decode(q url.Values, now time.Time) Partial {
	now = now.UTC()
	var p Partial

	byState := false
	switch by := q.Get(ParamBy); by {
	case ByState:
		byState = true
		p.StateFilter = splitCodes(q.Get(ParamState))
	case "", ByWFO:
		p.WFOFilter = splitCodes(q.Get(ParamWFO))
	default:
		p.problem("by %q is not wfo or state", by)
		p.WFOFilter = splitCodes(q.Get(ParamWFO))
	}
	p.ByState = &byState

	p.LSRTypes = splitList(q.Get(ParamLSRTypes))
	p.SBWTypes = splitList(q.Get(ParamSBWTypes))

	sts, ets := now.Add(-state.DefaultWindow), now
	realtime := false
	relative := false
	stsRaw, etsRaw, secondsRaw := q.Get(ParamSTS), q.Get(ParamETS), q.Get(ParamSeconds)

	switch {
	case stsRaw != "" && etsRaw != "":
		start, end, err := parseWindow(stsRaw, etsRaw)
		if err != nil {
			p.problem("%v", err)
			break
		}
		sts, ets = start, end
	case secondsRaw != "":
		n, err := parseSeconds(secondsRaw)
		if err != nil {
			p.problem("%v", err)
			break
		}
		start := now.Add(-time.Duration(n) * time.Second)
		if start.Before(MinTime) {
			p.problem("seconds %s reaches before %s", secondsRaw, FormatTimestamp(MinTime))
			break
		}
		realtime, relative = true, true
		sts, ets = start, now
		p.Seconds = &n
	}

	raw := q.Get(ParamSettings)
	p.LayerSettings = &raw
	if on, ok := settings.Value(raw, settings.Realtime); ok && on && !relative {
		realtime = true
		if n := int64(ets.Sub(sts) / time.Second); n > 0 {
			p.Seconds = &n
		}
	}

	p.STS, p.ETS = &sts, &ets
	p.Realtime = &realtime
	return p
}

// parseSeconds reads a relative window length. The sign is ignored.
func parseSeconds(raw string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n == 0 || n == math.MinInt64 {
		return 0, fmt.Errorf("seconds %q is not a non-zero integer", raw)
	}
	if n < 0 {
		n = -n
	}
	if n > state.MaxSeconds {
		return 0, fmt.Errorf("seconds %q is longer than %d", raw, state.MaxSeconds)
	}
	return n, nil
}

// DecodeQuery is Decode for a raw query string.
func DecodeQuery(raw string, now time.Time) Partial {
	return Decode(ParseParams(raw).Values(), now)
}

// Encode renders a snapshot as link parameters. A realtime snapshot carries
// seconds instead of sts and ets so that opening the link keeps sliding
// forward. Only the active region filter is written, and only when it is
// non-empty.
func Encode(s state.Snapshot) Params {
	var p Params

	if s.ByState {
		p.Set(ParamBy, ByState)
		if len(s.StateFilter) > 0 {
			p.Set(ParamState, strings.Join(s.StateFilter, ","))
		}
	} else {
		p.Set(ParamBy, ByWFO)
		if len(s.WFOFilter) > 0 {
			p.Set(ParamWFO, strings.Join(s.WFOFilter, ","))
		}
	}
	if len(s.LSRTypes) > 0 {
		p.Set(ParamLSRTypes, strings.Join(s.LSRTypes, ","))
	}
	if len(s.SBWTypes) > 0 {
		p.Set(ParamSBWTypes, strings.Join(s.SBWTypes, ","))
	}

	if s.Realtime && s.Seconds > 0 {
		p.Set(ParamSeconds, strconv.FormatInt(s.Seconds, 10))
	} else {
		p.Set(ParamSTS, FormatTimestamp(s.STS))
		p.Set(ParamETS, FormatTimestamp(s.ETS))
	}

	if s.LayerSettings != "" {
		// The realtime position mirrors the store so the flag cannot
		// contradict the window parameters.
		p.Set(ParamSettings, settings.WithFlag(s.LayerSettings, settings.Realtime, s.Realtime))
	}
	return p
}

// EncodeQuery is Encode rendered as a query string.
func EncodeQuery(s state.Snapshot) string {
	return Encode(s).Encode()
}

func parseWindow(stsRaw, etsRaw string) (time.Time, time.Time, error) {
	sts, err := ParseTimestamp(stsRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("sts: %w", err)
	}
	ets, err := ParseTimestamp(etsRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("ets: %w", err)
	}
	if sts.Before(MinTime) {
		return time.Time{}, time.Time{}, fmt.Errorf("sts %s is before %s", stsRaw, FormatTimestamp(MinTime))
	}
	if sts.After(ets) {
		return time.Time{}, time.Time{}, fmt.Errorf("sts %s is after ets %s", stsRaw, etsRaw)
	}
	return sts, ets, nil
}

func (p *Partial) problem(format string, args ...any) {
	p.Problems = append(p.Problems, fmt.Sprintf(format, args...))
}

func splitList(raw string) []string {
	out := []string{}
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func splitCodes(raw string) []string {
	out := splitList(raw)
	for i, code := range out {
		out[i] = strings.ToUpper(code)
	}
	return out
}
