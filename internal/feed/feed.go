// Package feed knows the IEM storm report and warning feeds: it builds the
// request parameters a data reload uses and the export download links. It
// never performs the HTTP request itself.
package feed

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Zachdehooge/lsr-dashboard/internal/state"
)

// Feed endpoints.
const (
	LSRGeoJSONURL = "https://mesonet.agron.iastate.edu/geojson/lsr.geojson"
	SBWGeoJSONURL = "https://mesonet.agron.iastate.edu/geojson/sbw.geojson"
	ExportHost    = "https://mesonet.agron.iastate.edu"
	exportPath    = "/cgi-bin/request/gis/%s.py"
)

// MaxLSRFeatures is the feed's per-request cap on storm reports.
const MaxLSRFeatures = 10000

// Kind selects a feed.
type Kind string

// Feed kinds.
const (
	KindLSR       Kind = "lsr"
	KindWatchWarn Kind = "watchwarn"
)

// ParseKind validates a kind from a request path.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindLSR, KindWatchWarn:
		return k, nil
	}
	return "", fmt.Errorf("unknown feed %q", s)
}

// Format selects an export flavour.
type Format string

// Export formats. FormatStormBased limits warnings to their storm-based
// polygons.
const (
	FormatShapefile  Format = ""
	FormatExcel      Format = "excel"
	FormatKML        Format = "kml"
	FormatStormBased Format = "sbw"
)

// isoTime matches the millisecond ISO form the feed expects.
const isoTime = "2006-01-02T15:04:05.000Z"

// RequestOptions returns the query a data reload sends to the GeoJSON feeds:
// the window in ISO form plus the active region filter.
func RequestOptions(s state.Snapshot) url.Values {
	opts := url.Values{}
	opts.Set("sts", s.STS.UTC().Format(isoTime))
	opts.Set("ets", s.ETS.UTC().Format(isoTime))
	if s.ByState {
		opts.Set("states", strings.Join(s.StateFilter, ","))
	} else {
		opts.Set("wfos", strings.Join(s.WFOFilter, ","))
	}
	return opts
}

// GeoJSONURL returns the full reload URL for kind.
func GeoJSONURL(kind Kind, s state.Snapshot) string {
	base := LSRGeoJSONURL
	if kind == KindWatchWarn {
		base = SBWGeoJSONURL
	}
	return base + "?" + RequestOptions(s).Encode()
}

// ExportLink builds the download path for kind in format, relative to
// ExportHost. Dates are split into UTC calendar fields as the export service
// expects.
func ExportLink(kind Kind, format Format, s state.Snapshot) (string, error) {
	params := url.Values{}
	if s.ByState {
		for _, code := range s.StateFilter {
			params.Add("state", code)
		}
	} else {
		for _, code := range s.WFOFilter {
			params.Add("wfo", code)
		}
	}
	addDateParams(params, "1", s.STS)
	addDateParams(params, "2", s.ETS)

	switch format {
	case FormatShapefile:
	case FormatExcel:
		if kind == KindLSR {
			params.Set("fmt", "excel")
		} else {
			params.Set("accept", "excel")
		}
	case FormatKML:
		if kind != KindLSR {
			return "", fmt.Errorf("kml export is only available for %s", KindLSR)
		}
		params.Set("fmt", "kml")
	case FormatStormBased:
		if kind != KindWatchWarn {
			return "", fmt.Errorf("storm based export is only available for %s", KindWatchWarn)
		}
		params.Set("limit1", "yes")
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}
	return fmt.Sprintf(exportPath, kind) + "?" + params.Encode(), nil
}

func addDateParams(params url.Values, suffix string, t time.Time) {
	t = t.UTC()
	params.Set("year"+suffix, strconv.Itoa(t.Year()))
	params.Set("month"+suffix, strconv.Itoa(int(t.Month())))
	params.Set("day"+suffix, strconv.Itoa(t.Day()))
	params.Set("hour"+suffix, strconv.Itoa(t.Hour()))
	params.Set("minute"+suffix, strconv.Itoa(t.Minute()))
}

// NormalizeTypes upper-cases event type codes, drops blanks and removes
// duplicates while keeping the first occurrence's position.
func NormalizeTypes(types []string) []string {
	out := make([]string, 0, len(types))
	seen := make(map[string]bool, len(types))
	for _, t := range types {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
