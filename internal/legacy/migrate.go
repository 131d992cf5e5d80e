// Package legacy rewrites links from the old fragment scheme
// (#ids/sts/ets/settings) into the current query parameter scheme.
package legacy

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Zachdehooge/lsr-dashboard/internal/urlcodec"
)

// Migrate rewrites a legacy fragment on u into query parameters and clears
// the fragment. Existing query parameters are kept; fragment values replace
// them. It reports whether u was changed. A fragment with fewer than two
// slash-separated segments leaves u untouched.
func Migrate(u *url.URL) bool {
	if u == nil {
		return false
	}
	params, ok := FromFragment(u.RawQuery, u.Fragment)
	if !ok {
		return false
	}
	u.RawQuery = params.Encode()
	u.Fragment = ""
	u.RawFragment = ""
	return true
}

// MigrateHref is Migrate for a string link.
func MigrateHref(href string) (string, bool, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", false, fmt.Errorf("failed to parse link: %w", err)
	}
	if !Migrate(u) {
		return href, false, nil
	}
	return u.String(), true, nil
}

// FromFragment merges the legacy fragment into rawQuery. The fragment may
// carry its leading '#'.
//
// Token layout: ids, then either sts and ets or a single relative seconds
// value, then optional settings. ids whose first code is three letters are
// forecast offices, anything else is states.
func FromFragment(rawQuery, fragment string) (urlcodec.Params, bool) {
	fragment = strings.TrimPrefix(fragment, "#")
	if fragment == "" {
		return urlcodec.Params{}, false
	}
	tokens := strings.Split(fragment, "/")
	if len(tokens) < 2 {
		return urlcodec.Params{}, false
	}

	params := urlcodec.ParseParams(rawQuery)

	ids := strings.Split(tokens[0], ",")
	if ids[0] != "" {
		by := urlcodec.ByWFO
		if len(ids[0]) != 3 {
			by = urlcodec.ByState
		}
		params.Set(urlcodec.ParamBy, by)
		params.Set(by, tokens[0])
	}

	if len(tokens) > 2 {
		params.Set(urlcodec.ParamSTS, tokens[1])
		params.Set(urlcodec.ParamETS, tokens[2])
	} else {
		params.Set(urlcodec.ParamSeconds, tokens[1])
	}

	if len(tokens) > 3 {
		params.Set(urlcodec.ParamSettings, tokens[3])
	}
	return params, true
}
