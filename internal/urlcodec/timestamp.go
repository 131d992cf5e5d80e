package urlcodec

import (
	"fmt"
	"time"
)

// TimestampLen is the width of the compact URL timestamp YYYYMMDDHHmm.
const TimestampLen = 12

// MinTime is the earliest instant the dashboard has data for. Decoded
// absolute windows starting earlier are treated as malformed.
var MinTime = time.Date(2003, 1, 1, 0, 0, 0, 0, time.UTC)

// FormatTimestamp renders t in UTC as YYYYMMDDHHmm.
func FormatTimestamp(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d%02d%02d%02d%02d", t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute())
}

// ParseTimestamp reads a YYYYMMDDHHmm string as exact UTC calendar fields.
// Each field is range checked; out-of-range values are errors rather than
// being normalized into a neighbouring day or month.
func ParseTimestamp(s string) (time.Time, error) {
	if len(s) != TimestampLen {
		return time.Time{}, fmt.Errorf("timestamp %q: want %d digits, got %d", s, TimestampLen, len(s))
	}
	fields := [5]int{}
	widths := [5]int{4, 2, 2, 2, 2}
	pos := 0
	for i, w := range widths {
		n := 0
		for _, c := range s[pos : pos+w] {
			if c < '0' || c > '9' {
				return time.Time{}, fmt.Errorf("timestamp %q: non-digit %q", s, c)
			}
			n = n*10 + int(c-'0')
		}
		fields[i] = n
		pos += w
	}
	year, month, day, hour, minute := fields[0], fields[1], fields[2], fields[3], fields[4]
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("timestamp %q: month %d out of range", s, month)
	}
	if hour > 23 || minute > 59 {
		return time.Time{}, fmt.Errorf("timestamp %q: time %02d:%02d out of range", s, hour, minute)
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	if day < 1 || t.Day() != day {
		return time.Time{}, fmt.Errorf("timestamp %q: day %d out of range", s, day)
	}
	return t, nil
}
