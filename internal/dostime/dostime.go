// Package dostime converts between time.Time and packed 32-bit DOS
// timestamps (date in the high word, time in the low word).
package dostime

import "time"

const (
	minYear = 1980
	maxYear = 1980 + 0x7F
)

// Encode packs t (interpreted in its own location) into a DOS timestamp.
// Years outside 1980..2107 are clamped. Seconds have 2-second resolution.
func Encode(t time.Time) uint32 {
	year := t.Year()
	switch {
	case year < minYear:
		return Encode(time.Date(minYear, 1, 1, 0, 0, 0, 0, t.Location()))
	case year > maxYear:
		return Encode(time.Date(maxYear, 12, 31, 23, 59, 58, 0, t.Location()))
	}

	date := uint32(year-minYear)<<9 | uint32(t.Month())<<5 | uint32(t.Day())
	clock := uint32(t.Hour())<<11 | uint32(t.Minute())<<5 | uint32(t.Second()/2)

	return date<<16 | clock
}

// Decode unpacks a DOS timestamp in UTC. The boolean is false when the
// packed fields do not describe a real calendar instant (zero timestamps
// and garbage included).
func Decode(v uint32) (time.Time, bool) {
	date := v >> 16
	clock := v & 0xFFFF

	year := int(date>>9) + minYear
	month := int(date>>5) & 0x0F
	day := int(date) & 0x1F
	hour := int(clock >> 11)
	minute := int(clock>>5) & 0x3F
	second := int(clock&0x1F) * 2

	if month < 1 || month > 12 || day < 1 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	// time.Date normalizes overflow such as Feb 30; reject those
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}

	return t, true
}

// Now returns the current local time as a DOS timestamp.
func Now() uint32 {
	return Encode(time.Now())
}
