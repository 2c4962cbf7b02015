// Package shift computes the twice-daily reset instants that scope every live feed.
// Records timestamped before the last reset simply fall out of every query; they
// are not deleted.
package shift

import "time"

// Hours of the two daily boundaries, in the local time of the instant passed in.
const (
	MorningHour = 8
	EveningHour = 20
)

// LastBoundary returns the most recent boundary at or before now. A boundary is
// inclusive: at exactly 08:00:00.000 the 08:00 boundary is returned.
func LastBoundary(now time.Time) time.Time {
	morning := at(now, 0, MorningHour)
	evening := at(now, 0, EveningHour)

	switch {
	case !now.Before(evening):
		return evening
	case !now.Before(morning):
		return morning
	default:
		return at(now, -1, EveningHour)
	}
}

// NextBoundary returns the first boundary strictly after now.
func NextBoundary(now time.Time) time.Time {
	morning := at(now, 0, MorningHour)
	evening := at(now, 0, EveningHour)

	switch {
	case now.Before(morning):
		return morning
	case now.Before(evening):
		return evening
	default:
		return at(now, 1, MorningHour)
	}
}

// at builds hour:00 on now's calendar day shifted by dayOffset, letting
// time.Date normalize month and year rollovers.
func at(now time.Time, dayOffset, hour int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+dayOffset, hour, 0, 0, 0, now.Location())
}
