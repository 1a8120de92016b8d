package usage

import "time"

// CycleLength is the length of one usage cycle.
const CycleLength = 30 * 24 * time.Hour

// CycleExpired reports whether the cycle anchored at lastReset is over.
// A user that never had a reset is always expired.
func CycleExpired(lastReset *time.Time, now time.Time) bool {
	if lastReset == nil || lastReset.IsZero() {
		return true
	}
	return now.Sub(*lastReset) >= CycleLength
}

// MinutesFromSeconds rounds a call duration up to whole minutes.
func MinutesFromSeconds(sec int) int {
	if sec <= 0 {
		return 0
	}
	m := sec / 60
	if sec%60 != 0 {
		m++
	}
	return m
}
