package finance

import "time"

// BucketDay returns the start of the fixed 24h bucket containing ts (ms).
func BucketDay(ts int64) int64 {
	b := ts / DayMs
	if ts%DayMs < 0 {
		b--
	}
	return b * DayMs
}

// IsSameCalendarDay reports whether a and b fall on the same date in loc.
func IsSameCalendarDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// FormatDayLabel renders "Today" for the current day and a short date otherwise.
// ts is usually a bucket start, i.e. a UTC midnight. In zones west of UTC
// that instant falls on the previous local date, so for most of the local
// day the newest bucket is labelled with yesterday's date rather than
// "Today".
func FormatDayLabel(ts int64, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	t := time.UnixMilli(ts)
	if IsSameCalendarDay(t, now, loc) {
		return "Today"
	}
	return t.In(loc).Format("Jan 2")
}
