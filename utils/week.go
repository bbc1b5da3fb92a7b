package utils

import "time"

// WeekNumber returns the ISO 8601 week of t and the ISO year it belongs to.
func WeekNumber(t time.Time) (week, year int) {
	year, week = t.ISOWeek()
	return week, year
}

// WeeksInYear returns 52 or 53. December 28th always falls in the last ISO
// week of its year.
func WeeksInYear(year int) int {
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

// WeekRange returns Monday 00:00 UTC and Sunday 00:00 UTC of ISO week
// `week` in `year`. Week 1 is the week containing January 4th.
func WeekRange(week, year int) (start, end time.Time) {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7 // days since Monday
	firstMonday := jan4.AddDate(0, 0, -offset)
	start = firstMonday.AddDate(0, 0, (week-1)*7)
	return start, start.AddDate(0, 0, 6)
}
