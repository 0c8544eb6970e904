package srs

import "time"

const dateLayout = "2006-01-02"

// Date returns the calendar day of t (in t's location) as midnight UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DueOn adds whole calendar days to the day of today.
func DueOn(today time.Time, days int) time.Time {
	return Date(today).AddDate(0, 0, days)
}

// IsDue reports whether an item scheduled for next is due on today.
func IsDue(next, today time.Time) bool {
	return !Date(next).After(Date(today))
}

// FormatDate renders a calendar day as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return Date(t).Format(dateLayout)
}

// ParseDate parses a YYYY-MM-DD calendar day.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}
