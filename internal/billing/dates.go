package billing

import "time"

// Date returns midnight UTC of the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DayOf drops the time of day, keeping the calendar day as seen in t's location.
func DayOf(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// DaysIn returns the number of days in the month.
func DaysIn(year int, month time.Month) int {
	return Date(year, month+1, 0).Day()
}

// ClampedDate builds the date for day in the given month, clamping day to
// [1, last day of month]. Month overflow is normalized first, so month 13 is
// January of the following year.
func ClampedDate(year int, month time.Month, day int) time.Time {
	first := Date(year, month, 1)
	year, month = first.Year(), first.Month()
	if day < 1 {
		day = 1
	}
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return Date(year, month, day)
}

// AddMonths shifts t by n calendar months keeping the day of month, clamped
// to the end of shorter months (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	t = DayOf(t)
	return ClampedDate(t.Year(), t.Month()+time.Month(n), t.Day())
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// MonthBounds returns the first and last day of the month containing t.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	first := Date(t.Year(), t.Month(), 1)
	return first, Date(t.Year(), t.Month(), DaysIn(t.Year(), t.Month()))
}
