package billing

import "time"

// Clock supplies the current calendar day.
type Clock interface {
	Today() time.Time
}

// IDGenerator hands out unique identifiers for records and groups before they
// are persisted.
type IDGenerator interface {
	NewID() string
}

// SystemClock reads the wall clock in the given location (UTC when nil) and
// reports the day as a UTC midnight date.
type SystemClock struct {
	Location *time.Location
}

// Today returns the current day.
func (c SystemClock) Today() time.Time {
	now := time.Now()
	if c.Location != nil {
		now = now.In(c.Location)
	}
	return Date(now.Year(), now.Month(), now.Day())
}

// FixedClock always reports the same day.
type FixedClock time.Time

// Today returns the fixed day.
func (c FixedClock) Today() time.Time {
	return DayOf(time.Time(c))
}
