package billing

import "time"

// Cycle is one statement period of a card: purchases due in
// [PeriodStart, PeriodEnd] are billed on ClosingDate and paid by DueDate.
type Cycle struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	ClosingDate time.Time `json:"closing_date"`
	DueDate     time.Time `json:"due_date"`
}

// Key identifies the cycle of a card; one statement exists per key.
func (c Cycle) Key() string {
	return c.PeriodStart.Format(time.DateOnly) + "/" + c.PeriodEnd.Format(time.DateOnly)
}

// Covers reports whether day falls inside the statement period.
func (c Cycle) Covers(day time.Time) bool {
	day = DayOf(day)
	return !day.Before(c.PeriodStart) && !day.After(c.PeriodEnd)
}

// ComputeCycle returns the most recent cycle that has closed on or before
// ref.
//
// The closing day is clamped to the last day of every month it is applied
// to. The period runs from the day after the previous closing through the
// most recent closing. When dueDay > closingDay the due date is in the
// closing month; otherwise it falls in the following month.
func ComputeCycle(ref time.Time, closingDay, dueDay int) Cycle {
	ref = DayOf(ref)

	recent := ClampedDate(ref.Year(), ref.Month(), closingDay)
	if recent.After(ref) {
		recent = ClampedDate(ref.Year(), ref.Month()-1, closingDay)
	}
	prior := ClampedDate(recent.Year(), recent.Month()-1, closingDay)

	var due time.Time
	if dueDay > closingDay {
		due = ClampedDate(recent.Year(), recent.Month(), dueDay)
	} else {
		due = ClampedDate(recent.Year(), recent.Month()+1, dueDay)
	}

	return Cycle{
		PeriodStart: prior.AddDate(0, 0, 1),
		PeriodEnd:   recent,
		ClosingDate: recent,
		DueDate:     due,
	}
}

// NextClosing returns the first closing date on or after day.
func NextClosing(day time.Time, closingDay int) time.Time {
	day = DayOf(day)
	closing := ClampedDate(day.Year(), day.Month(), closingDay)
	if closing.Before(day) {
		closing = ClampedDate(day.Year(), day.Month()+1, closingDay)
	}
	return closing
}

// UpcomingCycles returns n consecutive cycles starting with the one still
// open on day (the cycle whose closing is the next one on or after day).
func UpcomingCycles(day time.Time, closingDay, dueDay, n int) []Cycle {
	if n <= 0 {
		return nil
	}
	first := NextClosing(day, closingDay)
	cycles := make([]Cycle, 0, n)
	for i := 0; i < n; i++ {
		closing := ClampedDate(first.Year(), first.Month()+time.Month(i), closingDay)
		cycles = append(cycles, ComputeCycle(closing, closingDay, dueDay))
	}
	return cycles
}
