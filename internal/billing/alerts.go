package billing

import "time"

// Policy decides which past cycles of a card still need attention.
type Policy struct {
	// LookbackCycles is how many months, counting the current one, are
	// scanned backwards from today.
	LookbackCycles int
	// GraceMonths is how long after its due date a cycle keeps alerting.
	GraceMonths int
	// Cutoff suppresses every cycle whose due date is before it.
	Cutoff *time.Time
}

// DefaultPolicy scans four cycles (0..3 months back) and alerts until one
// month past the due date.
func DefaultPolicy() Policy {
	return Policy{LookbackCycles: 4, GraceMonths: 1}
}

// IsActive reports whether the cycle needs a statement record on today:
// it has closed and today is no later than its due date plus the grace
// period. Cycles due before the cutoff are never active.
func (p Policy) IsActive(c Cycle, today time.Time) bool {
	today = DayOf(today)
	if p.Cutoff != nil && c.DueDate.Before(DayOf(*p.Cutoff)) {
		return false
	}
	if c.ClosingDate.After(today) {
		return false
	}
	return !today.After(AddMonths(c.DueDate, p.GraceMonths))
}

// ActiveCycles returns the distinct active cycles of a card on today, most
// recent first.
func (p Policy) ActiveCycles(today time.Time, closingDay, dueDay int) []Cycle {
	today = DayOf(today)
	lookback := p.LookbackCycles
	if lookback <= 0 {
		lookback = 1
	}

	seen := make(map[string]bool, lookback)
	var cycles []Cycle
	for back := 0; back < lookback; back++ {
		c := ComputeCycle(AddMonths(today, -back), closingDay, dueDay)
		if seen[c.Key()] || !p.IsActive(c, today) {
			continue
		}
		seen[c.Key()] = true
		cycles = append(cycles, c)
	}
	return cycles
}
