package schedule

import "time"

// =============================================================================
// DUE DATE ARITHMETIC
// =============================================================================

// DateOnly strips the time-of-day, keeping year, month, day, and location.
// Due dates are contractual calendar days.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddMonthsClamped advances start by the given number of calendar months,
// clamping the day to the last day of the target month. The step is always
// taken from the original date, so clamping never accumulates:
// Jan 31 +1 = Feb 28, +2 = Mar 31, +3 = Apr 30.
func AddMonthsClamped(start time.Time, months int) time.Time {
	y, m, d := start.Date()

	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, start.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}

	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, 0, 0, 0, 0, start.Location())
}

// InstitutionDue derives the date the agency must remit to the institution:
// the student due date plus the agency-configured lead time.
func InstitutionDue(studentDue time.Time, leadDays int) time.Time {
	return studentDue.AddDate(0, 0, leadDays)
}
