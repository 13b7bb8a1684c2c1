// Package calendar provides the date arithmetic used by billing periods.
//
// Dates are represented as time.Time values at midnight UTC. Use Date or
// DateOf to build them so that comparisons with Before/After/Equal behave
// like calendar-day comparisons.
package calendar

import "time"

const monthsInYear = 12

// Layout is the human readable date format used on bills.
const Layout = "Jan 02, 2006"

// Date returns midnight UTC of the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf drops the time-of-day (and zone) of t, keeping its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// ParseDate parses an ISO (YYYY-MM-DD) date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}

// EndOfPeriod returns the last day of a period of numMonths months starting
// in (year, month).
//
// Periods of twelve months or more carry whole years. A zero-length period
// ends on the last day of the month before the start month, so a zero-length
// period starting in January ends on December 31 of the previous year.
func EndOfPeriod(year int, month time.Month, numMonths int) time.Time {
	y := year
	if numMonths >= monthsInYear {
		y += numMonths / monthsInYear
		numMonths %= monthsInYear
	}

	var m time.Month
	switch {
	case numMonths == 0 && month == time.January:
		y--
		m = time.December
	case int(month) <= monthsInYear+1-numMonths:
		m = month + time.Month(numMonths-1)
	default:
		y++
		m = month - time.Month(monthsInYear+1-numMonths)
	}

	return lastDayOfMonth(y, m)
}

// DaysInRange lists every day from start to end inclusive. The result is
// empty when end is before start.
func DaysInRange(start, end time.Time) []time.Time {
	start, end = DateOf(start), DateOf(end)
	if end.Before(start) {
		return nil
	}
	days := make([]time.Time, 0, DaysBetween(start, end)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// DaysBetween returns the number of whole days from start to end. It is
// negative when end is before start.
func DaysBetween(start, end time.Time) int {
	return int(DateOf(end).Sub(DateOf(start)).Hours() / 24)
}

// Max returns the later of two dates.
func Max(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// Min returns the earlier of two dates.
func Min(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func lastDayOfMonth(year int, month time.Month) time.Time {
	// Day zero of the following month normalizes to the last day of month.
	return Date(year, month+1, 0)
}
