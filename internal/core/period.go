package core

import (
	"fmt"
	"time"
)

// Periods are calendar months in UTC. A PeriodKey like "2024-01" identifies
// one period for alert deduplication.
type PeriodKey string

// PeriodKeyFor returns the key of the period containing t.
func PeriodKeyFor(t time.Time) PeriodKey {
	t = t.UTC()
	return PeriodKey(fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
}

// PeriodBounds returns the first and last instant of the calendar month
// containing t. Bounds are inclusive: the end is the final nanosecond of
// the month, so a transaction dated exactly at month end is still inside.
func PeriodBounds(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Advance computes the next occurrence date for a recurring interval.
//
// DAILY adds one day and WEEKLY seven. MONTHLY adds one calendar month and
// YEARLY one calendar year, clamping the day of month to the target month's
// last day: Jan 31 + MONTHLY lands on Feb 28 (or 29 in a leap year), and
// Feb 29 + YEARLY lands on Feb 28 in a non-leap year. Plain AddDate would
// silently wrap into the following month instead.
func Advance(date time.Time, interval RecurringInterval) (time.Time, error) {
	date = date.UTC()
	switch interval {
	case Daily:
		return date.AddDate(0, 0, 1), nil
	case Weekly:
		return date.AddDate(0, 0, 7), nil
	case Monthly:
		return addClamped(date, 0, 1), nil
	case Yearly:
		return addClamped(date, 1, 0), nil
	default:
		return time.Time{}, ErrInvalidInterval
	}
}

func addClamped(date time.Time, years, months int) time.Time {
	year := date.Year() + years
	month := date.Month() + time.Month(months)
	if month > time.December {
		month -= 12
		year++
	}
	day := date.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day,
		date.Hour(), date.Minute(), date.Second(), date.Nanosecond(), time.UTC)
}
