package scheduler

import (
	"time"

	"github.com/rankpulse/rankpulse/app/database"
)

// CalculateNextPull returns the next execution time for a pull frequency.
// Monthly keeps the day-of-month where possible and clamps to the last day
// of the target month otherwise, so a Jan 31 schedule lands on a valid
// February date instead of overflowing into March.
func CalculateNextPull(frequency database.PullFrequency, from time.Time) time.Time {
	switch frequency {
	case database.FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case database.FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case database.FrequencyMonthly:
		return nextMonth(from)
	case database.FrequencyTest:
		return from.Add(time.Minute)
	default:
		return from.AddDate(0, 0, 1)
	}
}

func nextMonth(from time.Time) time.Time {
	year, month, day := from.Date()

	year, month = nextYearMonth(year, month)

	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}

	hour, min, sec := from.Clock()
	return time.Date(year, month, day, hour, min, sec, from.Nanosecond(), from.Location())
}

func nextYearMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}

func lastDayOfMonth(year int, month time.Month) int {
	// Day 0 of the following month normalizes to this month's last day.
	y, m := nextYearMonth(year, month)
	return time.Date(y, m, 0, 0, 0, 0, 0, time.UTC).Day()
}
