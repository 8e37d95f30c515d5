package scheduler

import (
	"testing"
	"time"

	"github.com/rankpulse/rankpulse/app/database"
)

func TestCalculateNextPull(t *testing.T) {
	testCases := []struct {
		name      string
		frequency database.PullFrequency
		from      time.Time
		expected  time.Time
	}{
		{
			name:      "daily",
			frequency: database.FrequencyDaily,
			from:      time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC),
			expected:  time.Date(2025, 6, 16, 9, 30, 0, 0, time.UTC),
		},
		{
			name:      "weekly",
			frequency: database.FrequencyWeekly,
			from:      time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC),
			expected:  time.Date(2025, 6, 22, 9, 30, 0, 0, time.UTC),
		},
		{
			name:      "monthly mid-month",
			frequency: database.FrequencyMonthly,
			from:      time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC),
			expected:  time.Date(2025, 7, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			name:      "monthly jan 31 leap year clamps to feb 29",
			frequency: database.FrequencyMonthly,
			from:      time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC),
			expected:  time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC),
		},
		{
			name:      "monthly jan 31 clamps to feb 28",
			frequency: database.FrequencyMonthly,
			from:      time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC),
			expected:  time.Date(2025, 2, 28, 12, 0, 0, 0, time.UTC),
		},
		{
			name:      "monthly may 31 clamps to jun 30",
			frequency: database.FrequencyMonthly,
			from:      time.Date(2025, 5, 31, 12, 0, 0, 0, time.UTC),
			expected:  time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC),
		},
		{
			name:      "monthly december rolls the year",
			frequency: database.FrequencyMonthly,
			from:      time.Date(2025, 12, 15, 12, 0, 0, 0, time.UTC),
			expected:  time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		},
		{
			name:      "test frequency",
			frequency: database.FrequencyTest,
			from:      time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC),
			expected:  time.Date(2025, 6, 15, 9, 31, 0, 0, time.UTC),
		},
		{
			name:      "unknown frequency falls back to daily",
			frequency: database.PullFrequency("hourly"),
			from:      time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC),
			expected:  time.Date(2025, 6, 16, 9, 30, 0, 0, time.UTC),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateNextPull(tc.frequency, tc.from)
			if !got.Equal(tc.expected) {
				t.Errorf("Expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestCalculateNextPullPreservesClock(t *testing.T) {
	from := time.Date(2024, 1, 31, 23, 45, 12, 0, time.UTC)

	got := CalculateNextPull(database.FrequencyMonthly, from)

	if got.Hour() != 23 || got.Minute() != 45 || got.Second() != 12 {
		t.Errorf("Expected clock preserved across month rollover, got %s", got)
	}
}
