package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daySet(days ...time.Time) map[time.Time]struct{} {
	set := make(map[time.Time]struct{}, len(days))
	for _, d := range days {
		set[d] = struct{}{}
	}
	return set
}

func TestCurrentStreakNoCompletions(t *testing.T) {
	assert.Equal(t, 0, currentStreak(daySet(), day(2025, 6, 15)))
}

func TestCurrentStreakSingleDayToday(t *testing.T) {
	today := day(2025, 6, 15)
	assert.Equal(t, 1, currentStreak(daySet(today), today))
}

func TestCurrentStreakCountsConsecutiveRun(t *testing.T) {
	today := day(2025, 6, 15)
	days := daySet(
		day(2025, 6, 15),
		day(2025, 6, 14),
		day(2025, 6, 13),
		// gap on the 12th
		day(2025, 6, 11),
		day(2025, 6, 10),
	)
	assert.Equal(t, 3, currentStreak(days, today))
}

func TestCurrentStreakSurvivesMissingToday(t *testing.T) {
	// Nothing logged today yet, but yesterday and before are unbroken.
	today := day(2025, 6, 15)
	days := daySet(
		day(2025, 6, 14),
		day(2025, 6, 13),
	)
	assert.Equal(t, 2, currentStreak(days, today))
}

func TestCurrentStreakBrokenByFullDayGap(t *testing.T) {
	// Latest completion was the day before yesterday.
	today := day(2025, 6, 15)
	days := daySet(
		day(2025, 6, 13),
		day(2025, 6, 12),
	)
	assert.Equal(t, 0, currentStreak(days, today))
}

func TestCurrentStreakCrossesMonthBoundary(t *testing.T) {
	today := day(2025, 7, 1)
	days := daySet(
		day(2025, 7, 1),
		day(2025, 6, 30),
		day(2025, 6, 29),
	)
	assert.Equal(t, 3, currentStreak(days, today))
}

func TestCurrentStreakIgnoresTimeOfDay(t *testing.T) {
	// The caller may pass a wall-clock timestamp; the streak works on
	// calendar days.
	days := daySet(day(2025, 6, 15))
	assert.Equal(t, 1, currentStreak(days, time.Date(2025, 6, 15, 18, 45, 12, 0, time.UTC)))
}

func TestCurrentYearMonthFollowsServiceClock(t *testing.T) {
	svc := &StatsService{now: fixedClock(time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC))}

	year, month := svc.CurrentYearMonth()
	assert.Equal(t, 2024, year)
	assert.Equal(t, time.December, month)
}

func TestTruncateToDay(t *testing.T) {
	got := truncateToDay(time.Date(2025, 6, 15, 23, 59, 59, 999, time.UTC))
	assert.Equal(t, day(2025, 6, 15), got)
}
