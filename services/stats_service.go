package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"habitnestAPI/internal/stats"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StatsService struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewStatsService(db *pgxpool.Pool) *StatsService {
	return &StatsService{db: db, now: time.Now}
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// currentStreak is the length of the trailing run of consecutive calendar
// days with at least one completion. A run still counts if today has no
// completion yet but yesterday does; a gap of a full day ends it.
func currentStreak(days map[time.Time]struct{}, today time.Time) int {
	today = truncateToDay(today)

	cursor := today
	if _, ok := days[cursor]; !ok {
		cursor = cursor.AddDate(0, 0, -1)
		if _, ok := days[cursor]; !ok {
			return 0
		}
	}

	streak := 0
	for {
		if _, ok := days[cursor]; !ok {
			return streak
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
}

// CurrentYearMonth reports the calendar month of the service clock, the
// default window for the calendar view.
func (s *StatsService) CurrentYearMonth() (int, time.Month) {
	now := s.now()
	return now.Year(), now.Month()
}

// Overview builds the statistics page payload: the last 7 days of
// completion counts, per-category totals over the same window, lifetime
// totals, and the computed streak.
func (s *StatsService) Overview(ctx context.Context, clerkID string) (*stats.Overview, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	today := truncateToDay(s.now())
	weekStart := today.AddDate(0, 0, -6)

	query := `
	SELECT co.completed_on, c.category
	FROM completions co
	JOIN challenges c ON c.id = co.challenge_id
	WHERE co.user_id = $1 AND co.completed_on >= $2 AND co.completed_on <= $3
	`

	rows, err := s.db.Query(ctx, query, userID, weekStart, today)
	if err != nil {
		return nil, fmt.Errorf("failed to get weekly completions: %w", err)
	}
	defer rows.Close()

	perDay := make(map[string]int)
	perCategory := make(map[string]int)
	thisWeek := 0
	for rows.Next() {
		var day time.Time
		var category string
		if err := rows.Scan(&day, &category); err != nil {
			return nil, err
		}
		perDay[day.Format("2006-01-02")]++
		perCategory[category]++
		thisWeek++
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	ov := &stats.Overview{
		Weekly:     make([]stats.DayCount, 0, 7),
		Categories: make([]stats.CategoryCount, 0, len(perCategory)),
		ThisWeek:   thisWeek,
	}
	for i := 0; i < 7; i++ {
		day := weekStart.AddDate(0, 0, i)
		key := day.Format("2006-01-02")
		ov.Weekly = append(ov.Weekly, stats.DayCount{
			Day:         day.Format("Mon"),
			Date:        key,
			Completions: perDay[key],
		})
	}
	for category, count := range perCategory {
		ov.Categories = append(ov.Categories, stats.CategoryCount{
			Category:    category,
			Completions: count,
		})
	}

	if thisWeek > 0 {
		ov.DailyAverage = math.Round(float64(thisWeek)/7*10) / 10
	}

	err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM completions WHERE user_id = $1`, userID).Scan(&ov.Total)
	if err != nil {
		return nil, fmt.Errorf("failed to get total completions: %w", err)
	}

	streak, err := s.streakForUser(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	ov.CurrentStreak = streak

	return ov, nil
}

func (s *StatsService) streakForUser(ctx context.Context, userID uuid.UUID, today time.Time) (int, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT completed_on FROM completions WHERE user_id = $1 ORDER BY completed_on DESC`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get completion days: %w", err)
	}
	defer rows.Close()

	days := make(map[time.Time]struct{})
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return 0, err
		}
		days[truncateToDay(day)] = struct{}{}
	}
	if err = rows.Err(); err != nil {
		return 0, err
	}

	return currentStreak(days, today), nil
}

// CalendarMonth lists the days in a month on which the user recorded at
// least one completion, for the calendar page.
func (s *StatsService) CalendarMonth(ctx context.Context, clerkID string, year int, month time.Month) (*stats.CalendarMonth, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT completed_on FROM completions WHERE user_id = $1 AND completed_on >= $2 AND completed_on <= $3 ORDER BY completed_on`,
		userID, first, last)
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar completions: %w", err)
	}
	defer rows.Close()

	cm := &stats.CalendarMonth{Year: year, Month: month, Days: make([]time.Time, 0)}
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		cm.Days = append(cm.Days, day)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return cm, nil
}
