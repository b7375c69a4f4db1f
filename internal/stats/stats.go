package stats

import "time"

type DayCount struct {
	Day         string `json:"day"`
	Date        string `json:"date"`
	Completions int    `json:"completions"`
}

type CategoryCount struct {
	Category    string `json:"category"`
	Completions int    `json:"completions"`
}

// Overview is the statistics page payload: a 7-day completion series,
// per-category totals over the same window, and lifetime aggregates.
type Overview struct {
	Weekly        []DayCount      `json:"weekly"`
	Categories    []CategoryCount `json:"categories"`
	Total         int             `json:"total"`
	ThisWeek      int             `json:"this_week"`
	DailyAverage  float64         `json:"daily_average"`
	CurrentStreak int             `json:"current_streak"`
}

type CalendarMonth struct {
	Year  int         `json:"year"`
	Month time.Month  `json:"month"`
	Days  []time.Time `json:"days"`
}
