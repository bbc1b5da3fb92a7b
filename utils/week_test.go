package utils

import (
	"testing"
	"time"
)

func TestWeekNumber(t *testing.T) {
	tests := []struct {
		date    time.Time
		week    int
		isoYear int
	}{
		{time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC), 1, 2024},
		{time.Date(2024, time.December, 30, 0, 0, 0, 0, time.UTC), 1, 2025},
		{time.Date(2021, time.January, 3, 0, 0, 0, 0, time.UTC), 53, 2020},
		{time.Date(2025, time.June, 18, 0, 0, 0, 0, time.UTC), 25, 2025},
	}
	for _, tt := range tests {
		week, year := WeekNumber(tt.date)
		if week != tt.week || year != tt.isoYear {
			t.Errorf("WeekNumber(%s) = (%d, %d), want (%d, %d)", tt.date.Format("2006-01-02"), week, year, tt.week, tt.isoYear)
		}
	}
}

func TestWeeksInYear(t *testing.T) {
	tests := map[int]int{
		2020: 53,
		2024: 52,
		2025: 52,
		2026: 53,
	}
	for year, want := range tests {
		if got := WeeksInYear(year); got != want {
			t.Errorf("WeeksInYear(%d) = %d, want %d", year, got, want)
		}
	}
}

func TestWeekRange(t *testing.T) {
	tests := []struct {
		week, year int
		start, end string
	}{
		{1, 2024, "2024-01-01", "2024-01-07"},
		{1, 2025, "2024-12-30", "2025-01-05"},
		{53, 2026, "2026-12-28", "2027-01-03"},
		{25, 2025, "2025-06-16", "2025-06-22"},
	}
	for _, tt := range tests {
		start, end := WeekRange(tt.week, tt.year)
		if got := start.Format("2006-01-02"); got != tt.start {
			t.Errorf("WeekRange(%d, %d) start = %s, want %s", tt.week, tt.year, got, tt.start)
		}
		if got := end.Format("2006-01-02"); got != tt.end {
			t.Errorf("WeekRange(%d, %d) end = %s, want %s", tt.week, tt.year, got, tt.end)
		}
		if start.Weekday() != time.Monday {
			t.Errorf("WeekRange(%d, %d) starts on %s", tt.week, tt.year, start.Weekday())
		}
	}
}

func TestWeekRangeContainsItsWeek(t *testing.T) {
	for year := 2024; year <= 2030; year++ {
		for week := 1; week <= WeeksInYear(year); week++ {
			start, end := WeekRange(week, year)
			for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
				w, y := WeekNumber(d)
				if w != week || y != year {
					t.Fatalf("%s is in week %d/%d, want %d/%d", d.Format("2006-01-02"), w, y, week, year)
				}
			}
		}
	}
}

func TestIsValidVideoURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.tiktok.com/@someone/video/123", true},
		{"https://vm.tiktok.com/abc", true},
		{"https://www.instagram.com/reel/xyz/", true},
		{"https://instagram.com/p/xyz", true},
		{"https://youtube.com/watch?v=1", false},
		{"https://tiktok.com.evil.example/video", false},
		{"https://nottiktok.com/video", false},
		{"ftp://tiktok.com/video", false},
		{"not a url", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValidVideoURL(tt.url); got != tt.want {
			t.Errorf("IsValidVideoURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
