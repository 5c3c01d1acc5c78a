package services

import (
	"errors"
	"fmt"
	"time"

	"treasury-reconciler/internal/models"
)

var ErrUnsupportedInterval = errors.New("unsupported periodic interval unit")

// MonthlyWindow returns the settlement window for now: max is the configured
// day, hour and minute of now's calendar month, min is the same day one month
// earlier at midnight. Days past the end of a month are clamped to its last day.
func MonthlyWindow(cfg models.PeriodicConfig, now time.Time) (time.Time, time.Time, error) {
	if cfg.IntervalUnit != models.IntervalMonth {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrUnsupportedInterval, cfg.IntervalUnit)
	}

	day, hour, minute := 1, 0, 0
	if cfg.DayOfMonth != nil {
		day = *cfg.DayOfMonth
	}
	if cfg.Hour != nil {
		hour = *cfg.Hour
	}
	if cfg.Minute != nil {
		minute = *cfg.Minute
	}

	loc := now.Location()
	year, month := now.Year(), now.Month()
	maxDate := time.Date(year, month, clampDay(year, month, day), hour, minute, 0, 0, loc)

	prevYear, prevMonth := year, month-1
	if prevMonth < time.January {
		prevYear, prevMonth = year-1, time.December
	}
	minDate := time.Date(prevYear, prevMonth, clampDay(prevYear, prevMonth, day), 0, 0, 0, 0, loc)

	return minDate, maxDate, nil
}

// InWindow reports whether now falls inside [min, max].
func InWindow(minDate, maxDate, now time.Time) bool {
	return !now.Before(minDate) && !now.After(maxDate)
}

func clampDay(year int, month time.Month, day int) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	if day < 1 {
		return 1
	}
	return day
}
