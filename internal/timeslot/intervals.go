// Package timeslot turns provider working hours and busy periods into free
// intervals and bookable slot start times. Everything here is pure.
package timeslot

import (
	"fmt"
	"slices"
	"time"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
)

const (
	DateKey = "2006-01-02"
	TimeKey = "15:04"
)

// FreeIntervals maps a date key to that date's free intervals, sorted.
type FreeIntervals map[string][]domain.TimeInterval

// ComputeFreeIntervals subtracts busy from the schedule's working hours for
// every date touched by [rangeStart, rangeEnd]. Dates are taken in
// rangeStart's location. Dates without free time are omitted.
func ComputeFreeIntervals(schedule domain.ProviderSchedule, busy []domain.TimeInterval, rangeStart, rangeEnd time.Time) (FreeIntervals, error) {
	window, err := domain.NewTimeInterval(rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("compute free intervals: %w", err)
	}

	loc := rangeStart.Location()
	sorted := slices.Clone(busy)
	domain.SortIntervals(sorted)

	out := make(FreeIntervals)
	last := startOfDay(rangeEnd.In(loc))
	for day := startOfDay(rangeStart); !day.After(last); day = day.AddDate(0, 0, 1) {
		var free []domain.TimeInterval
		for _, w := range schedule.WorkingIntervals(day) {
			clipped, ok := clip(w, window)
			if !ok {
				continue
			}
			free = append(free, subtractAll(clipped, sorted)...)
		}
		if len(free) > 0 {
			domain.SortIntervals(free)
			out[day.Format(DateKey)] = free
		}
	}
	return out, nil
}

// subtractAll removes every busy interval from w. busy must be sorted.
func subtractAll(w domain.TimeInterval, busy []domain.TimeInterval) []domain.TimeInterval {
	parts := []domain.TimeInterval{w}
	for _, b := range busy {
		if !b.End.After(w.Start) {
			continue
		}
		if !b.Start.Before(w.End) {
			break
		}
		next := make([]domain.TimeInterval, 0, len(parts)+1)
		for _, p := range parts {
			next = append(next, p.Subtract(b)...)
		}
		parts = next
	}
	return slices.DeleteFunc(parts, domain.TimeInterval.IsEmpty)
}

func clip(i, window domain.TimeInterval) (domain.TimeInterval, bool) {
	if i.Start.Before(window.Start) {
		i.Start = window.Start
	}
	if i.End.After(window.End) {
		i.End = window.End
	}
	return i, !i.IsEmpty()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
