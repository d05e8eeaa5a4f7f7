package domain

import (
	"errors"
	"testing"
	"time"
)

func period(id int64, start time.Time, d time.Duration) *EventPeriod {
	return &EventPeriod{ID: id, PeriodStart: start, PeriodEnd: start.Add(d)}
}

func TestShiftByCycle(t *testing.T) {
	base := time.Date(2024, 1, 31, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		cycle Cycle
		n     int
		want  time.Time
	}{
		{CycleDaily, 2, time.Date(2024, 2, 2, 18, 0, 0, 0, time.UTC)},
		{CycleWeekly, 1, time.Date(2024, 2, 7, 18, 0, 0, 0, time.UTC)},
		{CycleMonthly, 2, time.Date(2024, 3, 31, 18, 0, 0, 0, time.UTC)},
		{CycleYearly, 1, time.Date(2025, 1, 31, 18, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ShiftByCycle(base, tt.cycle, tt.n)
		if err != nil {
			t.Fatalf("%s: %v", tt.cycle, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("%s x%d: got %v, want %v", tt.cycle, tt.n, got, tt.want)
		}
	}

	if _, err := ShiftByCycle(base, "hourly", 1); !errors.Is(err, ErrUnknownCycle) {
		t.Errorf("expected ErrUnknownCycle, got %v", err)
	}
}

func TestBuildFollowingEvent_KeepsPeriodIDs(t *testing.T) {
	start := time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC)
	origin := &Event{
		ID:        1,
		Name:      "Yoga",
		Price:     20,
		Recurring: &Recurring{Cycle: CycleWeekly, Until: start.AddDate(0, 2, 0), Order: 1},
		Periods: []*EventPeriod{
			period(10, start, time.Hour),
			period(11, start.AddDate(0, 0, 1), time.Hour),
		},
	}
	following := &Event{
		ID:        2,
		Name:      "Old name",
		Recurring: &Recurring{Cycle: CycleWeekly, Until: origin.Recurring.Until, Order: 3},
		Periods:   []*EventPeriod{period(20, start, 2*time.Hour)},
	}

	if err := BuildFollowingEvent(following, origin, origin.Periods); err != nil {
		t.Fatalf("BuildFollowingEvent: %v", err)
	}

	if len(following.Periods) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(following.Periods))
	}
	if following.Periods[0].ID != 20 || following.Periods[1].ID != 0 {
		t.Errorf("period ids not kept by position: %d, %d", following.Periods[0].ID, following.Periods[1].ID)
	}
	wantStart := start.AddDate(0, 0, 14)
	if !following.Periods[0].PeriodStart.Equal(wantStart) || !following.Periods[0].PeriodEnd.Equal(wantStart.Add(time.Hour)) {
		t.Errorf("first period = %v - %v, want start %v", following.Periods[0].PeriodStart, following.Periods[0].PeriodEnd, wantStart)
	}
	if following.Name != "Yoga" || following.Price != 20 {
		t.Errorf("descriptive fields not copied: %q %v", following.Name, following.Price)
	}
}

func TestRecurringPeriods(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	periods := []*EventPeriod{period(1, start, time.Hour)}

	sets, err := RecurringPeriods(Recurring{Cycle: CycleDaily, Until: start.AddDate(0, 0, 3)}, periods, 0)
	if err != nil {
		t.Fatalf("RecurringPeriods: %v", err)
	}
	if len(sets) != 3 {
		t.Fatalf("expected 3 followers, got %d", len(sets))
	}
	if last := sets[2][0].PeriodStart; !last.Equal(start.AddDate(0, 0, 3)) {
		t.Errorf("last follower starts %v", last)
	}
	if sets[0][0].ID != 0 {
		t.Error("generated periods must not carry ids")
	}

	_, err = RecurringPeriods(Recurring{Cycle: CycleDaily, Until: start.AddDate(1, 0, 0)}, periods, 10)
	if !errors.Is(err, ErrTooManyOccurrences) {
		t.Errorf("expected ErrTooManyOccurrences, got %v", err)
	}
}

func TestPeriodsEqual(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	a := []*EventPeriod{period(1, start, time.Hour)}
	b := ClonePeriods(a, true)
	if !PeriodsEqual(a, b) {
		t.Error("clone should be equal")
	}
	b[0].PeriodEnd = b[0].PeriodEnd.Add(time.Minute)
	if PeriodsEqual(a, b) {
		t.Error("changed end should differ")
	}
	if PeriodsEqual(a, ClonePeriods(a, false)) {
		t.Error("stripped ids should differ")
	}
}

func TestDailyBlocks(t *testing.T) {
	p := &EventPeriod{
		PeriodStart: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC),
	}
	blocks := p.DailyBlocks()
	if len(blocks) != 3 {
		t.Fatalf("expected 3 daily blocks, got %v", blocks)
	}
	for i, b := range blocks {
		if b.Start.Hour() != 10 || b.End.Hour() != 12 || b.Start.Day() != 1+i {
			t.Errorf("block %d = %v", i, b)
		}
	}
}

func TestEventClone_IsDeep(t *testing.T) {
	parent := int64(1)
	e := &Event{
		ID:        2,
		ParentID:  &parent,
		Recurring: &Recurring{Cycle: CycleWeekly, Order: 2},
		Periods:   []*EventPeriod{period(5, time.Now(), time.Hour)},
		Bookings:  []*CustomerBooking{{ID: 9, Status: StatusApproved}},
	}
	c := e.Clone()
	*c.ParentID = 7
	c.Recurring.Order = 9
	c.Periods[0].ID = 99
	c.Bookings[0].Status = StatusRejected

	if *e.ParentID != 1 || e.Recurring.Order != 2 || e.Periods[0].ID != 5 || e.Bookings[0].Status != StatusApproved {
		t.Error("clone shares state with the original")
	}
}
