package timeslot

import (
	"errors"
	"reflect"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
)

// 2024-01-10 is a Wednesday.
func at(hour, min int) time.Time {
	return time.Date(2024, 1, 10, hour, min, 0, 0, time.UTC)
}

func morningSchedule() domain.ProviderSchedule {
	return domain.ProviderSchedule{
		WeekDays: map[time.Weekday][]domain.ClockRange{
			time.Wednesday: {{Start: 9 * 3600, End: 12 * 3600}},
		},
	}
}

func TestComputeSlots_BookingAroundApprovedAppointment(t *testing.T) {
	busy := []domain.TimeInterval{{Start: at(10, 0), End: at(10, 30)}}

	free, err := ComputeFreeIntervals(morningSchedule(), busy, at(0, 0), at(23, 59))
	if err != nil {
		t.Fatalf("ComputeFreeIntervals: %v", err)
	}

	slots, err := ComputeSlots([]ProviderFree{{ProviderID: 1, Capacity: 1, Free: free}}, Options{
		RequiredSeconds:   3600,
		SlotLengthSeconds: 1800,
	})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}

	// 09:30 would run into the 10:00 appointment; 11:00 ends exactly at 12:00.
	want := []string{"09:00", "10:30", "11:00"}
	if got := slots.Times("2024-01-10"); !reflect.DeepEqual(got, want) {
		t.Errorf("slots = %v, want %v", got, want)
	}
	if slots.Has(at(9, 30), nil) {
		t.Error("09:30 must not be offered")
	}
}

func TestComputeFreeIntervals_Conservation(t *testing.T) {
	busy := []domain.TimeInterval{
		{Start: at(11, 0), End: at(11, 15)},
		{Start: at(9, 30), End: at(10, 0)},
		{Start: at(8, 0), End: at(9, 10)},
	}

	free, err := ComputeFreeIntervals(morningSchedule(), busy, at(0, 0), at(23, 0))
	if err != nil {
		t.Fatalf("ComputeFreeIntervals: %v", err)
	}

	work := domain.TimeInterval{Start: at(9, 0), End: at(12, 0)}
	var total time.Duration
	for _, f := range free["2024-01-10"] {
		total += f.Duration()
		for _, b := range busy {
			if f.Overlaps(b) {
				t.Errorf("free %v overlaps busy %v", f, b)
			}
		}
	}
	for _, b := range busy {
		if clipped, ok := clip(b, work); ok {
			total += clipped.Duration()
		}
	}
	if total != work.Duration() {
		t.Errorf("free + busy = %v, want %v", total, work.Duration())
	}
}

func TestComputeFreeIntervals_Idempotent(t *testing.T) {
	busy := []domain.TimeInterval{{Start: at(10, 0), End: at(10, 30)}}
	a, err := ComputeFreeIntervals(morningSchedule(), busy, at(0, 0), at(23, 0))
	if err != nil {
		t.Fatal(err)
	}
	b, err := ComputeFreeIntervals(morningSchedule(), busy, at(0, 0), at(23, 0))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("results differ: %v vs %v", a, b)
	}
	if len(busy) != 1 || !busy[0].Start.Equal(at(10, 0)) {
		t.Error("input busy slice was mutated")
	}
}

func TestComputeFreeIntervals_ClampsToRange(t *testing.T) {
	free, err := ComputeFreeIntervals(morningSchedule(), nil, at(10, 15), at(23, 0))
	if err != nil {
		t.Fatal(err)
	}
	got := free["2024-01-10"]
	if len(got) != 1 || !got[0].Start.Equal(at(10, 15)) {
		t.Errorf("expected range start to clip working hours, got %v", got)
	}
}

func TestComputeFreeIntervals_InvalidRange(t *testing.T) {
	_, err := ComputeFreeIntervals(morningSchedule(), nil, at(12, 0), at(9, 0))
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestComputeSlots_NoFitYieldsEmpty(t *testing.T) {
	free, _ := ComputeFreeIntervals(morningSchedule(), nil, at(0, 0), at(23, 0))
	slots, err := ComputeSlots([]ProviderFree{{ProviderID: 1, Free: free}}, Options{
		RequiredSeconds:   4 * 3600,
		SlotLengthSeconds: 900,
	})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("expected no slots, got %v", slots)
	}
}

func TestComputeSlots_ServiceDurationAsSlotAndBuffers(t *testing.T) {
	free, _ := ComputeFreeIntervals(morningSchedule(), nil, at(0, 0), at(23, 0))

	slots, err := ComputeSlots([]ProviderFree{{ProviderID: 1, Free: free}}, Options{
		RequiredSeconds:       3600,
		ServiceDurationAsSlot: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := slots.Times("2024-01-10"), []string{"09:00", "10:00", "11:00"}; !reflect.DeepEqual(got, want) {
		t.Errorf("slots = %v, want %v", got, want)
	}

	slots, err = ComputeSlots([]ProviderFree{{ProviderID: 1, Free: free}}, Options{
		RequiredSeconds:     3600,
		SlotLengthSeconds:   1800,
		BufferBeforeSeconds: 900,
		BufferAfterSeconds:  900,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := slots.Times("2024-01-10"), []string{"09:30", "10:00", "10:30"}; !reflect.DeepEqual(got, want) {
		t.Errorf("buffered slots = %v, want %v", got, want)
	}
}

func TestComputeSlots_UnionsProvidersAndJoinable(t *testing.T) {
	freeA, _ := ComputeFreeIntervals(morningSchedule(), []domain.TimeInterval{{Start: at(9, 0), End: at(10, 0)}}, at(0, 0), at(23, 0))
	freeB, _ := ComputeFreeIntervals(morningSchedule(), nil, at(0, 0), at(23, 0))

	slots, err := ComputeSlots([]ProviderFree{
		{ProviderID: 2, Capacity: 1, Free: freeB},
		{ProviderID: 1, Capacity: 1, Free: freeA},
	}, Options{RequiredSeconds: 3600, SlotLengthSeconds: 3600})
	if err != nil {
		t.Fatal(err)
	}

	one := int64(1)
	if slots.Has(at(9, 0), &one) {
		t.Error("provider 1 is busy at 09:00")
	}
	if !slots.Has(at(9, 0), nil) {
		t.Error("provider 2 should keep 09:00 open")
	}
	if ps := slots["2024-01-10"]["10:00"]; len(ps) != 2 || ps[0].ProviderID != 1 {
		t.Errorf("expected both providers sorted at 10:00, got %v", ps)
	}

	slots.AddJoinable([]Joinable{{ProviderID: 1, Start: at(9, 0), Remaining: 3}, {ProviderID: 1, Start: at(8, 0)}})
	if !slots.Has(at(9, 0), &one) {
		t.Error("joinable appointment start should be offered")
	}
	if slots.Has(at(8, 0), nil) {
		t.Error("full appointment must not be offered")
	}
}

func TestComputeSlots_InvalidOptions(t *testing.T) {
	if _, err := ComputeSlots(nil, Options{RequiredSeconds: 0, SlotLengthSeconds: 900}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := ComputeSlots(nil, Options{RequiredSeconds: 900}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for zero slot length, got %v", err)
	}
}

func TestComputeSlots_DSTDayKeepsWallClockGrid(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	// Clocks jump from 02:00 to 03:00 on Sunday 2024-03-10.
	sched := domain.ProviderSchedule{
		WeekDays: map[time.Weekday][]domain.ClockRange{
			time.Sunday: {{Start: 9 * 3600, End: 12 * 3600}},
		},
	}
	free, err := ComputeFreeIntervals(sched, nil,
		time.Date(2024, 3, 10, 0, 0, 0, 0, ny), time.Date(2024, 3, 10, 23, 59, 0, 0, ny))
	if err != nil {
		t.Fatalf("ComputeFreeIntervals: %v", err)
	}

	slots, err := ComputeSlots([]ProviderFree{{ProviderID: 1, Capacity: 1, Free: free}}, Options{
		RequiredSeconds:   3600,
		SlotLengthSeconds: 1800,
	})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	want := []string{"09:00", "09:30", "10:00", "10:30", "11:00"}
	if got := slots.Times("2024-03-10"); !reflect.DeepEqual(got, want) {
		t.Errorf("slots = %v, want %v", got, want)
	}
}

func TestFirstBoundary(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	tests := []struct {
		name string
		in   time.Time
		step time.Duration
		want time.Time
	}{
		{"on the grid", at(9, 0), 30 * time.Minute, at(9, 0)},
		{"rounds up", at(9, 10), 30 * time.Minute, at(9, 30)},
		{"after spring forward", time.Date(2024, 3, 10, 9, 5, 0, 0, ny), 15 * time.Minute, time.Date(2024, 3, 10, 9, 15, 0, 0, ny)},
		{"after fall back", time.Date(2024, 11, 3, 14, 0, 0, 0, ny), time.Hour, time.Date(2024, 11, 3, 14, 0, 0, 0, ny)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstBoundary(tt.in, tt.step); !got.Equal(tt.want) {
				t.Errorf("firstBoundary(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
