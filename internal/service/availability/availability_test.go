package availability_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/repo/repotest"
	"github.com/Alijeyrad/simorq_booking/internal/service/availability"
	"github.com/Alijeyrad/simorq_booking/internal/settings"
)

// 2024-01-10 is a Wednesday.
var day = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

func clock(t time.Time) availability.Option {
	return availability.WithClock(func() time.Time { return t })
}

func baseSettings() settings.Static {
	return settings.Static{
		General: settings.General{
			TimeSlotLength:           1800,
			DefaultAppointmentStatus: domain.StatusApproved,
			DaysAvailableForBooking:  365,
		},
		Appointments: settings.Appointments{AllowBookingIfNotMin: true},
		Location:     time.UTC,
	}
}

type fixture struct {
	db       *repo.Client
	service  *domain.Service
	short    *domain.Service
	provider *domain.Provider
}

func morningProvider(name string, svc ...*domain.Service) *domain.Provider {
	services := map[int64]domain.ProviderService{}
	for _, s := range svc {
		services[s.ID] = domain.ProviderService{ServiceID: s.ID}
	}
	return &domain.Provider{
		FirstName: name,
		Services:  services,
		Schedule: domain.ProviderSchedule{
			WeekDays: map[time.Weekday][]domain.ClockRange{time.Wednesday: {{Start: 9 * 3600, End: 12 * 3600}}},
		},
	}
}

func setup(t *testing.T, minCapacity, maxCapacity int) fixture {
	t.Helper()
	ctx := context.Background()
	db := repotest.Open(t)

	svc := &domain.Service{Name: "Consultation", Duration: 3600, Price: 100, MinCapacity: minCapacity, MaxCapacity: maxCapacity}
	short := &domain.Service{Name: "Check-in", Duration: 1800, Price: 20, MinCapacity: 1, MaxCapacity: 1}
	for _, s := range []*domain.Service{svc, short} {
		if err := db.Service.Create(ctx, s); err != nil {
			t.Fatalf("create service: %v", err)
		}
	}
	p := morningProvider("Reza", svc, short)
	if err := db.Provider.Create(ctx, p); err != nil {
		t.Fatalf("create provider: %v", err)
	}
	return fixture{db: db, service: svc, short: short, provider: p}
}

func book(t *testing.T, db *repo.Client, a *domain.Appointment) {
	t.Helper()
	if err := db.Appointment.Create(context.Background(), a); err != nil {
		t.Fatalf("create appointment: %v", err)
	}
}

func dayRequest(f fixture) availability.FreeSlotsRequest {
	return availability.FreeSlotsRequest{
		ServiceID:   f.service.ID,
		Start:       day,
		End:         day.AddDate(0, 0, 1),
		ProviderIDs: []int64{f.provider.ID},
		Persons:     1,
		FrontEnd:    true,
	}
}

func TestGetFreeSlotsAroundAppointment(t *testing.T) {
	f := setup(t, 1, 1)
	book(t, f.db, &domain.Appointment{
		ServiceID:    f.short.ID,
		ProviderID:   f.provider.ID,
		BookingStart: day.Add(10 * time.Hour),
		BookingEnd:   day.Add(10*time.Hour + 30*time.Minute),
		Status:       domain.StatusApproved,
		Bookings:     []*domain.CustomerBooking{{CustomerID: 1, Status: domain.StatusApproved, Persons: 1}},
	})

	svc := availability.New(f.db, baseSettings(), nil, nil, clock(day.AddDate(0, 0, -9)))
	slots, err := svc.GetFreeSlots(context.Background(), nil, dayRequest(f))
	if err != nil {
		t.Fatalf("GetFreeSlots: %v", err)
	}

	want := []string{"09:00", "10:30", "11:00"}
	if got := slots.Times("2024-01-10"); !slices.Equal(got, want) {
		t.Errorf("times = %v, want %v", got, want)
	}
	if p := slots["2024-01-10"]["11:00"]; len(p) != 1 || p[0].ProviderID != f.provider.ID {
		t.Errorf("11:00 providers = %+v", p)
	}
}

func TestGetFreeSlotsClampsToBookingWindow(t *testing.T) {
	f := setup(t, 1, 1)
	now := day.Add(9*time.Hour + 10*time.Minute)

	set := baseSettings()
	set.General.MinimumTimeBeforeBooking = 3600
	svc := availability.New(f.db, set, nil, nil, clock(now))

	slots, err := svc.GetFreeSlots(context.Background(), nil, dayRequest(f))
	if err != nil {
		t.Fatal(err)
	}
	// Earliest front-end booking is 10:10; the grid resumes at 10:30.
	if got := slots.Times("2024-01-10"); !slices.Equal(got, []string{"10:30", "11:00"}) {
		t.Errorf("front end times = %v", got)
	}

	req := dayRequest(f)
	req.FrontEnd = false
	slots, err = svc.GetFreeSlots(context.Background(), nil, req)
	if err != nil {
		t.Fatal(err)
	}
	if got := slots.Times("2024-01-10"); len(got) != 5 {
		t.Errorf("back office should see the whole morning, got %v", got)
	}

	req.Start, req.End = day.AddDate(3, 0, 0), day.AddDate(3, 0, 1)
	slots, err = svc.GetFreeSlots(context.Background(), nil, req)
	if err != nil || len(slots) != 0 {
		t.Errorf("range beyond the horizon should be empty, got %v, %v", slots, err)
	}
}

func TestGetFreeSlotsInvalidInput(t *testing.T) {
	f := setup(t, 1, 1)
	svc := availability.New(f.db, baseSettings(), nil, nil, clock(day.AddDate(0, 0, -1)))

	req := dayRequest(f)
	req.Start, req.End = req.End, req.Start
	if _, err := svc.GetFreeSlots(context.Background(), nil, req); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}

	req = dayRequest(f)
	req.ServiceID = 999
	if _, err := svc.GetFreeSlots(context.Background(), nil, req); !repo.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestIsSlotFree(t *testing.T) {
	f := setup(t, 1, 1)
	appt := &domain.Appointment{
		ServiceID:    f.short.ID,
		ProviderID:   f.provider.ID,
		BookingStart: day.Add(10 * time.Hour),
		BookingEnd:   day.Add(10*time.Hour + 30*time.Minute),
		Status:       domain.StatusPending,
		Bookings:     []*domain.CustomerBooking{{CustomerID: 1, Status: domain.StatusPending, Persons: 1}},
	}
	book(t, f.db, appt)
	svc := availability.New(f.db, baseSettings(), nil, nil, clock(day.AddDate(0, 0, -1)))

	tests := []struct {
		name    string
		at      time.Time
		exclude *int64
		want    bool
	}{
		{"free grid point", day.Add(10*time.Hour + 30*time.Minute), nil, true},
		{"overlaps pending appointment", day.Add(9*time.Hour + 30*time.Minute), nil, false},
		{"rescheduled appointment ignored", day.Add(9*time.Hour + 30*time.Minute), &appt.ID, true},
		{"off grid", day.Add(9*time.Hour + 15*time.Minute), nil, false},
		{"outside working hours", day.Add(12 * time.Hour), nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.IsSlotFree(context.Background(), nil, availability.SlotRequest{
				ServiceID:            f.service.ID,
				At:                   tc.at,
				ProviderID:           f.provider.ID,
				ExcludeAppointmentID: tc.exclude,
				Persons:              1,
				FrontEnd:             true,
			})
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("IsSlotFree(%s) = %v, want %v", tc.at.Format("15:04"), got, tc.want)
			}
		})
	}
}

func TestJoinableGroupAppointment(t *testing.T) {
	tests := []struct {
		name      string
		status    domain.BookingStatus
		persons   int
		minCap    int
		settings  func(*settings.Static)
		wantJoin  bool
		remaining int
	}{
		{name: "approved with room", status: domain.StatusApproved, persons: 2, wantJoin: true, remaining: 2},
		{name: "approved over capacity", status: domain.StatusApproved, persons: 3},
		{name: "pending not allowed", status: domain.StatusPending, persons: 1},
		{
			name: "pending allowed", status: domain.StatusPending, persons: 1, wantJoin: true, remaining: 2,
			settings: func(s *settings.Static) { s.Appointments.AllowBookingIfPending = true },
		},
		{
			name: "pending still filling to min", status: domain.StatusPending, persons: 1, minCap: 2, wantJoin: true, remaining: 2,
			settings: func(s *settings.Static) { s.Appointments.OpenedBookingAfterMin = true },
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t, max(tc.minCap, 1), 3)
			book(t, f.db, &domain.Appointment{
				ServiceID:    f.service.ID,
				ProviderID:   f.provider.ID,
				BookingStart: day.Add(10 * time.Hour),
				BookingEnd:   day.Add(11 * time.Hour),
				Status:       tc.status,
				Bookings:     []*domain.CustomerBooking{{CustomerID: 1, Status: tc.status, Persons: 1}},
			})

			set := baseSettings()
			if tc.settings != nil {
				tc.settings(&set)
			}
			svc := availability.New(f.db, set, nil, nil, clock(day.AddDate(0, 0, -1)))
			req := dayRequest(f)
			req.Persons = tc.persons
			slots, err := svc.GetFreeSlots(context.Background(), nil, req)
			if err != nil {
				t.Fatal(err)
			}

			providers, ok := slots["2024-01-10"]["10:00"]
			if ok != tc.wantJoin {
				t.Fatalf("10:00 offered = %v, want %v (slots %v)", ok, tc.wantJoin, slots.Times("2024-01-10"))
			}
			if tc.wantJoin && providers[0].Capacity != tc.remaining {
				t.Errorf("remaining = %d, want %d", providers[0].Capacity, tc.remaining)
			}
			if slots.Has(day.Add(10*time.Hour+30*time.Minute), nil) {
				t.Error("10:30 overlaps the group appointment and must not be offered")
			}
		})
	}
}

func TestGloballyBusySlot(t *testing.T) {
	f := setup(t, 1, 1)
	other := morningProvider("Sima", f.service, f.short)
	if err := f.db.Provider.Create(context.Background(), other); err != nil {
		t.Fatal(err)
	}
	book(t, f.db, &domain.Appointment{
		ServiceID:    f.short.ID,
		ProviderID:   other.ID,
		BookingStart: day.Add(10 * time.Hour),
		BookingEnd:   day.Add(10*time.Hour + 30*time.Minute),
		Status:       domain.StatusApproved,
		Bookings:     []*domain.CustomerBooking{{CustomerID: 1, Status: domain.StatusApproved, Persons: 1}},
	})

	for _, global := range []bool{false, true} {
		set := baseSettings()
		set.Appointments.IsGloballyBusySlot = global
		svc := availability.New(f.db, set, nil, nil, clock(day.AddDate(0, 0, -1)))

		slots, err := svc.GetFreeSlots(context.Background(), nil, dayRequest(f))
		if err != nil {
			t.Fatal(err)
		}
		want := 5
		if global {
			want = 3
		}
		if got := slots.Times("2024-01-10"); len(got) != want {
			t.Errorf("global=%v: times = %v, want %d", global, got, want)
		}
	}
}

type fakeEvents map[int64][]domain.TimeInterval

func (f fakeEvents) RemoveSlotsFromEvents(context.Context, []*domain.Provider, domain.TimeInterval) (map[int64][]domain.TimeInterval, error) {
	return f, nil
}

type fakeCalendar struct {
	busy map[int64][]domain.TimeInterval
	fail map[int64]bool
}

func (f fakeCalendar) BusyPeriods(_ context.Context, p *domain.Provider, _ domain.TimeInterval, _ []string) ([]domain.TimeInterval, error) {
	if f.fail[p.ID] {
		return nil, errors.New("token expired")
	}
	return f.busy[p.ID], nil
}

func TestEventAndCalendarBlocks(t *testing.T) {
	f := setup(t, 1, 1)
	linked := morningProvider("Nika", f.service)
	linked.Calendars = []*domain.CalendarLink{{Kind: domain.CalendarGoogle, CalendarID: "primary", Token: "sealed"}}
	broken := morningProvider("Omid", f.service)
	broken.Calendars = []*domain.CalendarLink{{Kind: domain.CalendarOutlook, CalendarID: "main", Token: "sealed"}}
	for _, p := range []*domain.Provider{linked, broken} {
		if err := f.db.Provider.Create(context.Background(), p); err != nil {
			t.Fatal(err)
		}
	}

	events := fakeEvents{f.provider.ID: {{Start: day.Add(11 * time.Hour), End: day.Add(12 * time.Hour)}}}
	calendars := fakeCalendar{
		busy: map[int64][]domain.TimeInterval{linked.ID: {{Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)}}},
		fail: map[int64]bool{broken.ID: true},
	}
	svc := availability.New(f.db, baseSettings(), events, calendars, clock(day.AddDate(0, 0, -1)))

	req := dayRequest(f)
	req.ProviderIDs = nil
	slots, err := svc.GetFreeSlots(context.Background(), nil, req)
	if err != nil {
		t.Fatalf("calendar failures must not fail the query: %v", err)
	}

	has := func(hm string, id int64) bool {
		at, _ := time.Parse("2006-01-02 15:04", "2024-01-10 "+hm)
		return slots.Has(at, &id)
	}
	if has("10:30", f.provider.ID) || !has("10:00", f.provider.ID) {
		t.Error("event block not applied")
	}
	if has("09:00", linked.ID) || !has("10:00", linked.ID) {
		t.Error("calendar block not applied")
	}
	if !has("09:00", broken.ID) || !has("11:00", broken.ID) {
		t.Error("failed calendar should leave the provider free")
	}
}

func TestCacheReusesLookups(t *testing.T) {
	f := setup(t, 1, 1)
	svc := availability.New(f.db, baseSettings(), nil, nil)
	cache := svc.NewCache()

	ctx := context.Background()
	first, err := cache.Service(ctx, f.service.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := cache.Service(ctx, f.service.ID)
	if first != second {
		t.Error("service should be served from the cache")
	}
	a, _ := cache.Providers(ctx, f.service.ID, []int64{f.provider.ID})
	b, _ := cache.Providers(ctx, f.service.ID, []int64{f.provider.ID})
	if len(a) != 1 || &a[0] != &b[0] {
		t.Error("providers should be served from the cache")
	}
}

func TestBookingWindowBounds(t *testing.T) {
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	minTests := []struct {
		name     string
		required time.Time
		frontEnd bool
		seconds  int
		want     time.Time
	}{
		{"front end lead time", time.Time{}, true, 3600, now.Add(time.Hour)},
		{"back office reaches a year back", time.Time{}, false, 3600, now.AddDate(0, 0, -365)},
		{"later date starts at midnight", now.AddDate(0, 0, 3), true, 0, time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC)},
		{"same day keeps lead time", now.Add(5 * time.Hour), true, 600, now.Add(10 * time.Minute)},
	}
	for _, tc := range minTests {
		t.Run(tc.name, func(t *testing.T) {
			if got := availability.MinimumDateTimeForBooking(now, tc.required, tc.frontEnd, tc.seconds); !got.Equal(tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}

	maxTests := []struct {
		name     string
		frontEnd bool
		days     int
		want     time.Time
	}{
		{"front end setting", true, 30, now.AddDate(0, 0, 30)},
		{"front end unset", true, 0, now.AddDate(0, 0, 365)},
		{"back office floor", false, 30, now.AddDate(0, 0, 365)},
		{"back office longer setting", false, 400, now.AddDate(0, 0, 400)},
	}
	for _, tc := range maxTests {
		t.Run(tc.name, func(t *testing.T) {
			if got := availability.MaximumDateTimeForBooking(now, time.Time{}, tc.frontEnd, tc.days); !got.Equal(tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}
