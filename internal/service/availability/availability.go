package availability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/settings"
	"github.com/Alijeyrad/simorq_booking/internal/timeslot"
)

const (
	meterName = "github.com/Alijeyrad/simorq_booking/internal/service/availability"

	// defaultDaysAvailable is the floor of the back-office booking horizon.
	defaultDaysAvailable = 365

	calendarConcurrency = 4
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type FreeSlotsRequest struct {
	ServiceID            int64
	LocationID           *int64
	Start                time.Time
	End                  time.Time
	ProviderIDs          []int64
	Extras               []domain.SelectedExtra
	ExcludeAppointmentID *int64
	Persons              int
	FrontEnd             bool
}

// SlotRequest asks whether one provider can take a booking at At.
type SlotRequest struct {
	ServiceID            int64
	At                   time.Time
	ProviderID           int64
	Extras               []domain.SelectedExtra
	ExcludeAppointmentID *int64
	Persons              int
	FrontEnd             bool
}

// EventBlocks reports the time approved events hold on providers.
type EventBlocks interface {
	RemoveSlotsFromEvents(ctx context.Context, providers []*domain.Provider, window domain.TimeInterval) (map[int64][]domain.TimeInterval, error)
}

// CalendarSource reads busy periods from a provider's external calendars.
// excludeEventIDs are calendar event ids that must not count as busy.
type CalendarSource interface {
	BusyPeriods(ctx context.Context, provider *domain.Provider, window domain.TimeInterval, excludeEventIDs []string) ([]domain.TimeInterval, error)
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	NewCache() *Cache
	GetFreeSlots(ctx context.Context, cache *Cache, req FreeSlotsRequest) (timeslot.Slots, error)
	IsSlotFree(ctx context.Context, cache *Cache, req SlotRequest) (bool, error)
	// BookingWindow is the [minimum, maximum] booking time for an entity
	// at this moment.
	BookingWindow(ctx context.Context, cache *Cache, entity domain.EntitySettings, frontEnd bool) (domain.TimeInterval, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type availabilityService struct {
	db        *repo.Client
	store     settings.Store
	events    EventBlocks
	calendars CalendarSource
	now       func() time.Time
	queries   metric.Int64Counter
}

type Option func(*availabilityService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *availabilityService) { s.now = now }
}

// New builds the orchestrator. events and calendars may be nil.
func New(db *repo.Client, store settings.Store, events EventBlocks, calendars CalendarSource, opts ...Option) Service {
	counter, _ := otel.Meter(meterName).Int64Counter(
		"booking_free_slot_queries_total",
		metric.WithDescription("Total number of free slot computations"),
		metric.WithUnit("{query}"),
	)
	s := &availabilityService{
		db:        db,
		store:     store,
		events:    events,
		calendars: calendars,
		now:       time.Now,
		queries:   counter,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *availabilityService) NewCache() *Cache {
	return NewCache(s.db, s.store)
}

func (s *availabilityService) BookingWindow(ctx context.Context, cache *Cache, entity domain.EntitySettings, frontEnd bool) (domain.TimeInterval, error) {
	if cache == nil {
		cache = s.NewCache()
	}
	set, err := cache.Settings(ctx)
	if err != nil {
		return domain.TimeInterval{}, err
	}
	return s.bookingWindow(set, entity, frontEnd), nil
}

func (s *availabilityService) bookingWindow(set *settings.Settings, entity domain.EntitySettings, frontEnd bool) domain.TimeInterval {
	now := s.now().In(set.Location)
	minSeconds := lo.CoalesceOrEmpty(entity.MinimumTimeBeforeBooking, set.General.MinimumTimeBeforeBooking)
	days := lo.CoalesceOrEmpty(entity.DaysAvailableForBooking, set.General.DaysAvailableForBooking)
	return domain.TimeInterval{
		Start: MinimumDateTimeForBooking(now, time.Time{}, frontEnd, minSeconds),
		End:   MaximumDateTimeForBooking(now, time.Time{}, frontEnd, days),
	}
}

// ---------------------------------------------------------------------------
// Free slots
// ---------------------------------------------------------------------------

func (s *availabilityService) GetFreeSlots(ctx context.Context, cache *Cache, req FreeSlotsRequest) (timeslot.Slots, error) {
	if cache == nil {
		cache = s.NewCache()
	}
	if req.End.Before(req.Start) {
		return nil, fmt.Errorf("get free slots: %w: end before start", domain.ErrInvalidArgument)
	}

	svc, err := cache.Service(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if svc.Duration <= 0 {
		return nil, ErrInvalidService
	}
	set, err := cache.Settings(ctx)
	if err != nil {
		return nil, err
	}

	selected := lo.Filter(req.Extras, func(e domain.SelectedExtra, _ int) bool {
		_, ok := svc.ExtraByID(e.ID)
		return ok
	})
	persons := max(req.Persons, 1)

	window := s.bookingWindow(set, svc.Settings, req.FrontEnd)
	start := latest(req.Start, window.Start).In(set.Location)
	end := earliest(req.End, window.End).In(set.Location)

	out := make(timeslot.Slots)
	if !end.After(start) {
		return out, nil
	}
	s.queries.Add(ctx, 1, metric.WithAttributes(attribute.Bool("front_end", req.FrontEnd)))

	providers, err := cache.Providers(ctx, svc.ID, req.ProviderIDs)
	if err != nil {
		return nil, err
	}
	if req.LocationID != nil {
		providers = lo.Filter(providers, func(p *domain.Provider, _ int) bool {
			return p.LocationID == nil || *p.LocationID == *req.LocationID
		})
	}
	if len(providers) == 0 {
		return out, nil
	}

	busy, joinable, err := s.collectBusy(ctx, cache, set, svc, providers, req, start, end)
	if err != nil {
		return nil, err
	}

	free := make([]timeslot.ProviderFree, 0, len(providers))
	for _, p := range providers {
		minCap, maxCap := p.Capacity(svc)
		if persons > maxCap {
			continue
		}
		if !set.Appointments.AllowBookingIfNotMin && persons < minCap {
			continue
		}
		intervals, err := timeslot.ComputeFreeIntervals(p.Schedule, busy[p.ID], start, end)
		if err != nil {
			return nil, err
		}
		free = append(free, timeslot.ProviderFree{
			ProviderID: p.ID,
			LocationID: lo.CoalesceOrEmpty(req.LocationID, p.LocationID),
			Capacity:   maxCap,
			Free:       intervals,
		})
	}

	required := svc.RequiredSeconds(selected)
	out, err = timeslot.ComputeSlots(free, timeslot.Options{
		RequiredSeconds:       required,
		SlotLengthSeconds:     lo.CoalesceOrEmpty(set.General.TimeSlotLength, required),
		ServiceDurationAsSlot: set.General.ServiceDurationAsSlot,
		BufferBeforeSeconds:   svc.TimeBefore,
		BufferAfterSeconds:    svc.TimeAfter,
		BufferTimeInSlot:      set.General.BufferTimeInSlot,
	})
	if err != nil {
		return nil, fmt.Errorf("get free slots: %w", err)
	}
	out.AddJoinable(lo.Filter(joinable, func(j timeslot.Joinable, _ int) bool {
		return !j.Start.Before(start) && j.Start.Before(end)
	}))
	return out, nil
}

// collectBusy gathers per-provider busy blocks from appointments, events
// and external calendars, and the group appointments the request may join.
func (s *availabilityService) collectBusy(
	ctx context.Context,
	cache *Cache,
	set *settings.Settings,
	svc *domain.Service,
	providers []*domain.Provider,
	req FreeSlotsRequest,
	start, end time.Time,
) (map[int64][]domain.TimeInterval, []timeslot.Joinable, error) {
	db := s.db.Use(ctx)
	providerIDs := lo.Map(providers, func(p *domain.Provider, _ int) int64 { return p.ID })
	byID := lo.KeyBy(providers, func(p *domain.Provider) int64 { return p.ID })
	busy := make(map[int64][]domain.TimeInterval, len(providers))

	filter := repo.AppointmentFilter{
		From:      start.AddDate(0, 0, -1),
		To:        end.AddDate(0, 0, 1),
		Statuses:  []domain.BookingStatus{domain.StatusApproved, domain.StatusPending},
		ExcludeID: req.ExcludeAppointmentID,
	}
	if !set.Appointments.IsGloballyBusySlot {
		filter.ProviderIDs = providerIDs
	}
	appointments, err := db.Appointment.List(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("load appointments: %w", err)
	}

	persons := max(req.Persons, 1)
	var joinable []timeslot.Joinable
	for _, a := range appointments {
		apptSvc, err := cache.Service(ctx, a.ServiceID)
		if err != nil {
			return nil, nil, err
		}
		block := a.BusyInterval(apptSvc.TimeBefore, apptSvc.TimeAfter)
		if set.Appointments.IsGloballyBusySlot {
			for _, id := range providerIDs {
				busy[id] = append(busy[id], block)
			}
		} else {
			busy[a.ProviderID] = append(busy[a.ProviderID], block)
		}

		p, ok := byID[a.ProviderID]
		if !ok || a.ServiceID != svc.ID {
			continue
		}
		if j, ok := joinableFrom(a, p, svc, set, persons, req.FrontEnd); ok {
			j.Start = j.Start.In(start.Location())
			joinable = append(joinable, j)
		}
	}

	if s.events != nil {
		window := domain.TimeInterval{Start: start.AddDate(0, 0, -10), End: start.AddDate(2, 0, 0)}
		blocks, err := s.events.RemoveSlotsFromEvents(ctx, providers, window)
		if err != nil {
			return nil, nil, fmt.Errorf("load event blocks: %w", err)
		}
		for id, b := range blocks {
			busy[id] = append(busy[id], b...)
		}
	}

	if s.calendars != nil {
		exclude, err := s.excludedCalendarEvents(ctx, db, req.ExcludeAppointmentID)
		if err != nil {
			return nil, nil, err
		}
		for id, b := range s.calendarBusy(ctx, providers, domain.TimeInterval{Start: start, End: end}, exclude) {
			busy[id] = append(busy[id], b...)
		}
	}
	return busy, joinable, nil
}

// calendarBusy fetches every provider's external calendar concurrently.
// Failures are logged and the provider is treated as having no external
// busy time.
func (s *availabilityService) calendarBusy(ctx context.Context, providers []*domain.Provider, window domain.TimeInterval, exclude []string) map[int64][]domain.TimeInterval {
	var mu sync.Mutex
	out := make(map[int64][]domain.TimeInterval)

	p := pool.New().WithMaxGoroutines(calendarConcurrency)
	for _, provider := range providers {
		if len(provider.Calendars) == 0 {
			continue
		}
		p.Go(func() {
			periods, err := s.calendars.BusyPeriods(ctx, provider, window, exclude)
			if err != nil {
				slog.Warn("calendar busy periods unavailable", "provider_id", provider.ID, "err", err)
				return
			}
			mu.Lock()
			out[provider.ID] = append(out[provider.ID], periods...)
			mu.Unlock()
		})
	}
	p.Wait()
	return out
}

func (s *availabilityService) excludedCalendarEvents(ctx context.Context, db *repo.Client, appointmentID *int64) ([]string, error) {
	if appointmentID == nil {
		return nil, nil
	}
	a, err := db.Appointment.Get(ctx, *appointmentID)
	if repo.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load rescheduled appointment: %w", err)
	}
	return lo.Compact([]string{a.GoogleCalendarEventID, a.OutlookCalendarEventID}), nil
}

// joinableFrom reports whether a same-service appointment can take the
// requested persons. Pending appointments are joinable when pending booking
// is allowed, or on the front end while an appointment that opens after min
// capacity is still filling up.
func joinableFrom(a *domain.Appointment, p *domain.Provider, svc *domain.Service, set *settings.Settings, persons int, frontEnd bool) (timeslot.Joinable, bool) {
	minCap, maxCap := p.Capacity(svc)
	booked := domain.ActivePersons(a.Bookings)

	switch a.Status {
	case domain.StatusApproved:
	case domain.StatusPending:
		filling := frontEnd && set.Appointments.OpenedBookingAfterMin && booked < minCap
		if !set.Appointments.AllowBookingIfPending && !filling {
			return timeslot.Joinable{}, false
		}
	default:
		return timeslot.Joinable{}, false
	}

	remaining := maxCap - booked
	if persons > remaining {
		return timeslot.Joinable{}, false
	}
	return timeslot.Joinable{
		ProviderID: p.ID,
		LocationID: lo.CoalesceOrEmpty(a.LocationID, p.LocationID),
		Start:      a.BookingStart,
		Remaining:  remaining,
	}, true
}

// ---------------------------------------------------------------------------
// Slot check
// ---------------------------------------------------------------------------

// IsSlotFree computes the slots of At's date only; slots never cross
// midnight so the answer matches a full-window computation.
func (s *availabilityService) IsSlotFree(ctx context.Context, cache *Cache, req SlotRequest) (bool, error) {
	if cache == nil {
		cache = s.NewCache()
	}
	set, err := cache.Settings(ctx)
	if err != nil {
		return false, err
	}

	at := req.At.In(set.Location)
	y, m, d := at.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, set.Location)

	slots, err := s.GetFreeSlots(ctx, cache, FreeSlotsRequest{
		ServiceID:            req.ServiceID,
		Start:                day,
		End:                  day.AddDate(0, 0, 1),
		ProviderIDs:          []int64{req.ProviderID},
		Extras:               req.Extras,
		ExcludeAppointmentID: req.ExcludeAppointmentID,
		Persons:              req.Persons,
		FrontEnd:             req.FrontEnd,
	})
	if err != nil {
		return false, err
	}
	return slots.Has(at, &req.ProviderID), nil
}

// ---------------------------------------------------------------------------
// Booking window
// ---------------------------------------------------------------------------

// MinimumDateTimeForBooking is the earliest bookable moment. Front-end
// bookings keep minSeconds of lead time; back-office bookings may reach a
// year into the past. A zero required means now.
func MinimumDateTimeForBooking(now, required time.Time, frontEnd bool, minSeconds int) time.Time {
	offset := 0
	if frontEnd {
		offset = minSeconds
	}
	lower := now.Add(time.Duration(offset) * time.Second)
	if required.IsZero() {
		required = now
	}

	out := lower
	if !lower.After(required) && !sameDate(lower, required) {
		y, m, d := required.Date()
		out = time.Date(y, m, d, 0, 0, 0, 0, required.Location())
	}
	if !frontEnd {
		out = out.AddDate(0, 0, -defaultDaysAvailable)
	}
	return out
}

// MaximumDateTimeForBooking is the latest bookable moment. Back-office
// bookings always get at least a year; front-end bookings use days, or a
// year when unset. A zero required means no narrower bound.
func MaximumDateTimeForBooking(now, required time.Time, frontEnd bool, days int) time.Time {
	available := max(days, defaultDaysAvailable)
	if frontEnd {
		available = lo.CoalesceOrEmpty(days, defaultDaysAvailable)
	}
	upper := now.AddDate(0, 0, available)
	if required.IsZero() || upper.Before(required) || sameDate(upper, required) {
		return upper
	}
	return required
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
