package reservation

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/service/availability"
)

// bookInput is one unit of work for a Booker: the main booking or one
// recurring item.
type bookInput struct {
	Request    *BookingRequest
	ProviderID int64
	LocationID *int64
	Start      time.Time
	ParentID   *int64
	Booking    *domain.CustomerBooking
	CheckSlot  bool
	Save       bool
	Cache      *availability.Cache
}

// booker checks availability for one kind of reservation and persists the
// booking into it.
type booker interface {
	Book(ctx context.Context, db *repo.Client, in bookInput) (*domain.Reservation, error)
}

// SlotChecker is the part of the availability orchestrator bookings need.
type SlotChecker interface {
	NewCache() *availability.Cache
	IsSlotFree(ctx context.Context, cache *availability.Cache, req availability.SlotRequest) (bool, error)
}

// ---------------------------------------------------------------------------
// Appointments
// ---------------------------------------------------------------------------

type appointmentBooker struct {
	slots SlotChecker
}

func (b *appointmentBooker) Book(ctx context.Context, db *repo.Client, in bookInput) (*domain.Reservation, error) {
	req := in.Request
	svc, err := in.Cache.Service(ctx, req.ServiceID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: service %d", domain.ErrInvalidArgument, req.ServiceID)
		}
		return nil, err
	}
	set, err := in.Cache.Settings(ctx)
	if err != nil {
		return nil, err
	}
	defaultStatus := lo.CoalesceOrEmpty(set.General.DefaultAppointmentStatus, domain.StatusApproved)

	booking := in.Booking
	capacity := max(svc.MaxCapacity, 1)
	if booking.Persons > capacity {
		return nil, fmt.Errorf("%w: %d persons over capacity %d", ErrBookingUnavailable, booking.Persons, capacity)
	}
	booking.Status = defaultStatus
	booking.Price = svc.Price
	booking.AggregatedPrice = svc.AggregatedPrice
	booking.Extras = bookingExtras(svc, req.Booking.Extras)

	if in.CheckSlot {
		free, err := b.slots.IsSlotFree(ctx, in.Cache, availability.SlotRequest{
			ServiceID:  svc.ID,
			At:         in.Start,
			ProviderID: in.ProviderID,
			Extras:     req.Booking.Extras,
			Persons:    booking.Persons,
			FrontEnd:   true,
		})
		if err != nil {
			return nil, err
		}
		if !free {
			return nil, fmt.Errorf("%w: %s", ErrBookingUnavailable, in.Start.Format(time.RFC3339))
		}
	}

	res := &domain.Reservation{Booking: booking, Bookable: svc}

	existing, err := db.Appointment.FindAt(ctx, svc.ID, in.ProviderID, in.Start)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if booking.CustomerID != 0 && customerHolds(existing.Bookings, booking.CustomerID) {
			return nil, ErrCustomerBooked
		}
		if domain.ActivePersons(existing.Bookings)+booking.Persons > capacity {
			return nil, fmt.Errorf("%w: appointment %d is full", ErrBookingUnavailable, existing.ID)
		}

		booking.AppointmentID = lo.ToPtr(existing.ID)
		bookings := append(slices.Clone(existing.Bookings), booking)
		status := domain.StatusFromBookings(bookings, svc.MinCapacity, defaultStatus)
		if in.Save {
			if err := db.Booking.Create(ctx, booking); err != nil {
				return nil, err
			}
			if status != existing.Status {
				if err := db.Appointment.UpdateStatus(ctx, existing.ID, status); err != nil {
					return nil, err
				}
			}
		}
		res.IsStatusChanged = status != existing.Status
		existing.Status = status
		existing.Bookings = bookings
		res.Reservation = existing
		return res, nil
	}

	appt := &domain.Appointment{
		ParentID:           in.ParentID,
		ServiceID:          svc.ID,
		ProviderID:         in.ProviderID,
		LocationID:         in.LocationID,
		BookingStart:       in.Start,
		BookingEnd:         in.Start.Add(time.Duration(svc.RequiredSeconds(req.Booking.Extras)) * time.Second),
		NotifyParticipants: true,
		Bookings:           []*domain.CustomerBooking{booking},
	}
	appt.Status = domain.StatusFromBookings(appt.Bookings, svc.MinCapacity, defaultStatus)
	if in.Save {
		if err := db.Appointment.Create(ctx, appt); err != nil {
			return nil, err
		}
	}
	res.Reservation = appt
	return res, nil
}

// bookingExtras prices the selected extras the bookable owns.
func bookingExtras(b domain.Bookable, selected []domain.SelectedExtra) []*domain.BookingExtra {
	var out []*domain.BookingExtra
	for _, sel := range selected {
		extra, ok := b.ExtraByID(sel.ID)
		if !ok {
			continue
		}
		qty := max(sel.Quantity, 1)
		if extra.MaxQuantity > 0 {
			qty = min(qty, extra.MaxQuantity)
		}
		out = append(out, &domain.BookingExtra{
			ExtraID:         extra.ID,
			Quantity:        qty,
			Price:           extra.Price,
			AggregatedPrice: extra.AggregatedPrice,
		})
	}
	return out
}

func customerHolds(bookings []*domain.CustomerBooking, customerID int64) bool {
	return lo.SomeBy(domain.BookingsOf(bookings, customerID), func(b *domain.CustomerBooking) bool {
		return b.Status.IsActive()
	})
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

type eventBooker struct {
	now func() time.Time
}

func (b *eventBooker) Book(ctx context.Context, db *repo.Client, in bookInput) (*domain.Reservation, error) {
	e, err := db.Event.Get(ctx, in.Request.EventID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: event %d", domain.ErrInvalidArgument, in.Request.EventID)
		}
		return nil, err
	}

	booking := in.Booking
	if in.CheckSlot {
		if err := b.open(e, booking.Persons); err != nil {
			return nil, err
		}
	}
	if booking.CustomerID != 0 && customerHolds(e.Bookings, booking.CustomerID) {
		return nil, ErrCustomerBooked
	}

	booking.EventID = lo.ToPtr(e.ID)
	booking.Status = domain.StatusApproved
	booking.Price = e.Price
	booking.AggregatedPrice = e.AggregatedPrice
	booking.Extras = bookingExtras(e, in.Request.Booking.Extras)

	if in.Save {
		if err := db.Booking.Create(ctx, booking); err != nil {
			return nil, err
		}
		periodIDs := lo.Map(e.Periods, func(p *domain.EventPeriod, _ int) int64 { return p.ID })
		if err := db.Booking.LinkEventPeriods(ctx, booking.ID, periodIDs); err != nil {
			return nil, err
		}
	}
	e.Bookings = append(e.Bookings, booking)
	return &domain.Reservation{Reservation: e, Booking: booking, Bookable: e}, nil
}

// open checks the event still takes bookings for persons more people.
// Booking closes at the event start unless the event says otherwise.
func (b *eventBooker) open(e *domain.Event, persons int) error {
	now := b.now()
	if e.Status != domain.StatusApproved {
		return fmt.Errorf("%w: event %d is %s", ErrBookingUnavailable, e.ID, e.Status)
	}
	if e.BookingOpens != nil && now.Before(*e.BookingOpens) {
		return fmt.Errorf("%w: booking opens %s", ErrBookingUnavailable, e.BookingOpens.Format(time.RFC3339))
	}
	closes := e.Start()
	if e.BookingCloses != nil {
		closes = *e.BookingCloses
	}
	if !now.Before(closes) {
		return fmt.Errorf("%w: booking closed %s", ErrBookingUnavailable, closes.Format(time.RFC3339))
	}
	if domain.ActivePersons(e.Bookings)+persons > e.MaxCapacity {
		return fmt.Errorf("%w: event %d is full", ErrBookingUnavailable, e.ID)
	}
	return nil
}
