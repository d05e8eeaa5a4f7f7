package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/service/availability"
)

// ---------------------------------------------------------------------------
// Reschedule
// ---------------------------------------------------------------------------

func (s *reservationService) Reschedule(ctx context.Context, req RescheduleRequest) (*domain.Reservation, error) {
	set, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	var res *domain.Reservation
	err = repo.WithTx(ctx, s.db, func(ctx context.Context, tx *repo.Tx) error {
		db := tx.Client
		appt, err := db.Appointment.Get(ctx, req.AppointmentID)
		if err != nil {
			return err
		}
		svc, err := db.Service.Get(ctx, appt.ServiceID)
		if err != nil {
			return err
		}
		res = &domain.Reservation{Reservation: appt, Bookable: svc}

		if !req.Privileged {
			if !set.Roles.AllowCustomerReschedule || !ownsAll(appt, req.CustomerID) {
				return ErrAccessDenied
			}
			minSeconds := lo.CoalesceOrEmpty(svc.Settings.MinimumTimeBeforeCanceling, set.General.MinimumTimeBeforeCanceling)
			if err := s.InspectMinimumCancellationTime(appt.BookingStart, minSeconds); err != nil {
				if errors.Is(err, ErrBookingCancellation) {
					return fmt.Errorf("%w: %v", ErrRescheduleDenied, err)
				}
				return err
			}
		}

		start := req.BookingStart
		end := start.Add(appt.BookingEnd.Sub(appt.BookingStart))
		free, err := s.slots.IsSlotFree(ctx, s.slots.NewCache(), availability.SlotRequest{
			ServiceID:            appt.ServiceID,
			At:                   start,
			ProviderID:           appt.ProviderID,
			Extras:               selectedExtras(appt.Bookings),
			ExcludeAppointmentID: &appt.ID,
			Persons:              max(domain.ActivePersons(appt.Bookings), 1),
			FrontEnd:             !req.Privileged,
		})
		if err != nil {
			return err
		}
		if !free {
			return fmt.Errorf("%w: %s", ErrBookingUnavailable, start.Format(time.RFC3339))
		}

		if err := db.Appointment.UpdateTimes(ctx, appt.ID, start, end); err != nil {
			return err
		}
		appt.BookingStart, appt.BookingEnd = start.UTC(), end.UTC()
		return nil
	})
	if err != nil {
		return nil, classify(fmt.Errorf("reschedule appointment %d: %w", req.AppointmentID, err))
	}
	slog.Info("appointment rescheduled", "appointment_id", req.AppointmentID, "start", req.BookingStart)
	return res, nil
}

// ownsAll reports whether customerID holds every active booking of the
// appointment.
func ownsAll(appt *domain.Appointment, customerID int64) bool {
	active := lo.Filter(appt.Bookings, func(b *domain.CustomerBooking, _ int) bool { return b.Status.IsActive() })
	return customerID != 0 && len(active) > 0 &&
		lo.EveryBy(active, func(b *domain.CustomerBooking) bool { return b.CustomerID == customerID })
}

// selectedExtras folds the extras of the active bookings into one selection,
// keeping the largest quantity of each extra.
func selectedExtras(bookings []*domain.CustomerBooking) []domain.SelectedExtra {
	qty := map[int64]int{}
	var order []int64
	for _, b := range bookings {
		if !b.Status.IsActive() {
			continue
		}
		for _, e := range b.Extras {
			if _, ok := qty[e.ExtraID]; !ok {
				order = append(order, e.ExtraID)
			}
			qty[e.ExtraID] = max(qty[e.ExtraID], e.Quantity)
		}
	}
	return lo.Map(order, func(id int64, _ int) domain.SelectedExtra {
		return domain.SelectedExtra{ID: id, Quantity: qty[id]}
	})
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// UpdateAppointmentStatus moves the appointment to the requested status.
// Active bookings and bookings sharing the appointment's current status
// follow it; a booking left individually canceled keeps its status.
// Reopening a canceled or rejected appointment needs its slot to be free.
func (s *reservationService) UpdateAppointmentStatus(ctx context.Context, req StatusRequest) (*domain.Reservation, error) {
	if !req.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", domain.ErrInvalidArgument, req.Status)
	}

	var res *domain.Reservation
	err := repo.WithTx(ctx, s.db, func(ctx context.Context, tx *repo.Tx) error {
		db := tx.Client
		appt, err := db.Appointment.Get(ctx, req.AppointmentID)
		if err != nil {
			return err
		}
		svc, err := db.Service.Get(ctx, appt.ServiceID)
		if err != nil {
			return err
		}
		res = &domain.Reservation{Reservation: appt, Bookable: svc}
		if appt.Status == req.Status {
			return nil
		}

		kept := lo.Filter(appt.Bookings, func(b *domain.CustomerBooking, _ int) bool {
			return b.Status.IsActive() || b.Status == appt.Status
		})
		if req.Status.IsActive() && !appt.Status.IsActive() {
			reopened := lo.Map(kept, func(b *domain.CustomerBooking, _ int) *domain.CustomerBooking {
				c := *b
				c.Status = req.Status
				return &c
			})
			free, err := s.slots.IsSlotFree(ctx, s.slots.NewCache(), availability.SlotRequest{
				ServiceID:            appt.ServiceID,
				At:                   appt.BookingStart,
				ProviderID:           appt.ProviderID,
				Extras:               selectedExtras(reopened),
				ExcludeAppointmentID: &appt.ID,
				Persons:              max(domain.ActivePersons(reopened), 1),
			})
			if err != nil {
				return err
			}
			if !free {
				return fmt.Errorf("%w: %s", ErrBookingUnavailable, appt.BookingStart.Format(time.RFC3339))
			}
		}

		for _, b := range kept {
			if b.Status == req.Status {
				continue
			}
			if err := db.Booking.UpdateStatus(ctx, b.ID, req.Status); err != nil {
				return err
			}
			b.Status = req.Status
			b.ChangedStatus = true
		}
		if err := db.Appointment.UpdateStatus(ctx, appt.ID, req.Status); err != nil {
			return err
		}
		appt.Status = req.Status
		res.IsStatusChanged = true
		return nil
	})
	if err != nil {
		return nil, classify(fmt.Errorf("update appointment %d status: %w", req.AppointmentID, err))
	}
	slog.Info("appointment status updated", "appointment_id", req.AppointmentID, "status", req.Status, "changed", res.IsStatusChanged)
	return res, nil
}
