package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/service/availability"
	"github.com/Alijeyrad/simorq_booking/internal/service/event"
	"github.com/Alijeyrad/simorq_booking/internal/service/notification"
	"github.com/Alijeyrad/simorq_booking/internal/service/reservation"
	"github.com/Alijeyrad/simorq_booking/internal/service/webhook"
)

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

// Handler runs booking commands. Once a command has committed it dispatches
// webhooks and publishes notification messages; neither can fail it.
type Handler interface {
	AddBooking(ctx context.Context, req reservation.BookingRequest, v reservation.Validator) (*Result, error)
	CancelBooking(ctx context.Context, req reservation.CancelRequest) (*Result, error)
	RescheduleAppointment(ctx context.Context, req reservation.RescheduleRequest) (*Result, error)
	UpdateAppointmentStatus(ctx context.Context, req reservation.StatusRequest) (*Result, error)

	AddEvent(ctx context.Context, e *domain.Event) (*Result, error)
	UpdateEvent(ctx context.Context, id int64, changes *domain.Event, applyGlobally bool) (*Result, error)
	UpdateEventStatus(ctx context.Context, id int64, status domain.BookingStatus, applyGlobally bool) (*Result, error)
	DeleteEvent(ctx context.Context, id int64, applyGlobally bool) (*Result, error)

	GetTimeSlots(ctx context.Context, req availability.FreeSlotsRequest) (*Result, error)
	SendScheduledNotifications(ctx context.Context) (*Result, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type handler struct {
	reservations  reservation.Service
	events        event.Service
	slots         availability.Service
	notifications notification.Service
	hooks         webhook.Dispatcher
	publisher     notification.Publisher
}

func New(
	reservations reservation.Service,
	events event.Service,
	slots availability.Service,
	notifications notification.Service,
	hooks webhook.Dispatcher,
	publisher notification.Publisher,
) Handler {
	return &handler{
		reservations:  reservations,
		events:        events,
		slots:         slots,
		notifications: notifications,
		hooks:         hooks,
		publisher:     publisher,
	}
}

// announce tells webhooks and the notification worker about a committed
// change.
func (h *handler) announce(ctx context.Context, action webhook.Action, res domain.Reservable, bookings []*domain.CustomerBooking) {
	if len(bookings) == 0 {
		return
	}
	h.dispatch(ctx, action, res, bookings)
	if h.publisher != nil {
		h.publisher.Publish(ctx, notification.Message{
			Action:     string(action),
			Type:       res.Kind(),
			EntityID:   res.EntityID(),
			BookingIDs: lo.Map(bookings, func(b *domain.CustomerBooking, _ int) int64 { return b.ID }),
		})
	}
}

// dispatch only runs webhooks. Deleted entities go here since the
// notification worker could no longer load them.
func (h *handler) dispatch(ctx context.Context, action webhook.Action, res domain.Reservable, bookings []*domain.CustomerBooking) {
	if h.hooks == nil || len(bookings) == 0 {
		return
	}
	h.hooks.Dispatch(context.WithoutCancel(ctx), action, res, bookings)
}

// ---------------------------------------------------------------------------
// Bookings
// ---------------------------------------------------------------------------

func (h *handler) AddBooking(ctx context.Context, req reservation.BookingRequest, v reservation.Validator) (*Result, error) {
	out, err := h.reservations.Process(ctx, req, v, true)
	if err != nil {
		if res, ok := failureFrom(err); ok {
			return res, nil
		}
		return nil, fmt.Errorf("add booking: %w", err)
	}

	for _, r := range append([]*domain.Reservation{out.Reservation}, out.Reservation.Recurring...) {
		h.announce(ctx, webhook.BookingAdded, r.Reservation, []*domain.CustomerBooking{r.Booking})
		if r.IsStatusChanged {
			h.announce(ctx, webhook.BookingStatusUpdated, r.Reservation, othersThan(r.Reservation.BookingList(), r.Booking))
		}
	}
	return Success(reservation.SuccessMessage, out.Data), nil
}

func (h *handler) CancelBooking(ctx context.Context, req reservation.CancelRequest) (*Result, error) {
	res, err := h.reservations.CancelBooking(ctx, req)
	if err != nil {
		if r, ok := failureFrom(err); ok {
			return r, nil
		}
		return nil, err
	}

	h.announce(ctx, webhook.BookingCanceled, res.Reservation, []*domain.CustomerBooking{res.Booking})
	if res.IsStatusChanged {
		h.announce(ctx, webhook.BookingStatusUpdated, res.Reservation, othersThan(res.Reservation.BookingList(), res.Booking))
	}

	kind := res.Reservation.Kind()
	return Success("Successfully updated booking", map[string]any{
		"type":                     kind,
		string(kind):               res.Reservation,
		"booking":                  res.Booking,
		"appointmentStatusChanged": res.IsStatusChanged,
	}), nil
}

func (h *handler) RescheduleAppointment(ctx context.Context, req reservation.RescheduleRequest) (*Result, error) {
	res, err := h.reservations.Reschedule(ctx, req)
	if err != nil {
		if r, ok := failureFrom(err); ok {
			return r, nil
		}
		return nil, err
	}

	appt, _ := res.Appointment()
	h.announce(ctx, webhook.BookingRescheduled, appt, lo.Filter(appt.Bookings, func(b *domain.CustomerBooking, _ int) bool {
		return b.Status.IsActive()
	}))
	return Success("Successfully updated appointment time", map[string]any{
		"appointment": appt,
	}), nil
}

func (h *handler) UpdateAppointmentStatus(ctx context.Context, req reservation.StatusRequest) (*Result, error) {
	res, err := h.reservations.UpdateAppointmentStatus(ctx, req)
	if err != nil {
		if r, ok := failureFrom(err); ok {
			return r, nil
		}
		return nil, err
	}

	appt, _ := res.Appointment()
	changed := lo.Filter(appt.Bookings, func(b *domain.CustomerBooking, _ int) bool { return b.ChangedStatus })
	h.announce(ctx, webhook.BookingStatusUpdated, appt, changed)
	return Success("Successfully updated appointment status", map[string]any{
		"status":                    appt.Status,
		"appointment":               appt,
		"appointmentStatusChanged":  res.IsStatusChanged,
		"bookingsWithChangedStatus": changed,
	}), nil
}

// othersThan lists the active bookings except b.
func othersThan(bookings []*domain.CustomerBooking, b *domain.CustomerBooking) []*domain.CustomerBooking {
	return lo.Filter(bookings, func(o *domain.CustomerBooking, _ int) bool {
		return o.ID != b.ID && o.Status.IsActive()
	})
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

func (h *handler) AddEvent(ctx context.Context, e *domain.Event) (*Result, error) {
	added, err := h.events.Add(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("add event: %w", err)
	}
	return Success("Successfully added new event", map[string]any{
		"event":  e,
		KeyAdded: added,
	}), nil
}

func (h *handler) UpdateEvent(ctx context.Context, id int64, changes *domain.Event, applyGlobally bool) (*Result, error) {
	old, err := h.events.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	changes.ID = old.ID
	changes.ParentID = old.ParentID
	if changes.Bookings == nil {
		changes.Bookings = old.Bookings
	}

	out, err := h.events.Update(ctx, old, changes, applyGlobally)
	if err != nil {
		return nil, fmt.Errorf("update event %d: %w", id, err)
	}

	for _, e := range out.Rescheduled {
		h.announce(ctx, webhook.BookingRescheduled, e, activeBookings(e))
	}
	for _, e := range out.Deleted {
		h.dispatch(ctx, webhook.BookingCanceled, e, activeBookings(e))
	}
	return Success("Successfully updated event", map[string]any{
		"event":        changes,
		KeyRescheduled: out.Rescheduled,
		KeyAdded:       out.Added,
		KeyDeleted:     out.Deleted,
	}), nil
}

func (h *handler) UpdateEventStatus(ctx context.Context, id int64, status domain.BookingStatus, applyGlobally bool) (*Result, error) {
	e, err := h.events.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := h.events.UpdateStatus(ctx, e, status, applyGlobally)
	if err != nil {
		return nil, err
	}

	for _, u := range updated {
		h.announce(ctx, webhook.BookingStatusUpdated, u, lo.Filter(u.Bookings, func(b *domain.CustomerBooking, _ int) bool {
			return b.ChangedStatus || b.Status.IsActive()
		}))
	}
	return Success("Successfully updated event status", map[string]any{
		"status":       status,
		"event":        e,
		"updatedCount": len(updated),
	}), nil
}

func (h *handler) DeleteEvent(ctx context.Context, id int64, applyGlobally bool) (*Result, error) {
	e, err := h.events.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := h.events.Delete(ctx, e, applyGlobally); err != nil {
		return nil, err
	}

	h.dispatch(ctx, webhook.BookingCanceled, e, activeBookings(e))
	return Success("Successfully deleted event", map[string]any{
		"event":    e,
		KeyDeleted: true,
	}), nil
}

func activeBookings(e *domain.Event) []*domain.CustomerBooking {
	return lo.Filter(e.Bookings, func(b *domain.CustomerBooking, _ int) bool { return b.Status.IsActive() })
}

// ---------------------------------------------------------------------------
// Slots and notifications
// ---------------------------------------------------------------------------

func (h *handler) GetTimeSlots(ctx context.Context, req availability.FreeSlotsRequest) (*Result, error) {
	slots, err := h.slots.GetFreeSlots(ctx, nil, req)
	if err != nil {
		return nil, err
	}
	return Success("Successfully retrieved free slots", map[string]any{"slots": slots}), nil
}

func (h *handler) SendScheduledNotifications(ctx context.Context) (*Result, error) {
	sent, err := h.notifications.SendScheduled(ctx)
	if err != nil {
		return nil, fmt.Errorf("send scheduled notifications: %w", err)
	}
	slog.Info("scheduled notifications sent", "count", sent)
	return Success("Scheduled notifications sent", map[string]any{"sent": sent}), nil
}
