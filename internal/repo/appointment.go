package repo

import (
	"context"
	"database/sql"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/samber/lo"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
)

var appointmentColumns = []string{
	"id", "parent_id", "service_id", "provider_id", "location_id", "booking_start", "booking_end", "status",
	"notify_participants", "internal_notes", "google_calendar_event_id", "outlook_calendar_event_id",
}

type AppointmentClient struct {
	config
}

// AppointmentFilter narrows appointment listings. Zero fields are ignored.
type AppointmentFilter struct {
	ProviderIDs []int64
	ServiceID   int64
	From        time.Time
	To          time.Time
	Statuses    []domain.BookingStatus
	ExcludeID   *int64
}

func (f AppointmentFilter) predicate() *entsql.Predicate {
	preds := []*entsql.Predicate{}
	if len(f.ProviderIDs) > 0 {
		preds = append(preds, entsql.In("provider_id", ids(f.ProviderIDs)...))
	}
	if f.ServiceID != 0 {
		preds = append(preds, entsql.EQ("service_id", f.ServiceID))
	}
	if !f.From.IsZero() {
		preds = append(preds, entsql.GTE("booking_end", f.From.UTC()))
	}
	if !f.To.IsZero() {
		preds = append(preds, entsql.LT("booking_start", f.To.UTC()))
	}
	if len(f.Statuses) > 0 {
		preds = append(preds, entsql.In("status", lo.Map(f.Statuses, func(s domain.BookingStatus, _ int) any { return string(s) })...))
	}
	if f.ExcludeID != nil {
		preds = append(preds, entsql.NEQ("id", *f.ExcludeID))
	}
	if len(preds) == 0 {
		return nil
	}
	return entsql.And(preds...)
}

// List returns matching appointments ordered by start, with bookings.
func (c *AppointmentClient) List(ctx context.Context, f AppointmentFilter) ([]*domain.Appointment, error) {
	return c.list(ctx, "list appointments", f.predicate())
}

func (c *AppointmentClient) list(ctx context.Context, op string, pred *entsql.Predicate) ([]*domain.Appointment, error) {
	sel := c.builder().Select(appointmentColumns...).From(c.table("appointments")).OrderBy("booking_start", "id")
	if pred != nil {
		sel.Where(pred)
	}

	var out []*domain.Appointment
	err := c.query(ctx, op, sel, func(rows *entsql.Rows) error {
		var (
			a        domain.Appointment
			parent   sql.NullInt64
			location sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &parent, &a.ServiceID, &a.ProviderID, &location, &a.BookingStart, &a.BookingEnd,
			&a.Status, &a.NotifyParticipants, &a.InternalNotes, &a.GoogleCalendarEventID, &a.OutlookCalendarEventID); err != nil {
			return err
		}
		a.ParentID = intPtr(parent)
		a.LocationID = intPtr(location)
		a.BookingStart, a.BookingEnd = a.BookingStart.UTC(), a.BookingEnd.UTC()
		out = append(out, &a)
		return nil
	})
	if err != nil || len(out) == 0 {
		return out, err
	}

	bookings, err := (&BookingClient{config: c.config}).ByAppointments(ctx, lo.Map(out, func(a *domain.Appointment, _ int) int64 { return a.ID }))
	if err != nil {
		return nil, err
	}
	for _, a := range out {
		a.Bookings = bookings[a.ID]
	}
	return out, nil
}

// Get returns a NotFoundError when the appointment does not exist.
func (c *AppointmentClient) Get(ctx context.Context, id int64) (*domain.Appointment, error) {
	list, err := c.list(ctx, "get appointment", entsql.EQ("id", id))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, notFound("appointment", id)
	}
	return list[0], nil
}

// FindAt returns the active appointment of a provider for a service that
// starts exactly at start, or nil.
func (c *AppointmentClient) FindAt(ctx context.Context, serviceID, providerID int64, start time.Time) (*domain.Appointment, error) {
	list, err := c.List(ctx, AppointmentFilter{
		ProviderIDs: []int64{providerID},
		ServiceID:   serviceID,
		From:        start,
		To:          start.Add(time.Second),
		Statuses:    []domain.BookingStatus{domain.StatusApproved, domain.StatusPending},
	})
	if err != nil {
		return nil, err
	}
	a, _ := lo.Find(list, func(a *domain.Appointment) bool { return a.BookingStart.Equal(start) })
	return a, nil
}

// Create inserts the appointment and every booking it holds.
func (c *AppointmentClient) Create(ctx context.Context, a *domain.Appointment) error {
	id, err := c.insert(ctx, "create appointment", c.builder().Insert("appointments").
		Columns(appointmentColumns[1:]...).
		Values(nullInt(a.ParentID), a.ServiceID, a.ProviderID, nullInt(a.LocationID), a.BookingStart.UTC(), a.BookingEnd.UTC(),
			string(a.Status), a.NotifyParticipants, a.InternalNotes, a.GoogleCalendarEventID, a.OutlookCalendarEventID))
	if err != nil {
		return err
	}
	a.ID = id

	bookings := &BookingClient{config: c.config}
	for _, b := range a.Bookings {
		if b.ID != 0 {
			continue
		}
		b.AppointmentID = lo.ToPtr(id)
		if err := bookings.Create(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func (c *AppointmentClient) UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus) error {
	_, err := c.exec(ctx, "update appointment status", c.builder().Update("appointments").
		Set("status", string(status)).
		Where(entsql.EQ("id", id)))
	return err
}

// UpdateTimes moves the appointment to a new period.
func (c *AppointmentClient) UpdateTimes(ctx context.Context, id int64, start, end time.Time) error {
	_, err := c.exec(ctx, "update appointment times", c.builder().Update("appointments").
		Set("booking_start", start.UTC()).
		Set("booking_end", end.UTC()).
		Where(entsql.EQ("id", id)))
	return err
}
