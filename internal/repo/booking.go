package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/samber/lo"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
)

var bookingColumns = []string{
	"id", "appointment_id", "customer_id", "status", "price", "persons", "coupon_id",
	"token", "custom_fields", "info", "utc_offset", "aggregated_price", "created",
}

// BookingClient manages customer bookings and their extras.
type BookingClient struct {
	config
}

func scanBooking(rows *entsql.Rows) (*domain.CustomerBooking, error) {
	var (
		b            domain.CustomerBooking
		appointment  sql.NullInt64
		coupon       sql.NullInt64
		utcOffset    sql.NullInt64
		customFields string
		info         string
	)
	if err := rows.Scan(&b.ID, &appointment, &b.CustomerID, &b.Status, &b.Price, &b.Persons, &coupon,
		&b.Token, &customFields, &info, &utcOffset, &b.AggregatedPrice, &b.Created); err != nil {
		return nil, err
	}
	b.AppointmentID = intPtr(appointment)
	b.CouponID = intPtr(coupon)
	if utcOffset.Valid {
		b.UTCOffset = lo.ToPtr(int(utcOffset.Int64))
	}
	if customFields != "" {
		b.CustomFields = json.RawMessage(customFields)
	}
	if info != "" {
		b.Info = json.RawMessage(info)
	}
	b.Created = b.Created.UTC()
	return &b, nil
}

func (c *BookingClient) list(ctx context.Context, op string, pred *entsql.Predicate) ([]*domain.CustomerBooking, error) {
	sel := c.builder().Select(bookingColumns...).From(c.table("customer_bookings")).Where(pred).OrderBy("id")

	var out []*domain.CustomerBooking
	err := c.query(ctx, op, sel, func(rows *entsql.Rows) error {
		b, err := scanBooking(rows)
		if err != nil {
			return err
		}
		out = append(out, b)
		return nil
	})
	if err != nil || len(out) == 0 {
		return out, err
	}
	if err := c.loadChildren(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingClient) loadChildren(ctx context.Context, bookings []*domain.CustomerBooking) error {
	byID := lo.KeyBy(bookings, func(b *domain.CustomerBooking) int64 { return b.ID })
	bookingIDs := ids(lo.Keys(byID))

	sel := c.builder().Select("id", "customer_booking_id", "extra_id", "quantity", "price", "aggregated_price").
		From(c.table("customer_bookings_extras")).
		Where(entsql.In("customer_booking_id", bookingIDs...)).
		OrderBy("id")
	err := c.query(ctx, "load booking extras", sel, func(rows *entsql.Rows) error {
		var (
			e   domain.BookingExtra
			agg sql.NullBool
		)
		if err := rows.Scan(&e.ID, &e.CustomerBookingID, &e.ExtraID, &e.Quantity, &e.Price, &agg); err != nil {
			return err
		}
		e.AggregatedPrice = boolPtr(agg)
		b := byID[e.CustomerBookingID]
		b.Extras = append(b.Extras, &e)
		return nil
	})
	if err != nil {
		return err
	}

	payments, err := (&PaymentClient{config: c.config}).ByBookings(ctx, lo.Keys(byID))
	if err != nil {
		return err
	}
	for _, p := range payments {
		b := byID[p.CustomerBookingID]
		b.Payments = append(b.Payments, p)
	}
	return nil
}

// Get returns a NotFoundError when the booking does not exist.
func (c *BookingClient) Get(ctx context.Context, id int64) (*domain.CustomerBooking, error) {
	out, err := c.list(ctx, "get booking", entsql.EQ("id", id))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, notFound("booking", id)
	}
	if err := c.attachEvent(ctx, out); err != nil {
		return nil, err
	}
	return out[0], nil
}

// ByAppointments groups bookings by appointment id.
func (c *BookingClient) ByAppointments(ctx context.Context, appointmentIDs []int64) (map[int64][]*domain.CustomerBooking, error) {
	out := map[int64][]*domain.CustomerBooking{}
	if len(appointmentIDs) == 0 {
		return out, nil
	}
	bookings, err := c.list(ctx, "list appointment bookings", entsql.In("appointment_id", ids(appointmentIDs)...))
	if err != nil {
		return nil, err
	}
	for _, b := range bookings {
		out[*b.AppointmentID] = append(out[*b.AppointmentID], b)
	}
	return out, nil
}

// ByEvents groups bookings by event id, following the booking to period
// links.
func (c *BookingClient) ByEvents(ctx context.Context, eventIDs []int64) (map[int64][]*domain.CustomerBooking, error) {
	out := map[int64][]*domain.CustomerBooking{}
	if len(eventIDs) == 0 {
		return out, nil
	}

	bookingEvent, err := c.bookingEvents(ctx, entsql.In("event_id", ids(eventIDs)...))
	if err != nil || len(bookingEvent) == 0 {
		return out, err
	}

	bookings, err := c.list(ctx, "list event bookings", entsql.In("id", ids(lo.Keys(bookingEvent))...))
	if err != nil {
		return nil, err
	}
	for _, b := range bookings {
		eventID := bookingEvent[b.ID]
		b.EventID = lo.ToPtr(eventID)
		out[eventID] = append(out[eventID], b)
	}
	return out, nil
}

// bookingEvents maps booking id to event id for the periods matching pred.
func (c *BookingClient) bookingEvents(ctx context.Context, periodPred *entsql.Predicate) (map[int64]int64, error) {
	periodEvent := map[int64]int64{}
	sel := c.builder().Select("id", "event_id").From(c.table("events_periods")).Where(periodPred)
	err := c.query(ctx, "list event periods", sel, func(rows *entsql.Rows) error {
		var periodID, eventID int64
		if err := rows.Scan(&periodID, &eventID); err != nil {
			return err
		}
		periodEvent[periodID] = eventID
		return nil
	})
	if err != nil || len(periodEvent) == 0 {
		return nil, err
	}

	bookingEvent := map[int64]int64{}
	sel = c.builder().Select("customer_booking_id", "event_period_id").
		From(c.table("customer_bookings_events_periods")).
		Where(entsql.In("event_period_id", ids(lo.Keys(periodEvent))...))
	err = c.query(ctx, "list booking period links", sel, func(rows *entsql.Rows) error {
		var bookingID, periodID int64
		if err := rows.Scan(&bookingID, &periodID); err != nil {
			return err
		}
		bookingEvent[bookingID] = periodEvent[periodID]
		return nil
	})
	return bookingEvent, err
}

func (c *BookingClient) attachEvent(ctx context.Context, bookings []*domain.CustomerBooking) error {
	pending := lo.Filter(bookings, func(b *domain.CustomerBooking, _ int) bool { return b.AppointmentID == nil })
	if len(pending) == 0 {
		return nil
	}
	linkSel := c.builder().Select("event_period_id").From(c.table("customer_bookings_events_periods")).
		Where(entsql.In("customer_booking_id", ids(lo.Map(pending, func(b *domain.CustomerBooking, _ int) int64 { return b.ID }))...))
	var periodIDs []int64
	err := c.query(ctx, "list booking periods", linkSel, func(rows *entsql.Rows) error {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		periodIDs = append(periodIDs, id)
		return nil
	})
	if err != nil || len(periodIDs) == 0 {
		return err
	}
	bookingEvent, err := c.bookingEvents(ctx, entsql.In("id", ids(periodIDs)...))
	if err != nil {
		return err
	}
	for _, b := range pending {
		if eventID, ok := bookingEvent[b.ID]; ok {
			b.EventID = lo.ToPtr(eventID)
		}
	}
	return nil
}

// Create inserts the booking and its extras, and sets the ids.
func (c *BookingClient) Create(ctx context.Context, b *domain.CustomerBooking) error {
	if b.Created.IsZero() {
		b.Created = time.Now().UTC()
	}
	var utcOffset any
	if b.UTCOffset != nil {
		utcOffset = *b.UTCOffset
	}
	id, err := c.insert(ctx, "create booking", c.builder().Insert("customer_bookings").
		Columns(bookingColumns[1:]...).
		Values(nullInt(b.AppointmentID), b.CustomerID, string(b.Status), b.Price, b.Persons, nullInt(b.CouponID),
			b.Token, jsonText(b.CustomFields), jsonText(b.Info), utcOffset, b.AggregatedPrice, b.Created.UTC()))
	if err != nil {
		return err
	}
	b.ID = id

	for _, e := range b.Extras {
		e.CustomerBookingID = id
		if e.ID, err = c.insert(ctx, "create booking extra", c.builder().Insert("customer_bookings_extras").
			Columns("customer_booking_id", "extra_id", "quantity", "price", "aggregated_price").
			Values(id, e.ExtraID, e.Quantity, e.Price, nullBool(e.AggregatedPrice))); err != nil {
			return err
		}
	}
	return nil
}

// LinkEventPeriods attaches an event booking to every period it covers.
func (c *BookingClient) LinkEventPeriods(ctx context.Context, bookingID int64, periodIDs []int64) error {
	for _, pid := range periodIDs {
		if _, err := c.insert(ctx, "link booking period", c.builder().Insert("customer_bookings_events_periods").
			Columns("customer_booking_id", "event_period_id").
			Values(bookingID, pid)); err != nil {
			return err
		}
	}
	return nil
}

func (c *BookingClient) UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus) error {
	_, err := c.exec(ctx, "update booking status", c.builder().Update("customer_bookings").
		Set("status", string(status)).
		Where(entsql.EQ("id", id)))
	return err
}

// DeleteEventPeriodLinks removes the booking's period links.
func (c *BookingClient) DeleteEventPeriodLinks(ctx context.Context, bookingID int64) error {
	return c.deleteWhere(ctx, "delete booking period links", "customer_bookings_events_periods",
		entsql.EQ("customer_booking_id", bookingID))
}

// Delete removes the booking row and its extras.
func (c *BookingClient) Delete(ctx context.Context, id int64) error {
	if err := c.deleteWhere(ctx, "delete booking extras", "customer_bookings_extras", entsql.EQ("customer_booking_id", id)); err != nil {
		return err
	}
	return c.deleteWhere(ctx, "delete booking", "customer_bookings", entsql.EQ("id", id))
}

// CountActiveWithCoupon counts non cancelled bookings that used the coupon,
// optionally for one customer.
func (c *BookingClient) CountActiveWithCoupon(ctx context.Context, couponID int64, customerID *int64) (int, error) {
	preds := []*entsql.Predicate{
		entsql.EQ("coupon_id", couponID),
		entsql.In("status", string(domain.StatusApproved), string(domain.StatusPending)),
	}
	if customerID != nil {
		preds = append(preds, entsql.EQ("customer_id", *customerID))
	}
	return c.count(ctx, "count coupon bookings", "customer_bookings", preds...)
}
