package repo

import (
	"context"
	"database/sql"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/samber/lo"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
)

var eventColumns = []string{
	"id", "parent_id", "name", "description", "status", "recurring_cycle", "recurring_until", "recurring_order",
	"price", "max_capacity", "aggregated_price", "booking_opens", "booking_closes", "location_id", "custom_location",
	"notify_participants", "zoom_user_id", "min_time_before_booking", "min_time_before_canceling", "created",
}

// EventClient manages events and the rows they own.
type EventClient struct {
	config
}

func scanEvent(rows *entsql.Rows) (*domain.Event, error) {
	var (
		e        domain.Event
		parent   sql.NullInt64
		cycle    sql.NullString
		until    sql.NullTime
		order    sql.NullInt64
		opens    sql.NullTime
		closes   sql.NullTime
		location sql.NullInt64
	)
	if err := rows.Scan(&e.ID, &parent, &e.Name, &e.Description, &e.Status, &cycle, &until, &order,
		&e.Price, &e.MaxCapacity, &e.AggregatedPrice, &opens, &closes, &location, &e.CustomLocation,
		&e.NotifyParticipants, &e.ZoomUserID, &e.Settings.MinimumTimeBeforeBooking, &e.Settings.MinimumTimeBeforeCanceling,
		&e.Created); err != nil {
		return nil, err
	}
	e.ParentID = intPtr(parent)
	e.BookingOpens = timePtr(opens)
	e.BookingCloses = timePtr(closes)
	e.LocationID = intPtr(location)
	e.Created = e.Created.UTC()
	if cycle.Valid {
		e.Recurring = &domain.Recurring{Cycle: domain.Cycle(cycle.String), Order: int(order.Int64)}
		if until.Valid {
			e.Recurring.Until = until.Time.UTC()
		}
	}
	return &e, nil
}

func (c *EventClient) list(ctx context.Context, op string, pred *entsql.Predicate) ([]*domain.Event, error) {
	sel := c.builder().Select(eventColumns...).From(c.table("events")).Where(pred).OrderBy("id")

	var out []*domain.Event
	err := c.query(ctx, op, sel, func(rows *entsql.Rows) error {
		e, err := scanEvent(rows)
		if err != nil {
			return err
		}
		out = append(out, e)
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

func (c *EventClient) loadChildren(ctx context.Context, events []*domain.Event) error {
	byID := lo.KeyBy(events, func(e *domain.Event) int64 { return e.ID })
	eventIDs := lo.Keys(byID)

	periods, err := c.Periods(ctx, eventIDs)
	if err != nil {
		return err
	}
	for _, p := range periods {
		byID[p.EventID].Periods = append(byID[p.EventID].Periods, p)
	}

	err = c.query(ctx, "load event providers", c.builder().Select("event_id", "user_id").
		From(c.table("events_providers")).
		Where(entsql.In("event_id", ids(eventIDs)...)).
		OrderBy("id"), func(rows *entsql.Rows) error {
		var eventID, userID int64
		if err := rows.Scan(&eventID, &userID); err != nil {
			return err
		}
		byID[eventID].Providers = append(byID[eventID].Providers, userID)
		return nil
	})
	if err != nil {
		return err
	}

	err = c.query(ctx, "load event tags", c.builder().Select("id", "event_id", "name").
		From(c.table("events_tags")).
		Where(entsql.In("event_id", ids(eventIDs)...)).
		OrderBy("id"), func(rows *entsql.Rows) error {
		var t domain.EventTag
		if err := rows.Scan(&t.ID, &t.EventID, &t.Name); err != nil {
			return err
		}
		byID[t.EventID].Tags = append(byID[t.EventID].Tags, &t)
		return nil
	})
	if err != nil {
		return err
	}

	err = c.query(ctx, "load event gallery", c.builder().Select("id", "event_id", "picture_full_path", "position").
		From(c.table("events_gallery")).
		Where(entsql.In("event_id", ids(eventIDs)...)).
		OrderBy("position", "id"), func(rows *entsql.Rows) error {
		var g domain.GalleryImage
		if err := rows.Scan(&g.ID, &g.EventID, &g.URL, &g.Position); err != nil {
			return err
		}
		byID[g.EventID].Gallery = append(byID[g.EventID].Gallery, &g)
		return nil
	})
	if err != nil {
		return err
	}

	err = c.query(ctx, "load event coupons", c.builder().Select("event_id", "coupon_id").
		From(c.table("coupons_to_events")).
		Where(entsql.In("event_id", ids(eventIDs)...)).
		OrderBy("id"), func(rows *entsql.Rows) error {
		var eventID, couponID int64
		if err := rows.Scan(&eventID, &couponID); err != nil {
			return err
		}
		byID[eventID].CouponIDs = append(byID[eventID].CouponIDs, couponID)
		return nil
	})
	if err != nil {
		return err
	}

	bookings, err := (&BookingClient{config: c.config}).ByEvents(ctx, eventIDs)
	if err != nil {
		return err
	}
	for id, bs := range bookings {
		byID[id].Bookings = bs
	}
	return nil
}

// Get returns a NotFoundError when the event does not exist.
func (c *EventClient) Get(ctx context.Context, id int64) (*domain.Event, error) {
	out, err := c.list(ctx, "get event", entsql.EQ("id", id))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, notFound("event", id)
	}
	return out[0], nil
}

// Chain returns the origin and every follower of a recurrence chain,
// ordered by id.
func (c *EventClient) Chain(ctx context.Context, rootID int64) ([]*domain.Event, error) {
	return c.list(ctx, "list event chain", entsql.Or(entsql.EQ("parent_id", rootID), entsql.EQ("id", rootID)))
}

// ApprovedForProviders returns approved events hosted by any of the
// providers with a period overlapping [from, to).
func (c *EventClient) ApprovedForProviders(ctx context.Context, providerIDs []int64, from, to time.Time) ([]*domain.Event, error) {
	if len(providerIDs) == 0 {
		return nil, nil
	}
	var eventIDs []int64
	err := c.query(ctx, "list provider events", c.builder().Select("event_id").
		From(c.table("events_providers")).
		Where(entsql.In("user_id", ids(providerIDs)...)), func(rows *entsql.Rows) error {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		eventIDs = append(eventIDs, id)
		return nil
	})
	if err != nil || len(eventIDs) == 0 {
		return nil, err
	}
	return c.withPeriodIn(ctx, "list approved provider events", entsql.In("event_id", ids(eventIDs)...), from, to)
}

// ApprovedStartingBetween returns approved events with a period starting in
// [from, to).
func (c *EventClient) ApprovedStartingBetween(ctx context.Context, from, to time.Time) ([]*domain.Event, error) {
	var eventIDs []int64
	err := c.query(ctx, "list starting events", c.builder().Select("event_id").
		From(c.table("events_periods")).
		Where(entsql.And(entsql.GTE("period_start", from.UTC()), entsql.LT("period_start", to.UTC()))), func(rows *entsql.Rows) error {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		eventIDs = append(eventIDs, id)
		return nil
	})
	if err != nil || len(eventIDs) == 0 {
		return nil, err
	}
	return c.list(ctx, "list starting events", entsql.And(
		entsql.In("id", ids(eventIDs)...),
		entsql.EQ("status", string(domain.StatusApproved)),
	))
}

func (c *EventClient) withPeriodIn(ctx context.Context, op string, periodPred *entsql.Predicate, from, to time.Time) ([]*domain.Event, error) {
	var eventIDs []int64
	err := c.query(ctx, op, c.builder().Select("event_id").
		From(c.table("events_periods")).
		Where(entsql.And(periodPred, entsql.LT("period_start", to.UTC()), entsql.GT("period_end", from.UTC()))), func(rows *entsql.Rows) error {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		eventIDs = append(eventIDs, id)
		return nil
	})
	if err != nil || len(eventIDs) == 0 {
		return nil, err
	}
	return c.list(ctx, op, entsql.And(entsql.In("id", ids(eventIDs)...), entsql.EQ("status", string(domain.StatusApproved))))
}

// Periods lists the periods of the events, ordered by start.
func (c *EventClient) Periods(ctx context.Context, eventIDs []int64) ([]*domain.EventPeriod, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	var out []*domain.EventPeriod
	err := c.query(ctx, "list event periods", c.builder().Select("id", "event_id", "period_start", "period_end", "zoom_meeting_id").
		From(c.table("events_periods")).
		Where(entsql.In("event_id", ids(eventIDs)...)).
		OrderBy("period_start", "id"), func(rows *entsql.Rows) error {
		var p domain.EventPeriod
		if err := rows.Scan(&p.ID, &p.EventID, &p.PeriodStart, &p.PeriodEnd, &p.ZoomMeetingID); err != nil {
			return err
		}
		p.PeriodStart, p.PeriodEnd = p.PeriodStart.UTC(), p.PeriodEnd.UTC()
		out = append(out, &p)
		return nil
	})
	return out, err
}

func eventValues(e *domain.Event) []any {
	var cycle, until, order any
	if e.Recurring != nil {
		cycle, until, order = string(e.Recurring.Cycle), e.Recurring.Until.UTC(), e.Recurring.Order
	}
	return []any{
		nullInt(e.ParentID), e.Name, e.Description, string(e.Status), cycle, until, order,
		e.Price, e.MaxCapacity, e.AggregatedPrice, nullTime(e.BookingOpens), nullTime(e.BookingCloses), nullInt(e.LocationID),
		e.CustomLocation, e.NotifyParticipants, e.ZoomUserID, e.Settings.MinimumTimeBeforeBooking,
		e.Settings.MinimumTimeBeforeCanceling, e.Created.UTC(),
	}
}

// CreateRow inserts the event row only and sets its id.
func (c *EventClient) CreateRow(ctx context.Context, e *domain.Event) error {
	id, err := c.insert(ctx, "create event", c.builder().Insert("events").
		Columns(eventColumns[1:]...).
		Values(eventValues(e)...))
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// UpdateRow writes every event column except created.
func (c *EventClient) UpdateRow(ctx context.Context, e *domain.Event) error {
	ub := c.builder().Update("events").Where(entsql.EQ("id", e.ID))
	values := eventValues(e)
	for i, col := range eventColumns[1 : len(eventColumns)-1] {
		if values[i] == nil {
			ub.SetNull(col)
			continue
		}
		ub.Set(col, values[i])
	}
	n, err := c.exec(ctx, "update event", ub)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("event", e.ID)
	}
	return nil
}

func (c *EventClient) UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus) error {
	_, err := c.exec(ctx, "update event status", c.builder().Update("events").
		Set("status", string(status)).
		Where(entsql.EQ("id", id)))
	return err
}

func (c *EventClient) UpdateParent(ctx context.Context, id int64, parentID *int64) error {
	ub := c.builder().Update("events").Where(entsql.EQ("id", id))
	if parentID == nil {
		ub.SetNull("parent_id")
	} else {
		ub.Set("parent_id", *parentID)
	}
	_, err := c.exec(ctx, "update event parent", ub)
	return err
}

func (c *EventClient) CreatePeriod(ctx context.Context, p *domain.EventPeriod) error {
	id, err := c.insert(ctx, "create event period", c.builder().Insert("events_periods").
		Columns("event_id", "period_start", "period_end", "zoom_meeting_id").
		Values(p.EventID, p.PeriodStart.UTC(), p.PeriodEnd.UTC(), p.ZoomMeetingID))
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func (c *EventClient) UpdatePeriod(ctx context.Context, p *domain.EventPeriod) error {
	_, err := c.exec(ctx, "update event period", c.builder().Update("events_periods").
		Set("period_start", p.PeriodStart.UTC()).
		Set("period_end", p.PeriodEnd.UTC()).
		Set("zoom_meeting_id", p.ZoomMeetingID).
		Where(entsql.EQ("id", p.ID)))
	return err
}

func (c *EventClient) DeletePeriods(ctx context.Context, periodIDs []int64) error {
	if len(periodIDs) == 0 {
		return nil
	}
	return c.deleteWhere(ctx, "delete event periods", "events_periods", entsql.In("id", ids(periodIDs)...))
}

func (c *EventClient) DeletePeriodsOf(ctx context.Context, eventID int64) error {
	return c.deleteWhere(ctx, "delete event periods", "events_periods", entsql.EQ("event_id", eventID))
}

// ReplaceProviders deletes and re-inserts the provider links.
func (c *EventClient) ReplaceProviders(ctx context.Context, eventID int64, providerIDs []int64) error {
	if err := c.DeleteProviders(ctx, eventID); err != nil {
		return err
	}
	for _, pid := range lo.Uniq(providerIDs) {
		if _, err := c.insert(ctx, "create event provider", c.builder().Insert("events_providers").
			Columns("event_id", "user_id").
			Values(eventID, pid)); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceTags deletes and re-inserts the tags, setting their new ids.
func (c *EventClient) ReplaceTags(ctx context.Context, eventID int64, tags []*domain.EventTag) error {
	if err := c.DeleteTags(ctx, eventID); err != nil {
		return err
	}
	for _, t := range tags {
		t.EventID = eventID
		id, err := c.insert(ctx, "create event tag", c.builder().Insert("events_tags").
			Columns("event_id", "name").
			Values(eventID, t.Name))
		if err != nil {
			return err
		}
		t.ID = id
	}
	return nil
}

func (c *EventClient) DeleteProviders(ctx context.Context, eventID int64) error {
	return c.deleteWhere(ctx, "delete event providers", "events_providers", entsql.EQ("event_id", eventID))
}

func (c *EventClient) DeleteTags(ctx context.Context, eventID int64) error {
	return c.deleteWhere(ctx, "delete event tags", "events_tags", entsql.EQ("event_id", eventID))
}

func (c *EventClient) DeleteCouponLinks(ctx context.Context, eventID int64) error {
	return c.deleteWhere(ctx, "delete event coupons", "coupons_to_events", entsql.EQ("event_id", eventID))
}

func (c *EventClient) DeleteCustomFieldLinks(ctx context.Context, eventID int64) error {
	return c.deleteWhere(ctx, "delete event custom fields", "custom_fields_events", entsql.EQ("event_id", eventID))
}

func (c *EventClient) DeleteGallery(ctx context.Context, eventID int64) error {
	return c.deleteWhere(ctx, "delete event gallery", "events_gallery", entsql.EQ("event_id", eventID))
}

func (c *EventClient) AddGalleryImage(ctx context.Context, g *domain.GalleryImage) error {
	id, err := c.insert(ctx, "create gallery image", c.builder().Insert("events_gallery").
		Columns("event_id", "picture_full_path", "position").
		Values(g.EventID, g.URL, g.Position))
	if err != nil {
		return err
	}
	g.ID = id
	return nil
}

// Delete removes the event row only.
func (c *EventClient) Delete(ctx context.Context, id int64) error {
	return c.deleteWhere(ctx, "delete event", "events", entsql.EQ("id", id))
}
