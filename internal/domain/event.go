package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
)

// Recurring describes an event's place in a recurrence chain.
type Recurring struct {
	Cycle Cycle     `json:"cycle"`
	Until time.Time `json:"until"`
	Order int       `json:"order"`
}

type EventPeriod struct {
	ID            int64     `json:"id"`
	EventID       int64     `json:"eventId"`
	PeriodStart   time.Time `json:"periodStart"`
	PeriodEnd     time.Time `json:"periodEnd"`
	ZoomMeetingID string    `json:"zoomMeetingId,omitempty"`
}

type EventTag struct {
	ID      int64  `json:"id"`
	EventID int64  `json:"eventId"`
	Name    string `json:"name"`
}

type GalleryImage struct {
	ID       int64  `json:"id"`
	EventID  int64  `json:"entityId"`
	URL      string `json:"pictureFullPath"`
	Position int    `json:"position"`
}

// Event is a group booking that may belong to a recurrence chain. The
// origin of a chain has a nil ParentID; followers point at the origin.
type Event struct {
	ID                 int64              `json:"id"`
	ParentID           *int64             `json:"parentId"`
	Name               string             `json:"name"`
	Description        string             `json:"description"`
	Status             BookingStatus      `json:"status"`
	Recurring          *Recurring         `json:"recurring"`
	Periods            []*EventPeriod     `json:"periods"`
	Bookings           []*CustomerBooking `json:"bookings"`
	Providers          []int64            `json:"providers"`
	Tags               []*EventTag        `json:"tags"`
	Gallery            []*GalleryImage    `json:"gallery"`
	CouponIDs          []int64            `json:"coupons"`
	Price              float64            `json:"price"`
	MaxCapacity        int                `json:"maxCapacity"`
	AggregatedPrice    bool               `json:"aggregatedPrice"`
	BookingOpens       *time.Time         `json:"bookingOpens"`
	BookingCloses      *time.Time         `json:"bookingCloses"`
	LocationID         *int64             `json:"locationId"`
	CustomLocation     string             `json:"customLocation"`
	NotifyParticipants bool               `json:"notifyParticipants"`
	ZoomUserID         string             `json:"zoomUserId"`
	Created            time.Time          `json:"created"`
	Extras             []*Extra           `json:"extras"`
	Settings           EntitySettings     `json:"settings"`
}

func (e *Event) Kind() EntityType                { return EntityEvent }
func (e *Event) EntityID() int64                 { return e.ID }
func (e *Event) EntityKind() EntityType          { return EntityEvent }
func (e *Event) EntityPrice() float64            { return e.Price }
func (e *Event) IsAggregatedPrice() bool         { return e.AggregatedPrice }
func (e *Event) EntitySettings() EntitySettings  { return e.Settings }
func (e *Event) BookingList() []*CustomerBooking { return e.Bookings }
func (e *Event) CurrentStatus() BookingStatus    { return e.Status }

func (e *Event) ExtraByID(id int64) (*Extra, bool) {
	return lo.Find(e.Extras, func(x *Extra) bool { return x.ID == id })
}

func (e *Event) Intervals() []TimeInterval {
	return lo.Map(e.Periods, func(p *EventPeriod, _ int) TimeInterval {
		return TimeInterval{Start: p.PeriodStart, End: p.PeriodEnd}
	})
}

// Start is the first period start, or the zero time for an event without
// periods.
func (e *Event) Start() time.Time {
	if len(e.Periods) == 0 {
		return time.Time{}
	}
	return e.Periods[0].PeriodStart
}

// ChainRoot is the id that identifies the event's recurrence chain.
func (e *Event) ChainRoot() int64 {
	if e.ParentID != nil {
		return *e.ParentID
	}
	return e.ID
}

// Clone returns a deep copy, used as a snapshot before mutation.
func (e *Event) Clone() *Event {
	c := *e
	c.ParentID = clonePtr(e.ParentID)
	c.LocationID = clonePtr(e.LocationID)
	c.BookingOpens = clonePtr(e.BookingOpens)
	c.BookingCloses = clonePtr(e.BookingCloses)
	if e.Recurring != nil {
		r := *e.Recurring
		c.Recurring = &r
	}
	c.Periods = ClonePeriods(e.Periods, true)
	c.Bookings = lo.Map(e.Bookings, func(b *CustomerBooking, _ int) *CustomerBooking { return b.Clone() })
	c.Providers = slices.Clone(e.Providers)
	c.CouponIDs = slices.Clone(e.CouponIDs)
	c.Tags = lo.Map(e.Tags, func(t *EventTag, _ int) *EventTag { cp := *t; return &cp })
	c.Gallery = lo.Map(e.Gallery, func(g *GalleryImage, _ int) *GalleryImage { cp := *g; return &cp })
	c.Extras = lo.Map(e.Extras, func(x *Extra, _ int) *Extra { cp := *x; return &cp })
	return &c
}

// ClonePeriods copies periods; keepIDs false strips ids and Zoom meetings so
// the copies can be inserted as new rows.
func ClonePeriods(periods []*EventPeriod, keepIDs bool) []*EventPeriod {
	return lo.Map(periods, func(p *EventPeriod, _ int) *EventPeriod {
		cp := *p
		if !keepIDs {
			cp.ID = 0
			cp.EventID = 0
			cp.ZoomMeetingID = ""
		}
		return &cp
	})
}

// PeriodsEqual compares ids and bounds position by position.
func PeriodsEqual(a, b []*EventPeriod) bool {
	return slices.EqualFunc(a, b, func(x, y *EventPeriod) bool {
		return x.ID == y.ID && x.PeriodStart.Equal(y.PeriodStart) && x.PeriodEnd.Equal(y.PeriodEnd)
	})
}

// ShiftByCycle moves t forward by n cycle steps.
func ShiftByCycle(t time.Time, cycle Cycle, n int) (time.Time, error) {
	switch cycle {
	case CycleDaily:
		return t.AddDate(0, 0, n), nil
	case CycleWeekly:
		return t.AddDate(0, 0, 7*n), nil
	case CycleMonthly:
		return t.AddDate(0, n, 0), nil
	case CycleYearly:
		return t.AddDate(n, 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownCycle, cycle)
}

// BuildFollowingEvent rewrites following's periods from the origin pattern,
// shifted by (order-1) cycles. Existing period ids are kept position by
// position; surplus periods are dropped. Descriptive fields are copied
// from origin.
func BuildFollowingEvent(following, origin *Event, originPeriods []*EventPeriod) error {
	if following.Recurring == nil || origin.Recurring == nil {
		return fmt.Errorf("%w: event is not recurring", ErrInvalidArgument)
	}
	steps := following.Recurring.Order - 1

	periods := make([]*EventPeriod, 0, len(originPeriods))
	for i, op := range originPeriods {
		start, err := ShiftByCycle(op.PeriodStart, origin.Recurring.Cycle, steps)
		if err != nil {
			return err
		}
		end, err := ShiftByCycle(op.PeriodEnd, origin.Recurring.Cycle, steps)
		if err != nil {
			return err
		}

		p := &EventPeriod{EventID: following.ID, PeriodStart: start, PeriodEnd: end}
		if i < len(following.Periods) {
			p.ID = following.Periods[i].ID
			p.ZoomMeetingID = following.Periods[i].ZoomMeetingID
		}
		periods = append(periods, p)
	}
	following.Periods = periods

	following.Name = origin.Name
	following.Price = origin.Price
	following.MaxCapacity = origin.MaxCapacity
	following.AggregatedPrice = origin.AggregatedPrice
	following.LocationID = clonePtr(origin.LocationID)
	following.CustomLocation = origin.CustomLocation
	following.Providers = slices.Clone(origin.Providers)
	following.Tags = lo.Map(origin.Tags, func(t *EventTag, _ int) *EventTag {
		return &EventTag{EventID: following.ID, Name: t.Name}
	})
	following.Settings = origin.Settings
	return nil
}

// RecurringPeriods generates the period sets of every occurrence after the
// first one, up to and including until, capped at maxOccurrences.
func RecurringPeriods(rec Recurring, periods []*EventPeriod, maxOccurrences int) ([][]*EventPeriod, error) {
	if len(periods) == 0 {
		return nil, nil
	}
	var out [][]*EventPeriod
	for n := 1; ; n++ {
		first, err := ShiftByCycle(periods[0].PeriodStart, rec.Cycle, n)
		if err != nil {
			return nil, err
		}
		if first.After(rec.Until) {
			return out, nil
		}
		if maxOccurrences > 0 && n+1 > maxOccurrences {
			return nil, ErrTooManyOccurrences
		}

		set := make([]*EventPeriod, 0, len(periods))
		for _, p := range periods {
			start, _ := ShiftByCycle(p.PeriodStart, rec.Cycle, n)
			end, _ := ShiftByCycle(p.PeriodEnd, rec.Cycle, n)
			set = append(set, &EventPeriod{PeriodStart: start, PeriodEnd: end})
		}
		out = append(out, set)
	}
}

// DailyBlocks splits a multi-day period into one block per day, each
// running from the period's start clock to its end clock.
func (p *EventPeriod) DailyBlocks() []TimeInterval {
	endClock := p.PeriodEnd.Sub(dateOnly(p.PeriodEnd))

	var out []TimeInterval
	for day := p.PeriodStart; day.Before(p.PeriodEnd); day = day.AddDate(0, 0, 1) {
		end := dateOnly(day).Add(endClock)
		if !end.After(day) {
			end = end.AddDate(0, 0, 1)
		}
		out = append(out, TimeInterval{Start: day, End: end})
	}
	return out
}
