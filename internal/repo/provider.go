package repo

import (
	"context"
	"database/sql"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/samber/lo"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
)

// ProviderClient loads providers with their working schedule.
type ProviderClient struct {
	config
}

// ListForService returns visible providers offering the service. A non
// empty ids narrows the result.
func (c *ProviderClient) ListForService(ctx context.Context, serviceID int64, providerIDs []int64) ([]*domain.Provider, error) {
	preds := []*entsql.Predicate{entsql.EQ("service_id", serviceID)}
	if len(providerIDs) > 0 {
		preds = append(preds, entsql.In("user_id", ids(providerIDs)...))
	}
	sel := c.builder().Select("user_id").From(c.table("provider_services")).Where(entsql.And(preds...))

	var userIDs []int64
	err := c.query(ctx, "list service providers", sel, func(rows *entsql.Rows) error {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		userIDs = append(userIDs, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.List(ctx, userIDs)
}

// Get returns a NotFoundError when the provider does not exist.
func (c *ProviderClient) Get(ctx context.Context, id int64) (*domain.Provider, error) {
	ps, err := c.List(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, notFound("provider", id)
	}
	return ps[0], nil
}

// List loads the providers with the given ids, ordered by id.
func (c *ProviderClient) List(ctx context.Context, providerIDs []int64) ([]*domain.Provider, error) {
	if len(providerIDs) == 0 {
		return nil, nil
	}
	sel := c.builder().Select("id", "first_name", "last_name", "email", "phone", "location_id").
		From(c.table("users")).
		Where(entsql.And(
			entsql.In("id", ids(providerIDs)...),
			entsql.EQ("type", UserTypeProvider),
			entsql.EQ("status", "visible"),
		)).
		OrderBy("id")

	var out []*domain.Provider
	err := c.query(ctx, "list providers", sel, func(rows *entsql.Rows) error {
		var (
			p   domain.Provider
			loc sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &loc); err != nil {
			return err
		}
		p.LocationID = intPtr(loc)
		p.Services = map[int64]domain.ProviderService{}
		p.Schedule = domain.ProviderSchedule{
			WeekDays: map[time.Weekday][]domain.ClockRange{},
			Breaks:   map[time.Weekday][]domain.ClockRange{},
		}
		out = append(out, &p)
		return nil
	})
	if err != nil || len(out) == 0 {
		return out, err
	}

	byID := lo.KeyBy(out, func(p *domain.Provider) int64 { return p.ID })
	loaders := []func(context.Context, map[int64]*domain.Provider) error{
		c.loadServices,
		c.loadWeekPeriods,
		c.loadDaysOff,
		c.loadSpecialDays,
		c.loadCalendars,
	}
	for _, load := range loaders {
		if err := load(ctx, byID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *ProviderClient) loadServices(ctx context.Context, byID map[int64]*domain.Provider) error {
	sel := c.builder().Select("user_id", "service_id", "price", "min_capacity", "max_capacity").
		From(c.table("provider_services")).
		Where(entsql.In("user_id", ids(lo.Keys(byID))...))

	return c.query(ctx, "load provider services", sel, func(rows *entsql.Rows) error {
		var (
			userID int64
			ps     domain.ProviderService
		)
		if err := rows.Scan(&userID, &ps.ServiceID, &ps.Price, &ps.MinCapacity, &ps.MaxCapacity); err != nil {
			return err
		}
		byID[userID].Services[ps.ServiceID] = ps
		return nil
	})
}

func (c *ProviderClient) loadWeekPeriods(ctx context.Context, byID map[int64]*domain.Provider) error {
	sel := c.builder().Select("user_id", "day_index", "start_time", "end_time", "location_id", "is_break").
		From(c.table("provider_week_periods")).
		Where(entsql.In("user_id", ids(lo.Keys(byID))...)).
		OrderBy("user_id", "day_index", "start_time")

	return c.query(ctx, "load week periods", sel, func(rows *entsql.Rows) error {
		var (
			userID  int64
			day     int
			r       domain.ClockRange
			loc     sql.NullInt64
			isBreak bool
		)
		if err := rows.Scan(&userID, &day, &r.Start, &r.End, &loc, &isBreak); err != nil {
			return err
		}
		r.LocationID = intPtr(loc)
		sched := &byID[userID].Schedule
		if isBreak {
			sched.Breaks[time.Weekday(day)] = append(sched.Breaks[time.Weekday(day)], r)
		} else {
			sched.WeekDays[time.Weekday(day)] = append(sched.WeekDays[time.Weekday(day)], r)
		}
		return nil
	})
}

func (c *ProviderClient) loadDaysOff(ctx context.Context, byID map[int64]*domain.Provider) error {
	sel := c.builder().Select("id", "user_id", "name", "start_date", "end_date", "repeat").
		From(c.table("provider_days_off")).
		Where(entsql.In("user_id", ids(lo.Keys(byID))...)).
		OrderBy("id")

	return c.query(ctx, "load days off", sel, func(rows *entsql.Rows) error {
		var (
			userID int64
			d      domain.DayOff
		)
		if err := rows.Scan(&d.ID, &userID, &d.Name, &d.Start, &d.End, &d.Repeat); err != nil {
			return err
		}
		d.Start, d.End = d.Start.UTC(), d.End.UTC()
		byID[userID].Schedule.DaysOff = append(byID[userID].Schedule.DaysOff, d)
		return nil
	})
}

func (c *ProviderClient) loadSpecialDays(ctx context.Context, byID map[int64]*domain.Provider) error {
	sel := c.builder().Select("id", "user_id", "start_date", "end_date").
		From(c.table("provider_special_days")).
		Where(entsql.In("user_id", ids(lo.Keys(byID))...)).
		OrderBy("id")

	type row struct {
		userID int64
		day    domain.SpecialDay
	}
	var days []row
	err := c.query(ctx, "load special days", sel, func(rows *entsql.Rows) error {
		var r row
		if err := rows.Scan(&r.day.ID, &r.userID, &r.day.Start, &r.day.End); err != nil {
			return err
		}
		r.day.Start, r.day.End = r.day.Start.UTC(), r.day.End.UTC()
		days = append(days, r)
		return nil
	})
	if err != nil || len(days) == 0 {
		return err
	}

	periods := map[int64][]domain.ClockRange{}
	sel = c.builder().Select("special_day_id", "start_time", "end_time", "location_id").
		From(c.table("provider_special_day_periods")).
		Where(entsql.In("special_day_id", ids(lo.Map(days, func(r row, _ int) int64 { return r.day.ID }))...)).
		OrderBy("special_day_id", "start_time")
	err = c.query(ctx, "load special day periods", sel, func(rows *entsql.Rows) error {
		var (
			dayID int64
			r     domain.ClockRange
			loc   sql.NullInt64
		)
		if err := rows.Scan(&dayID, &r.Start, &r.End, &loc); err != nil {
			return err
		}
		r.LocationID = intPtr(loc)
		periods[dayID] = append(periods[dayID], r)
		return nil
	})
	if err != nil {
		return err
	}

	for _, r := range days {
		r.day.Periods = periods[r.day.ID]
		byID[r.userID].Schedule.SpecialDays = append(byID[r.userID].Schedule.SpecialDays, r.day)
	}
	return nil
}

func (c *ProviderClient) loadCalendars(ctx context.Context, byID map[int64]*domain.Provider) error {
	sel := c.builder().Select("id", "user_id", "kind", "calendar_id", "token").
		From(c.table("provider_calendars")).
		Where(entsql.In("user_id", ids(lo.Keys(byID))...)).
		OrderBy("id")

	return c.query(ctx, "load calendars", sel, func(rows *entsql.Rows) error {
		var link domain.CalendarLink
		if err := rows.Scan(&link.ID, &link.ProviderID, &link.Kind, &link.CalendarID, &link.Token); err != nil {
			return err
		}
		p := byID[link.ProviderID]
		p.Calendars = append(p.Calendars, &link)
		return nil
	})
}

// Create inserts the provider with its services and schedule.
func (c *ProviderClient) Create(ctx context.Context, p *domain.Provider) error {
	id, err := c.insert(ctx, "create provider", c.builder().Insert("users").
		Columns("type", "status", "first_name", "last_name", "email", "phone", "location_id", "created").
		Values(UserTypeProvider, "visible", p.FirstName, p.LastName, p.Email, p.Phone, nullInt(p.LocationID), time.Now().UTC()))
	if err != nil {
		return err
	}
	p.ID = id

	for _, ps := range p.Services {
		if _, err := c.insert(ctx, "create provider service", c.builder().Insert("provider_services").
			Columns("user_id", "service_id", "price", "min_capacity", "max_capacity").
			Values(id, ps.ServiceID, ps.Price, ps.MinCapacity, ps.MaxCapacity)); err != nil {
			return err
		}
	}

	insertRanges := func(m map[time.Weekday][]domain.ClockRange, isBreak bool) error {
		for day, ranges := range m {
			for _, r := range ranges {
				if _, err := c.insert(ctx, "create week period", c.builder().Insert("provider_week_periods").
					Columns("user_id", "day_index", "start_time", "end_time", "location_id", "is_break").
					Values(id, int(day), r.Start, r.End, nullInt(r.LocationID), isBreak)); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := insertRanges(p.Schedule.WeekDays, false); err != nil {
		return err
	}
	if err := insertRanges(p.Schedule.Breaks, true); err != nil {
		return err
	}

	for i := range p.Schedule.DaysOff {
		d := &p.Schedule.DaysOff[i]
		if d.ID, err = c.insert(ctx, "create day off", c.builder().Insert("provider_days_off").
			Columns("user_id", "name", "start_date", "end_date", "repeat").
			Values(id, d.Name, d.Start.UTC(), d.End.UTC(), d.Repeat)); err != nil {
			return err
		}
	}

	for i := range p.Schedule.SpecialDays {
		sd := &p.Schedule.SpecialDays[i]
		if sd.ID, err = c.insert(ctx, "create special day", c.builder().Insert("provider_special_days").
			Columns("user_id", "start_date", "end_date").
			Values(id, sd.Start.UTC(), sd.End.UTC())); err != nil {
			return err
		}
		for _, r := range sd.Periods {
			if _, err := c.insert(ctx, "create special day period", c.builder().Insert("provider_special_day_periods").
				Columns("special_day_id", "start_time", "end_time", "location_id").
				Values(sd.ID, r.Start, r.End, nullInt(r.LocationID))); err != nil {
				return err
			}
		}
	}

	for _, link := range p.Calendars {
		link.ProviderID = id
		if link.ID, err = c.SaveCalendar(ctx, link); err != nil {
			return err
		}
	}
	return nil
}

// SaveCalendar stores a calendar link. Token must already be encrypted.
func (c *ProviderClient) SaveCalendar(ctx context.Context, link *domain.CalendarLink) (int64, error) {
	return c.insert(ctx, "save calendar", c.builder().Insert("provider_calendars").
		Columns("user_id", "kind", "calendar_id", "token").
		Values(link.ProviderID, string(link.Kind), link.CalendarID, link.Token))
}
