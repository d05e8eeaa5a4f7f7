package repo

import (
	"context"
	"database/sql"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
)

type ServiceClient struct {
	config
}

// Get loads a service with its extras.
func (c *ServiceClient) Get(ctx context.Context, id int64) (*domain.Service, error) {
	sel := c.builder().Select(
		"id", "name", "price", "duration", "time_before", "time_after", "min_capacity", "max_capacity",
		"aggregated_price", "status", "min_time_before_booking", "min_time_before_canceling", "days_available_for_booking",
	).From(c.table("services")).Where(entsql.EQ("id", id))

	var svc *domain.Service
	err := c.query(ctx, "get service", sel, func(rows *entsql.Rows) error {
		var s domain.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Price, &s.Duration, &s.TimeBefore, &s.TimeAfter, &s.MinCapacity, &s.MaxCapacity,
			&s.AggregatedPrice, &s.Status, &s.Settings.MinimumTimeBeforeBooking, &s.Settings.MinimumTimeBeforeCanceling,
			&s.Settings.DaysAvailableForBooking); err != nil {
			return err
		}
		svc = &s
		return nil
	})
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, notFound("service", id)
	}

	svc.Extras, err = c.extras(ctx, id)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (c *ServiceClient) extras(ctx context.Context, serviceID int64) ([]*domain.Extra, error) {
	sel := c.builder().Select("id", "service_id", "name", "price", "duration", "max_quantity", "aggregated_price").
		From(c.table("extras")).
		Where(entsql.EQ("service_id", serviceID)).
		OrderBy("id")

	var out []*domain.Extra
	err := c.query(ctx, "list extras", sel, func(rows *entsql.Rows) error {
		var (
			e   domain.Extra
			agg sql.NullBool
		)
		if err := rows.Scan(&e.ID, &e.ServiceID, &e.Name, &e.Price, &e.Duration, &e.MaxQuantity, &agg); err != nil {
			return err
		}
		e.AggregatedPrice = boolPtr(agg)
		out = append(out, &e)
		return nil
	})
	return out, err
}

// Create inserts the service and its extras.
func (c *ServiceClient) Create(ctx context.Context, s *domain.Service) error {
	id, err := c.insert(ctx, "create service", c.builder().Insert("services").
		Columns("name", "price", "duration", "time_before", "time_after", "min_capacity", "max_capacity",
			"aggregated_price", "status", "min_time_before_booking", "min_time_before_canceling", "days_available_for_booking").
		Values(s.Name, s.Price, s.Duration, s.TimeBefore, s.TimeAfter, s.MinCapacity, s.MaxCapacity,
			s.AggregatedPrice, statusOr(s.Status, "visible"), s.Settings.MinimumTimeBeforeBooking,
			s.Settings.MinimumTimeBeforeCanceling, s.Settings.DaysAvailableForBooking))
	if err != nil {
		return err
	}
	s.ID = id

	for _, e := range s.Extras {
		e.ServiceID = id
		e.ID, err = c.insert(ctx, "create extra", c.builder().Insert("extras").
			Columns("service_id", "name", "price", "duration", "max_quantity", "aggregated_price").
			Values(id, e.Name, e.Price, e.Duration, e.MaxQuantity, nullBool(e.AggregatedPrice)))
		if err != nil {
			return err
		}
	}
	return nil
}

func statusOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
