package repo

import (
	"context"
	"encoding/json"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
)

type PaymentClient struct {
	config
}

func (c *PaymentClient) Create(ctx context.Context, p *domain.Payment) error {
	id, err := c.insert(ctx, "create payment", c.builder().Insert("payments").
		Columns("customer_booking_id", "amount", "date_time", "status", "gateway", "gateway_title", "data").
		Values(p.CustomerBookingID, p.Amount, p.DateTime.UTC(), string(p.Status), string(p.Gateway), p.GatewayTitle, jsonText(p.Data)))
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func (c *PaymentClient) ByBookings(ctx context.Context, bookingIDs []int64) ([]*domain.Payment, error) {
	if len(bookingIDs) == 0 {
		return nil, nil
	}
	sel := c.builder().Select("id", "customer_booking_id", "amount", "date_time", "status", "gateway", "gateway_title", "data").
		From(c.table("payments")).
		Where(entsql.In("customer_booking_id", ids(bookingIDs)...)).
		OrderBy("id")

	var out []*domain.Payment
	err := c.query(ctx, "list payments", sel, func(rows *entsql.Rows) error {
		var (
			p    domain.Payment
			data string
		)
		if err := rows.Scan(&p.ID, &p.CustomerBookingID, &p.Amount, &p.DateTime, &p.Status, &p.Gateway, &p.GatewayTitle, &data); err != nil {
			return err
		}
		if data != "" {
			p.Data = json.RawMessage(data)
		}
		p.DateTime = p.DateTime.UTC()
		out = append(out, &p)
		return nil
	})
	return out, err
}

func (c *PaymentClient) DeleteByBooking(ctx context.Context, bookingID int64) error {
	return c.deleteWhere(ctx, "delete payments", "payments", entsql.EQ("customer_booking_id", bookingID))
}
