package repo

import (
	"context"
	"database/sql"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/samber/lo"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
)

type CouponClient struct {
	config
}

// FindByCode returns nil when no coupon has the code.
func (c *CouponClient) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	sel := c.builder().Select("id", "code", "discount", "deduction", "usage_limit", "customer_limit", "status", "expiration_date").
		From(c.table("coupons")).
		Where(entsql.EQ("code", code))

	var coupon *domain.Coupon
	err := c.query(ctx, "find coupon", sel, func(rows *entsql.Rows) error {
		var (
			cp  domain.Coupon
			exp sql.NullTime
		)
		if err := rows.Scan(&cp.ID, &cp.Code, &cp.Discount, &cp.Deduction, &cp.Limit, &cp.CustomerLimit, &cp.Status, &exp); err != nil {
			return err
		}
		cp.ExpirationDate = timePtr(exp)
		coupon = &cp
		return nil
	})
	if err != nil || coupon == nil {
		return nil, err
	}

	if coupon.ServiceIDs, err = c.links(ctx, "coupons_to_services", "service_id", coupon.ID); err != nil {
		return nil, err
	}
	if coupon.EventIDs, err = c.links(ctx, "coupons_to_events", "event_id", coupon.ID); err != nil {
		return nil, err
	}
	return coupon, nil
}

func (c *CouponClient) links(ctx context.Context, table, column string, couponID int64) ([]int64, error) {
	var out []int64
	err := c.query(ctx, "load coupon links", c.builder().Select(column).
		From(c.table(table)).
		Where(entsql.EQ("coupon_id", couponID)).
		OrderBy("id"), func(rows *entsql.Rows) error {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		out = append(out, id)
		return nil
	})
	return out, err
}

// Create inserts the coupon with its service and event links.
func (c *CouponClient) Create(ctx context.Context, cp *domain.Coupon) error {
	id, err := c.insert(ctx, "create coupon", c.builder().Insert("coupons").
		Columns("code", "discount", "deduction", "usage_limit", "customer_limit", "status", "expiration_date").
		Values(cp.Code, cp.Discount, cp.Deduction, cp.Limit, cp.CustomerLimit, string(lo.Ternary(cp.Status == "", domain.CouponVisible, cp.Status)),
			nullTime(cp.ExpirationDate)))
	if err != nil {
		return err
	}
	cp.ID = id

	for _, sid := range cp.ServiceIDs {
		if _, err := c.insert(ctx, "link coupon service", c.builder().Insert("coupons_to_services").
			Columns("coupon_id", "service_id").Values(id, sid)); err != nil {
			return err
		}
	}
	for _, eid := range cp.EventIDs {
		if _, err := c.insert(ctx, "link coupon event", c.builder().Insert("coupons_to_events").
			Columns("coupon_id", "event_id").Values(id, eid)); err != nil {
			return err
		}
	}
	return nil
}
