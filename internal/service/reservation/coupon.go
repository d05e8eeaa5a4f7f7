package reservation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
)

// couponFor loads the coupon behind code for the entity. validate also
// checks status, expiry and both usage limits.
func couponFor(ctx context.Context, db *repo.Client, code string, kind domain.EntityType, entityID, customerID int64, validate bool, now time.Time) (*domain.Coupon, error) {
	coupon, err := db.Coupon.FindByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if coupon == nil || !coupon.AppliesTo(kind, entityID) {
		return nil, fmt.Errorf("%w: %q", ErrCouponUnknown, code)
	}

	if coupon.Used, err = db.Booking.CountActiveWithCoupon(ctx, coupon.ID, nil); err != nil {
		return nil, err
	}
	if !validate {
		return coupon, nil
	}

	switch {
	case coupon.Status == domain.CouponHidden:
		return nil, fmt.Errorf("%w: %q is hidden", ErrCouponInvalid, code)
	case coupon.Expired(now):
		return nil, fmt.Errorf("%w: %q expired", ErrCouponInvalid, code)
	case coupon.Remaining() == 0:
		return nil, fmt.Errorf("%w: %q limit reached", ErrCouponInvalid, code)
	}

	left, err := customerCouponsLeft(ctx, db, coupon, customerID)
	if err != nil {
		return nil, err
	}
	if left == 0 {
		return nil, fmt.Errorf("%w: %q customer limit reached", ErrCouponInvalid, code)
	}
	return coupon, nil
}

// customerCouponsLeft is how many more times the customer may use the
// coupon, or math.MaxInt when unlimited.
func customerCouponsLeft(ctx context.Context, db *repo.Client, coupon *domain.Coupon, customerID int64) (int, error) {
	if coupon.CustomerLimit <= 0 || customerID == 0 {
		return math.MaxInt, nil
	}
	used, err := db.Booking.CountActiveWithCoupon(ctx, coupon.ID, &customerID)
	if err != nil {
		return 0, err
	}
	return max(coupon.CustomerLimit-used, 0), nil
}

// allowedCouponUses is how many bookings of this request may carry the
// coupon under both limits.
func allowedCouponUses(ctx context.Context, db *repo.Client, coupon *domain.Coupon, customerID int64) (int, error) {
	left, err := customerCouponsLeft(ctx, db, coupon, customerID)
	if err != nil {
		return 0, err
	}
	if r := coupon.Remaining(); r >= 0 {
		left = min(left, r)
	}
	return left, nil
}
