package domain

import (
	"slices"
	"time"
)

type CouponStatus string

const (
	CouponVisible CouponStatus = "visible"
	CouponHidden  CouponStatus = "hidden"
)

// Coupon discounts a booking by a percentage and then a fixed deduction.
type Coupon struct {
	ID             int64        `json:"id"`
	Code           string       `json:"code"`
	Discount       float64      `json:"discount"`
	Deduction      float64      `json:"deduction"`
	Limit          int          `json:"limit"`
	CustomerLimit  int          `json:"customerLimit"`
	Status         CouponStatus `json:"status"`
	ExpirationDate *time.Time   `json:"expirationDate"`
	ServiceIDs     []int64      `json:"serviceIds"`
	EventIDs       []int64      `json:"eventIds"`

	// Used is the number of bookings already holding the coupon.
	Used int `json:"used"`
}

func (c *Coupon) Clone() *Coupon {
	if c == nil {
		return nil
	}
	cp := *c
	cp.ExpirationDate = clonePtr(c.ExpirationDate)
	cp.ServiceIDs = slices.Clone(c.ServiceIDs)
	cp.EventIDs = slices.Clone(c.EventIDs)
	return &cp
}

// AppliesTo reports whether the coupon is attached to the bookable entity.
func (c *Coupon) AppliesTo(kind EntityType, entityID int64) bool {
	switch kind {
	case EntityAppointment:
		return slices.Contains(c.ServiceIDs, entityID)
	case EntityEvent:
		return slices.Contains(c.EventIDs, entityID)
	}
	return false
}

// Expired compares against the end of the expiration day.
func (c *Coupon) Expired(now time.Time) bool {
	if c.ExpirationDate == nil {
		return false
	}
	y, m, d := c.ExpirationDate.Date()
	endOfDay := time.Date(y, m, d, 23, 59, 59, 0, c.ExpirationDate.Location())
	return now.After(endOfDay)
}

// Remaining is the number of further uses allowed, or -1 when unlimited.
func (c *Coupon) Remaining() int {
	if c.Limit <= 0 {
		return -1
	}
	return max(c.Limit-c.Used, 0)
}
