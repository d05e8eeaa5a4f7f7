package domain

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"
)

// CustomerBooking is one customer's seat(s) on an appointment or an event.
type CustomerBooking struct {
	ID              int64           `json:"id"`
	AppointmentID   *int64          `json:"appointmentId"`
	EventID         *int64          `json:"eventId,omitempty"`
	CustomerID      int64           `json:"customerId"`
	Customer        *Customer       `json:"customer,omitempty"`
	Status          BookingStatus   `json:"status"`
	Persons         int             `json:"persons"`
	Price           float64         `json:"price"`
	AggregatedPrice bool            `json:"aggregatedPrice"`
	CouponID        *int64          `json:"couponId"`
	Coupon          *Coupon         `json:"coupon,omitempty"`
	Extras          []*BookingExtra `json:"extras"`
	CustomFields    json.RawMessage `json:"customFields,omitempty"`
	Info            json.RawMessage `json:"info,omitempty"`
	UTCOffset       *int            `json:"utcOffset"`
	Token           string          `json:"token,omitempty"`
	Created         time.Time       `json:"created"`
	Payments        []*Payment      `json:"payments"`

	// ChangedStatus is set in memory when a cascade rejected this booking.
	ChangedStatus bool `json:"isChangedStatus"`
}

type BookingExtra struct {
	ID                int64   `json:"id"`
	CustomerBookingID int64   `json:"customerBookingId"`
	ExtraID           int64   `json:"extraId"`
	Quantity          int     `json:"quantity"`
	Price             float64 `json:"price"`
	AggregatedPrice   *bool   `json:"aggregatedPrice"`
}

// Clone returns a deep copy.
func (b *CustomerBooking) Clone() *CustomerBooking {
	if b == nil {
		return nil
	}
	c := *b
	c.AppointmentID = clonePtr(b.AppointmentID)
	c.EventID = clonePtr(b.EventID)
	c.CouponID = clonePtr(b.CouponID)
	c.UTCOffset = clonePtr(b.UTCOffset)
	if b.Customer != nil {
		cust := *b.Customer
		c.Customer = &cust
	}
	if b.Coupon != nil {
		c.Coupon = b.Coupon.Clone()
	}
	c.Extras = lo.Map(b.Extras, func(e *BookingExtra, _ int) *BookingExtra {
		cp := *e
		cp.AggregatedPrice = clonePtr(e.AggregatedPrice)
		return &cp
	})
	c.Payments = lo.Map(b.Payments, func(p *Payment, _ int) *Payment {
		cp := *p
		return &cp
	})
	c.CustomFields = append(json.RawMessage(nil), b.CustomFields...)
	c.Info = append(json.RawMessage(nil), b.Info...)
	return &c
}

// BookingsOf keeps only the given customer's bookings. The input slice is
// left untouched.
func BookingsOf(bookings []*CustomerBooking, customerID int64) []*CustomerBooking {
	return lo.Filter(bookings, func(b *CustomerBooking, _ int) bool {
		return b.CustomerID == customerID
	})
}

// ActivePersons sums persons across approved and pending bookings.
func ActivePersons(bookings []*CustomerBooking) int {
	return lo.SumBy(bookings, func(b *CustomerBooking) int {
		if b.Status.IsActive() {
			return b.Persons
		}
		return 0
	})
}

type Payment struct {
	ID                int64           `json:"id"`
	CustomerBookingID int64           `json:"customerBookingId"`
	Amount            float64         `json:"amount"`
	DateTime          time.Time       `json:"dateTime"`
	Status            PaymentStatus   `json:"status"`
	Gateway           PaymentGateway  `json:"gateway"`
	GatewayTitle      string          `json:"gatewayTitle,omitempty"`
	Data              json.RawMessage `json:"data,omitempty"`
}

type Customer struct {
	ID        int64      `json:"id"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Birthday  *time.Time `json:"birthday"`
	Note      string     `json:"note,omitempty"`
}

func (c *Customer) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
