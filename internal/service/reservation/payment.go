package reservation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/settings"
)

// GetPaymentAmount prices a booking: the base price and every extra, each
// multiplied by persons when aggregated, less the coupon's percentage and
// then its fixed deduction. The result is rounded to cents and never
// negative.
func GetPaymentAmount(booking *domain.CustomerBooking, bookable domain.Bookable) float64 {
	persons := max(booking.Persons, 1)
	aggregated := bookable.IsAggregatedPrice()

	price := bookable.EntityPrice()
	if aggregated {
		price *= float64(persons)
	}

	for _, be := range booking.Extras {
		extra, ok := bookable.ExtraByID(be.ExtraID)
		if !ok {
			continue
		}
		extraAggregated := aggregated
		if extra.AggregatedPrice != nil {
			extraAggregated = *extra.AggregatedPrice
		}
		amount := extra.Price * float64(be.Quantity)
		if extraAggregated {
			amount *= float64(persons)
		}
		price += amount
	}

	if booking.Coupon != nil {
		price -= price/100*booking.Coupon.Discount + booking.Coupon.Deduction
	}
	return max(math.Round(price*100)/100, 0)
}

// reservationAmount is what the request charges in total, recurring items
// included.
func reservationAmount(res *domain.Reservation) float64 {
	total := GetPaymentAmount(res.Booking, res.Bookable)
	for _, r := range res.Recurring {
		total += GetPaymentAmount(r.Booking, r.Bookable)
	}
	return math.Round(total*100) / 100
}

// checkPayment rejects gateways the settings do not enable and online
// payments of nothing.
func checkPayment(set *settings.Settings, req PaymentRequest, amount float64) error {
	gateway := req.Gateway
	if gateway == "" {
		gateway = domain.GatewayOnSite
	}
	if amount <= 0 && gateway.IsOnline() {
		return fmt.Errorf("%w: nothing to charge through %s", ErrPaymentRejected, gateway)
	}
	if amount > 0 && !set.GatewayEnabled(gateway) {
		return fmt.Errorf("%w: gateway %s is disabled", ErrPaymentRejected, gateway)
	}
	return nil
}

// AddPayment records the payment of one booking. On-site payments and
// bookings that cost nothing stay pending with a zero amount; online
// gateways are paid, and WooCommerce reports its own status.
func (s *reservationService) AddPayment(ctx context.Context, bookingID int64, req PaymentRequest, amount float64, at time.Time) (*domain.Payment, error) {
	gateway := req.Gateway
	if gateway == "" || amount <= 0 {
		gateway = domain.GatewayOnSite
	}

	p := &domain.Payment{
		CustomerBookingID: bookingID,
		Amount:            amount,
		DateTime:          s.now().UTC(),
		Status:            domain.PaymentPending,
		Gateway:           gateway,
		GatewayTitle:      req.GatewayTitle,
		Data:              req.Data,
	}
	switch {
	case gateway == domain.GatewayOnSite:
		p.Amount = 0
		p.DateTime = at.UTC()
	case gateway == domain.GatewayWC:
		p.Status = req.Status
	case gateway.IsOnline():
		p.Status = domain.PaymentPaid
	}

	if err := s.db.Use(ctx).Payment.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("add payment: %w", err)
	}
	return p, nil
}

// InspectMinimumCancellationTime fails once now has reached minSeconds
// before start.
func (s *reservationService) InspectMinimumCancellationTime(start time.Time, minSeconds int) error {
	deadline := start.Add(-time.Duration(minSeconds) * time.Second)
	if !s.now().Before(deadline) {
		return fmt.Errorf("%w: deadline was %s", ErrBookingCancellation, deadline.Format(time.RFC3339))
	}
	return nil
}

// payAll records a payment for the main booking and every recurring one.
func (s *reservationService) payAll(ctx context.Context, res *domain.Reservation, req PaymentRequest) error {
	items := append([]*domain.Reservation{res}, res.Recurring...)
	for _, r := range items {
		p, err := s.AddPayment(ctx, r.Booking.ID, req, GetPaymentAmount(r.Booking, r.Bookable), r.Reservation.Start())
		if err != nil {
			return err
		}
		r.Booking.Payments = append(r.Booking.Payments, p)
	}
	return nil
}
