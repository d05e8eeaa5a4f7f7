package domain

// BookingStatus is shared by appointments, events and customer bookings.
type BookingStatus string

const (
	StatusPending  BookingStatus = "pending"
	StatusApproved BookingStatus = "approved"
	StatusCanceled BookingStatus = "canceled"
	StatusRejected BookingStatus = "rejected"
	StatusNoShow   BookingStatus = "no-show"
)

// IsActive reports whether the status still occupies provider time.
func (s BookingStatus) IsActive() bool {
	return s == StatusApproved || s == StatusPending
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusCanceled, StatusRejected, StatusNoShow:
		return true
	}
	return false
}

// EntityType tags the two bookable reservation kinds.
type EntityType string

const (
	EntityAppointment EntityType = "appointment"
	EntityEvent       EntityType = "event"
)

func (e EntityType) Valid() bool {
	return e == EntityAppointment || e == EntityEvent
}

type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentPaid          PaymentStatus = "paid"
	PaymentPartiallyPaid PaymentStatus = "partiallyPaid"
	PaymentRefunded      PaymentStatus = "refunded"
)

type PaymentGateway string

const (
	GatewayOnSite   PaymentGateway = "onSite"
	GatewayPayPal   PaymentGateway = "payPal"
	GatewayStripe   PaymentGateway = "stripe"
	GatewayWC       PaymentGateway = "wc"
	GatewayMollie   PaymentGateway = "mollie"
	GatewayRazorpay PaymentGateway = "razorpay"
)

// IsOnline reports whether the gateway charges the customer up front.
func (g PaymentGateway) IsOnline() bool {
	switch g {
	case GatewayPayPal, GatewayStripe, GatewayMollie, GatewayRazorpay:
		return true
	}
	return false
}

// Cycle is the repeat unit of a recurring event.
type Cycle string

const (
	CycleDaily   Cycle = "daily"
	CycleWeekly  Cycle = "weekly"
	CycleMonthly Cycle = "monthly"
	CycleYearly  Cycle = "yearly"
)

func (c Cycle) Valid() bool {
	switch c {
	case CycleDaily, CycleWeekly, CycleMonthly, CycleYearly:
		return true
	}
	return false
}
