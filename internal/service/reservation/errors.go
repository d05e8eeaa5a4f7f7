package reservation

import "errors"

var (
	ErrBookingUnavailable  = errors.New("time slot is unavailable")
	ErrCustomerBooked      = errors.New("customer already booked this slot")
	ErrCouponUnknown       = errors.New("unknown coupon")
	ErrCouponInvalid       = errors.New("coupon is not valid")
	ErrBookingCancellation = errors.New("booking can no longer be canceled")
	ErrRescheduleDenied    = errors.New("appointment can no longer be rescheduled")
	ErrPaymentRejected     = errors.New("payment rejected")
	ErrAccessDenied        = errors.New("access denied")
	ErrUnknownType         = errors.New("unknown reservation type")
	ErrUploadsDisabled     = errors.New("file uploads are not configured")
)

// Kind names an expected booking failure. Its value is the result data key
// clients look for.
type Kind string

const (
	KindTimeSlotUnavailable Kind = "timeSlotUnavailable"
	KindCustomerBooked      Kind = "customerAlreadyBooked"
	KindCouponUnknown       Kind = "couponUnknown"
	KindCouponInvalid       Kind = "couponInvalid"
	KindEmail               Kind = "emailError"
	KindPayment             Kind = "paymentError"
	KindCancelUnavailable   Kind = "cancelBookingUnavailable"
	KindRescheduleDenied    Kind = "rescheduleBookingUnavailable"
)

var kindMessages = map[Kind]string{
	KindTimeSlotUnavailable: "Time slot is unavailable",
	KindCustomerBooked:      "You have already booked this time slot",
	KindCouponUnknown:       "Coupon code is unknown",
	KindCouponInvalid:       "Coupon is expired or its limit is reached",
	KindEmail:               "Customer could not be saved",
	KindPayment:             "Payment could not be processed",
	KindCancelUnavailable:   "Booking can no longer be canceled",
	KindRescheduleDenied:    "You are not allowed to update booking",
}

// BookingError is an expected, user-facing failure of a reservation. Any
// other error out of this package is fatal.
type BookingError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *BookingError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *BookingError) Unwrap() error { return e.Err }

func newBookingError(kind Kind, err error) *BookingError {
	return &BookingError{Kind: kind, Message: kindMessages[kind], Err: err}
}

// classify turns the sentinel failures of the booking path into
// BookingErrors and leaves everything else alone.
func classify(err error) error {
	var be *BookingError
	switch {
	case err == nil, errors.As(err, &be):
		return err
	case errors.Is(err, ErrBookingUnavailable):
		return newBookingError(KindTimeSlotUnavailable, err)
	case errors.Is(err, ErrCustomerBooked):
		return newBookingError(KindCustomerBooked, err)
	case errors.Is(err, ErrCouponUnknown):
		return newBookingError(KindCouponUnknown, err)
	case errors.Is(err, ErrCouponInvalid):
		return newBookingError(KindCouponInvalid, err)
	case errors.Is(err, ErrPaymentRejected):
		return newBookingError(KindPayment, err)
	case errors.Is(err, ErrRescheduleDenied):
		return newBookingError(KindRescheduleDenied, err)
	case errors.Is(err, ErrBookingCancellation):
		return newBookingError(KindCancelUnavailable, err)
	}
	return err
}
