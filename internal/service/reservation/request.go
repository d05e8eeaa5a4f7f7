package reservation

import (
	"encoding/json"
	"time"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
)

// BookingRequest is one booking submitted by a customer or the back office.
// ServiceID, ProviderID and BookingStart describe appointments; EventID
// describes events.
type BookingRequest struct {
	Type         domain.EntityType `json:"type"`
	ServiceID    int64             `json:"serviceId"`
	ProviderID   int64             `json:"providerId"`
	LocationID   *int64            `json:"locationId"`
	BookingStart time.Time         `json:"bookingStart"`
	EventID      int64             `json:"eventId"`
	CouponCode   string            `json:"couponCode"`
	Booking      BookingInput      `json:"booking"`
	Payment      PaymentRequest    `json:"payment"`
	Recurring    []RecurringItem   `json:"recurring"`
}

type BookingInput struct {
	CustomerID   int64                       `json:"customerId"`
	Customer     CustomerInput               `json:"customer"`
	Persons      int                         `json:"persons"`
	Extras       []domain.SelectedExtra      `json:"extras"`
	CustomFields map[string]CustomFieldInput `json:"customFields"`
	UTCOffset    *int                        `json:"utcOffset"`
}

type CustomerInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// CustomFieldInput is the answer to one custom field, keyed by the field
// id in BookingInput.CustomFields.
type CustomFieldInput struct {
	Label string          `json:"label"`
	Value json.RawMessage `json:"value"`
	Files []FileInput     `json:"files,omitempty"`
}

type FileInput struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Content     []byte `json:"content"`
}

type PaymentRequest struct {
	Gateway      domain.PaymentGateway `json:"gateway"`
	Status       domain.PaymentStatus  `json:"status"`
	GatewayTitle string                `json:"gatewayTitle"`
	Data         json.RawMessage       `json:"data"`
}

// RecurringItem is a further appointment booked together with the main
// one.
type RecurringItem struct {
	ProviderID   int64     `json:"providerId"`
	LocationID   *int64    `json:"locationId"`
	BookingStart time.Time `json:"bookingStart"`
}

// Validator selects the checks a caller wants. Back-office callers skip
// some of them.
type Validator struct {
	TimeSlot     bool
	Coupon       bool
	CustomFields bool
}

// FrontEnd runs every check.
var FrontEnd = Validator{TimeSlot: true, Coupon: true, CustomFields: true}

// CancelRequest proves ownership of a booking by its Token, or by
// CustomerID when the caller holds a customer cabinet token. Privileged
// callers skip the ownership and cancellation window checks.
type CancelRequest struct {
	BookingID  int64
	Token      string
	CustomerID int64
	Privileged bool
}

func (r CancelRequest) owns(b *domain.CustomerBooking) bool {
	if r.Privileged {
		return true
	}
	if r.CustomerID != 0 && r.CustomerID == b.CustomerID {
		return true
	}
	return r.Token != "" && r.Token == b.Token
}

// RescheduleRequest moves an appointment to BookingStart, keeping its
// length. Customers act through CustomerID and must hold every active
// booking of the appointment.
type RescheduleRequest struct {
	AppointmentID int64
	BookingStart  time.Time
	CustomerID    int64
	Privileged    bool
}

// StatusRequest sets the status of an appointment and its bookings.
type StatusRequest struct {
	AppointmentID int64
	Status        domain.BookingStatus
}

// Outcome is a committed reservation and the result data describing it.
type Outcome struct {
	Reservation *domain.Reservation
	Data        map[string]any
}
