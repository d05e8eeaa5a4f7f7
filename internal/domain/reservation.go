package domain

import "time"

// Reservable is the persisted side of a reservation: an Appointment or an
// Event.
type Reservable interface {
	Kind() EntityType
	EntityID() int64
	BookingList() []*CustomerBooking
	CurrentStatus() BookingStatus
	Intervals() []TimeInterval
	Start() time.Time
}

// Bookable is the catalog side of a reservation: a Service for
// appointments, the Event itself for events.
type Bookable interface {
	EntityID() int64
	EntityKind() EntityType
	EntityPrice() float64
	IsAggregatedPrice() bool
	EntitySettings() EntitySettings
	ExtraByID(id int64) (*Extra, bool)
}

var (
	_ Reservable = (*Appointment)(nil)
	_ Reservable = (*Event)(nil)
	_ Bookable   = (*Service)(nil)
	_ Bookable   = (*Event)(nil)
)

// UploadedFile is a custom-field attachment stored during booking.
type UploadedFile struct {
	FieldID int64  `json:"fieldId"`
	Name    string `json:"name"`
	Key     string `json:"key"`
	URL     string `json:"url"`
}

// Reservation bundles everything one booking request produced. It lives
// for one command and is never persisted as a whole.
type Reservation struct {
	Reservation     Reservable
	Booking         *CustomerBooking
	Bookable        Bookable
	Customer        *Customer
	IsNewUser       bool
	IsStatusChanged bool
	Recurring       []*Reservation
	UploadedFiles   []UploadedFile
}

func (r *Reservation) Appointment() (*Appointment, bool) {
	a, ok := r.Reservation.(*Appointment)
	return a, ok
}

func (r *Reservation) Event() (*Event, bool) {
	e, ok := r.Reservation.(*Event)
	return e, ok
}
