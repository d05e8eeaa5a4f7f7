package domain

import (
	"time"

	"github.com/samber/lo"
)

// Appointment is a provider's time block for one service with one or more
// customer bookings.
type Appointment struct {
	ID                     int64              `json:"id"`
	ParentID               *int64             `json:"parentId"`
	ServiceID              int64              `json:"serviceId"`
	ProviderID             int64              `json:"providerId"`
	LocationID             *int64             `json:"locationId"`
	BookingStart           time.Time          `json:"bookingStart"`
	BookingEnd             time.Time          `json:"bookingEnd"`
	Status                 BookingStatus      `json:"status"`
	NotifyParticipants     bool               `json:"notifyParticipants"`
	InternalNotes          string             `json:"internalNotes"`
	GoogleCalendarEventID  string             `json:"googleCalendarEventId,omitempty"`
	OutlookCalendarEventID string             `json:"outlookCalendarEventId,omitempty"`
	Bookings               []*CustomerBooking `json:"bookings"`
}

func (a *Appointment) Kind() EntityType                { return EntityAppointment }
func (a *Appointment) EntityID() int64                 { return a.ID }
func (a *Appointment) BookingList() []*CustomerBooking { return a.Bookings }
func (a *Appointment) CurrentStatus() BookingStatus    { return a.Status }

func (a *Appointment) Intervals() []TimeInterval {
	return []TimeInterval{{Start: a.BookingStart, End: a.BookingEnd}}
}

func (a *Appointment) Start() time.Time { return a.BookingStart }

func (a *Appointment) Clone() *Appointment {
	c := *a
	c.ParentID = clonePtr(a.ParentID)
	c.LocationID = clonePtr(a.LocationID)
	c.Bookings = lo.Map(a.Bookings, func(b *CustomerBooking, _ int) *CustomerBooking { return b.Clone() })
	return &c
}

// BusyInterval is the block the appointment holds on the provider's
// calendar, widened by the service buffers.
func (a *Appointment) BusyInterval(before, after int) TimeInterval {
	return TimeInterval{
		Start: a.BookingStart.Add(-time.Duration(before) * time.Second),
		End:   a.BookingEnd.Add(time.Duration(after) * time.Second),
	}
}

// StatusFromBookings derives the appointment status from its bookings:
// approved if any approved booking reaches min capacity, pending while any
// booking is still active, canceled otherwise.
func StatusFromBookings(bookings []*CustomerBooking, minCapacity int, defaultStatus BookingStatus) BookingStatus {
	approved := lo.SumBy(bookings, func(b *CustomerBooking) int {
		if b.Status == StatusApproved {
			return b.Persons
		}
		return 0
	})
	if approved > 0 && approved >= minCapacity {
		return StatusApproved
	}
	if ActivePersons(bookings) > 0 {
		if defaultStatus == StatusApproved && approved > 0 {
			return StatusApproved
		}
		return StatusPending
	}
	return StatusCanceled
}
