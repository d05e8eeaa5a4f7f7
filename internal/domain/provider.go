package domain

import (
	"time"

	"github.com/samber/lo"
)

// ClockRange is a time of day span in seconds since midnight.
type ClockRange struct {
	Start      int    `json:"start"`
	End        int    `json:"end"`
	LocationID *int64 `json:"locationId"`
}

// On places the range on day's wall clock, so 09:00 stays 09:00 on days
// with a DST change.
func (r ClockRange) On(day time.Time) TimeInterval {
	y, m, d := day.Date()
	loc := day.Location()
	return TimeInterval{
		Start: time.Date(y, m, d, 0, 0, r.Start, 0, loc),
		End:   time.Date(y, m, d, 0, 0, r.End, 0, loc),
	}
}

type DayOff struct {
	ID     int64     `json:"id"`
	Name   string    `json:"name"`
	Start  time.Time `json:"startDate"`
	End    time.Time `json:"endDate"`
	Repeat bool      `json:"repeat"`
}

// Covers reports whether day falls inside the day off. Repeating days off
// match the same month/day span every year.
func (d DayOff) Covers(day time.Time) bool {
	if !d.Repeat {
		return !dateOnly(day).Before(dateOnly(d.Start)) && !dateOnly(day).After(dateOnly(d.End))
	}
	key := monthDay(day)
	from, to := monthDay(d.Start), monthDay(d.End)
	if from <= to {
		return key >= from && key <= to
	}
	return key >= from || key <= to
}

type SpecialDay struct {
	ID      int64        `json:"id"`
	Start   time.Time    `json:"startDate"`
	End     time.Time    `json:"endDate"`
	Periods []ClockRange `json:"periods"`
}

func (s SpecialDay) Covers(day time.Time) bool {
	return !dateOnly(day).Before(dateOnly(s.Start)) && !dateOnly(day).After(dateOnly(s.End))
}

// ProviderSchedule is the read-only working calendar of one provider.
type ProviderSchedule struct {
	WeekDays    map[time.Weekday][]ClockRange `json:"weekDays"`
	Breaks      map[time.Weekday][]ClockRange `json:"timeOuts"`
	DaysOff     []DayOff                      `json:"dayOffList"`
	SpecialDays []SpecialDay                  `json:"specialDayList"`
}

// WorkingIntervals returns the provider's working hours for one date,
// with days off, special days and breaks applied.
func (s ProviderSchedule) WorkingIntervals(day time.Time) []TimeInterval {
	if lo.SomeBy(s.DaysOff, func(d DayOff) bool { return d.Covers(day) }) {
		return nil
	}

	ranges := s.WeekDays[day.Weekday()]
	breaks := s.Breaks[day.Weekday()]
	if special, ok := lo.Find(s.SpecialDays, func(sd SpecialDay) bool { return sd.Covers(day) }); ok {
		ranges = special.Periods
		breaks = nil
	}

	out := make([]TimeInterval, 0, len(ranges))
	for _, r := range ranges {
		if r.End <= r.Start {
			continue
		}
		parts := []TimeInterval{r.On(day)}
		for _, b := range breaks {
			next := make([]TimeInterval, 0, len(parts)+1)
			for _, p := range parts {
				next = append(next, p.Subtract(b.On(day))...)
			}
			parts = next
		}
		out = append(out, parts...)
	}
	SortIntervals(out)
	return out
}

type CalendarKind string

const (
	CalendarGoogle  CalendarKind = "google"
	CalendarOutlook CalendarKind = "outlook"
)

// CalendarLink is a provider's connection to an external calendar. Token
// is the OAuth token JSON, AES-GCM encrypted as stored.
type CalendarLink struct {
	ID         int64        `json:"id"`
	ProviderID int64        `json:"providerId"`
	Kind       CalendarKind `json:"kind"`
	CalendarID string       `json:"calendarId"`
	Token      string       `json:"-"`
}

// ProviderService carries per-provider overrides for a service.
type ProviderService struct {
	ServiceID   int64   `json:"serviceId"`
	Price       float64 `json:"price"`
	MinCapacity int     `json:"minCapacity"`
	MaxCapacity int     `json:"maxCapacity"`
}

type Provider struct {
	ID         int64                     `json:"id"`
	FirstName  string                    `json:"firstName"`
	LastName   string                    `json:"lastName"`
	Email      string                    `json:"email"`
	Phone      string                    `json:"phone"`
	LocationID *int64                    `json:"locationId"`
	Schedule   ProviderSchedule          `json:"schedule"`
	Services   map[int64]ProviderService `json:"serviceList"`
	Calendars  []*CalendarLink           `json:"-"`
}

func (p *Provider) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Calendar returns the provider's link of the given kind.
func (p *Provider) Calendar(kind CalendarKind) (*CalendarLink, bool) {
	return lo.Find(p.Calendars, func(c *CalendarLink) bool { return c.Kind == kind })
}

// Capacity returns the provider-specific max capacity for a service,
// falling back to the service's own.
func (p *Provider) Capacity(svc *Service) (minCap, maxCap int) {
	minCap, maxCap = svc.MinCapacity, svc.MaxCapacity
	if ps, ok := p.Services[svc.ID]; ok {
		if ps.MinCapacity > 0 {
			minCap = ps.MinCapacity
		}
		if ps.MaxCapacity > 0 {
			maxCap = ps.MaxCapacity
		}
	}
	if maxCap <= 0 {
		maxCap = 1
	}
	return minCap, maxCap
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func monthDay(t time.Time) int {
	return int(t.Month())*100 + t.Day()
}
