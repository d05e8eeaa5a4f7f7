package timeslot

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
)

// Options controls slot discretization.
type Options struct {
	// RequiredSeconds is the service duration plus selected extras.
	RequiredSeconds int
	// SlotLengthSeconds is the grid step; ignored when ServiceDurationAsSlot.
	SlotLengthSeconds     int
	ServiceDurationAsSlot bool
	BufferBeforeSeconds   int
	BufferAfterSeconds    int
	// BufferTimeInSlot widens the step by the buffers when the step is the
	// service duration.
	BufferTimeInSlot bool
}

func (o Options) step() time.Duration {
	if o.ServiceDurationAsSlot {
		s := o.RequiredSeconds
		if o.BufferTimeInSlot {
			s += o.BufferBeforeSeconds + o.BufferAfterSeconds
		}
		return time.Duration(s) * time.Second
	}
	return time.Duration(o.SlotLengthSeconds) * time.Second
}

func (o Options) validate() error {
	if o.RequiredSeconds <= 0 {
		return fmt.Errorf("%w: required duration must be positive", domain.ErrInvalidArgument)
	}
	if !o.ServiceDurationAsSlot && o.SlotLengthSeconds <= 0 {
		return fmt.Errorf("%w: slot length must be positive", domain.ErrInvalidArgument)
	}
	if o.BufferBeforeSeconds < 0 || o.BufferAfterSeconds < 0 {
		return fmt.Errorf("%w: buffers must not be negative", domain.ErrInvalidArgument)
	}
	return nil
}

// SlotProvider is one provider able to serve a slot.
type SlotProvider struct {
	ProviderID int64  `json:"providerId"`
	LocationID *int64 `json:"locationId"`
	// Capacity is the number of persons the provider can still take.
	Capacity int `json:"capacity"`
}

// Slots maps date key -> time key -> providers serving that start time.
type Slots map[string]map[string][]SlotProvider

// ProviderFree is one provider's free time fed to ComputeSlots.
type ProviderFree struct {
	ProviderID int64
	LocationID *int64
	Capacity   int
	Free       FreeIntervals
}

// ComputeSlots emits a start time on every step boundary (counted on the
// wall clock from midnight) where the required duration, plus buffers, fits inside a free
// interval. A booking may end exactly at the interval end. Providers are
// unioned per slot.
func ComputeSlots(providers []ProviderFree, opts Options) (Slots, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	step := opts.step()
	required := time.Duration(opts.RequiredSeconds) * time.Second
	before := time.Duration(opts.BufferBeforeSeconds) * time.Second
	after := time.Duration(opts.BufferAfterSeconds) * time.Second

	out := make(Slots)
	for _, p := range providers {
		for date, intervals := range p.Free {
			for _, iv := range intervals {
				if iv.IsEmpty() || iv.Duration() < required+before+after {
					continue
				}
				for t := firstBoundary(iv.Start.Add(before), step); !t.Add(required + after).After(iv.End); t = nextBoundary(t, step) {
					out.add(date, t, SlotProvider{ProviderID: p.ProviderID, LocationID: p.LocationID, Capacity: p.Capacity})
				}
			}
		}
	}
	out.sortProviders()
	return out, nil
}

// Joinable is an existing group appointment that can take more persons.
type Joinable struct {
	ProviderID int64
	LocationID *int64
	Start      time.Time
	Remaining  int
}

// AddJoinable offers each joinable appointment's exact start time, even
// though the provider is otherwise busy then.
func (s Slots) AddJoinable(appointments []Joinable) {
	for _, a := range appointments {
		if a.Remaining <= 0 {
			continue
		}
		s.add(a.Start.Format(DateKey), a.Start, SlotProvider{ProviderID: a.ProviderID, LocationID: a.LocationID, Capacity: a.Remaining})
	}
	s.sortProviders()
}

// Has reports whether t is offered, optionally by a specific provider.
func (s Slots) Has(t time.Time, providerID *int64) bool {
	providers, ok := s[t.Format(DateKey)][t.Format(TimeKey)]
	if !ok {
		return false
	}
	if providerID == nil {
		return len(providers) > 0
	}
	return lo.ContainsBy(providers, func(p SlotProvider) bool { return p.ProviderID == *providerID })
}

// Times lists the sorted time keys of a date.
func (s Slots) Times(date string) []string {
	keys := lo.Keys(s[date])
	sort.Strings(keys)
	return keys
}

func (s Slots) add(date string, t time.Time, p SlotProvider) {
	byTime, ok := s[date]
	if !ok {
		byTime = make(map[string][]SlotProvider)
		s[date] = byTime
	}
	key := t.Format(TimeKey)
	for i, existing := range byTime[key] {
		if existing.ProviderID == p.ProviderID {
			if p.Capacity > existing.Capacity {
				byTime[key][i] = p
			}
			return
		}
	}
	byTime[key] = append(byTime[key], p)
}

func (s Slots) sortProviders() {
	for _, byTime := range s {
		for _, ps := range byTime {
			sort.Slice(ps, func(i, j int) bool { return ps[i].ProviderID < ps[j].ProviderID })
		}
	}
}

// firstBoundary is the first wall-clock multiple of step after midnight
// that is not before t.
func firstBoundary(t time.Time, step time.Duration) time.Time {
	offset := sinceMidnight(t)
	n := offset / step
	if offset%step != 0 {
		n++
	}
	b := atClock(t, n*step)
	// The second pass through a repeated hour maps back to the first.
	for b.Before(t) {
		b = nextBoundary(b, step)
	}
	return b
}

func nextBoundary(t time.Time, step time.Duration) time.Time {
	return atClock(t, sinceMidnight(t)+step)
}

// sinceMidnight is t's wall-clock time of day.
func sinceMidnight(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}

// atClock is d past midnight on t's date, read on the wall clock. d may
// run past the day.
func atClock(t time.Time, d time.Duration) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, int(d/time.Second), int(d%time.Second), t.Location())
}
