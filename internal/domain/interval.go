package domain

import (
	"fmt"
	"sort"
	"time"
)

// TimeInterval is a half-open [Start, End) span.
type TimeInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeInterval validates start < end.
func NewTimeInterval(start, end time.Time) (TimeInterval, error) {
	if !end.After(start) {
		return TimeInterval{}, fmt.Errorf("%w: %w (%s - %s)", ErrInvalidArgument, ErrInvalidInterval,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return TimeInterval{Start: start, End: end}, nil
}

func (i TimeInterval) Duration() time.Duration { return i.End.Sub(i.Start) }

func (i TimeInterval) IsEmpty() bool { return !i.End.After(i.Start) }

// Overlaps reports whether the two intervals share any instant.
func (i TimeInterval) Overlaps(o TimeInterval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func (i TimeInterval) Contains(o TimeInterval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// Subtract removes o from i and returns what is left, in order.
// The result has zero, one or two intervals.
func (i TimeInterval) Subtract(o TimeInterval) []TimeInterval {
	if !i.Overlaps(o) {
		return []TimeInterval{i}
	}

	out := make([]TimeInterval, 0, 2)
	if o.Start.After(i.Start) {
		out = append(out, TimeInterval{Start: i.Start, End: o.Start})
	}
	if o.End.Before(i.End) {
		out = append(out, TimeInterval{Start: o.End, End: i.End})
	}
	return out
}

// SortIntervals orders by start, then end.
func SortIntervals(in []TimeInterval) {
	sort.SliceStable(in, func(a, b int) bool {
		if in[a].Start.Equal(in[b].Start) {
			return in[a].End.Before(in[b].End)
		}
		return in[a].Start.Before(in[b].Start)
	})
}
