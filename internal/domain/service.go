package domain

import (
	"slices"

	"github.com/samber/lo"
)

// Service is the bookable catalog entry behind an appointment.
type Service struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	Price           float64  `json:"price"`
	Duration        int      `json:"duration"`
	TimeBefore      int      `json:"timeBefore"`
	TimeAfter       int      `json:"timeAfter"`
	MinCapacity     int      `json:"minCapacity"`
	MaxCapacity     int      `json:"maxCapacity"`
	AggregatedPrice bool     `json:"aggregatedPrice"`
	Status          string   `json:"status"`
	Extras          []*Extra `json:"extras"`

	Settings EntitySettings `json:"settings"`
}

// EntitySettings overrides the global booking window for one entity.
// Zero values fall back to the global settings.
type EntitySettings struct {
	MinimumTimeBeforeBooking   int `json:"minimumTimeRequirementPriorToBooking"`
	MinimumTimeBeforeCanceling int `json:"minimumTimeRequirementPriorToCanceling"`
	DaysAvailableForBooking    int `json:"numberOfDaysAvailableForBooking"`
}

type Extra struct {
	ID              int64   `json:"id"`
	ServiceID       int64   `json:"serviceId"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	Duration        int     `json:"duration"`
	MaxQuantity     int     `json:"maxQuantity"`
	AggregatedPrice *bool   `json:"aggregatedPrice"`
}

// SelectedExtra is an extra chosen in a booking request.
type SelectedExtra struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

func (s *Service) EntityID() int64          { return s.ID }
func (s *Service) EntityKind() EntityType   { return EntityAppointment }
func (s *Service) EntityPrice() float64     { return s.Price }
func (s *Service) IsAggregatedPrice() bool  { return s.AggregatedPrice }
func (s *Service) EntitySettings() EntitySettings { return s.Settings }

func (s *Service) ExtraByID(id int64) (*Extra, bool) {
	return lo.Find(s.Extras, func(e *Extra) bool { return e.ID == id })
}

// FilterExtras keeps the service extras named in the selection, in the
// service's own order.
func (s *Service) FilterExtras(selected []SelectedExtra) []*Extra {
	ids := lo.Map(selected, func(e SelectedExtra, _ int) int64 { return e.ID })
	return lo.Filter(s.Extras, func(e *Extra, _ int) bool { return slices.Contains(ids, e.ID) })
}

// RequiredSeconds is the service duration plus every selected extra's
// duration times its quantity.
func (s *Service) RequiredSeconds(selected []SelectedExtra) int {
	total := s.Duration
	for _, sel := range selected {
		extra, ok := s.ExtraByID(sel.ID)
		if !ok {
			continue
		}
		qty := sel.Quantity
		if qty <= 0 {
			qty = 1
		}
		total += extra.Duration * qty
	}
	return total
}
