// Package settings is the read-only category/name store the booking core
// consults. Values come from config and are overridden by rows in the
// settings table.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/Alijeyrad/simorq_booking/config"
	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
)

type General struct {
	TimeSlotLength           int                  `mapstructure:"timeSlotLength"`
	ServiceDurationAsSlot    bool                 `mapstructure:"serviceDurationAsSlot"`
	BufferTimeInSlot         bool                 `mapstructure:"bufferTimeInSlot"`
	DefaultAppointmentStatus domain.BookingStatus `mapstructure:"defaultAppointmentStatus"`

	MinimumTimeBeforeBooking   int `mapstructure:"minimumTimeRequirementPriorToBooking"`
	MinimumTimeBeforeCanceling int `mapstructure:"minimumTimeRequirementPriorToCanceling"`
	DaysAvailableForBooking    int `mapstructure:"numberOfDaysAvailableForBooking"`
}

type Appointments struct {
	IsGloballyBusySlot    bool `mapstructure:"isGloballyBusySlot"`
	AllowBookingIfPending bool `mapstructure:"allowBookingIfPending"`
	AllowBookingIfNotMin  bool `mapstructure:"allowBookingIfNotMin"`
	OpenedBookingAfterMin bool `mapstructure:"openedBookingAfterMin"`
}

// Roles gates what customers may do from their cabinet.
type Roles struct {
	AllowCustomerReschedule bool `mapstructure:"allowCustomerReschedule"`
}

type Payments struct {
	EnabledGateways []domain.PaymentGateway `mapstructure:"enabledGateways"`
}

// WebHook is one outbound hook definition.
type WebHook struct {
	Name   string            `mapstructure:"name" json:"name"`
	URL    string            `mapstructure:"url" json:"url"`
	Type   domain.EntityType `mapstructure:"type" json:"type"`
	Action string            `mapstructure:"action" json:"action"`
}

type WebHooks struct {
	Hooks []WebHook `mapstructure:"hooks"`
}

// Settings is one consistent snapshot of every category.
type Settings struct {
	General      General      `mapstructure:"general"`
	Appointments Appointments `mapstructure:"appointments"`
	Payments     Payments     `mapstructure:"payments"`
	Roles        Roles        `mapstructure:"roles"`
	WebHooks     WebHooks     `mapstructure:"webHooks"`

	Location                *time.Location `mapstructure:"-"`
	MaxRecurringOccurrences int            `mapstructure:"-"`
}

// GatewayEnabled reports whether the gateway may take payments.
func (s *Settings) GatewayEnabled(g domain.PaymentGateway) bool {
	for _, e := range s.Payments.EnabledGateways {
		if e == g {
			return true
		}
	}
	return false
}

// HooksFor returns the hooks registered for an entity type and action.
func (s *Settings) HooksFor(kind domain.EntityType, action string) []WebHook {
	var out []WebHook
	for _, h := range s.WebHooks.Hooks {
		if h.Type == kind && h.Action == action {
			out = append(out, h)
		}
	}
	return out
}

// Store loads settings snapshots.
type Store interface {
	Load(ctx context.Context) (*Settings, error)
}

type store struct {
	db       *repo.Client
	defaults Settings
}

func New(db *repo.Client, cfg config.BookingConfig) (Store, error) {
	defaults, err := Defaults(cfg)
	if err != nil {
		return nil, err
	}
	return &store{db: db, defaults: defaults}, nil
}

// Defaults builds the snapshot implied by config alone.
func Defaults(cfg config.BookingConfig) (Settings, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return Settings{}, fmt.Errorf("load timezone: %w", err)
		}
		loc = l
	}

	status := domain.BookingStatus(cfg.DefaultAppointmentStatus)
	if !status.Valid() {
		status = domain.StatusApproved
	}

	gateways := make([]domain.PaymentGateway, 0, len(cfg.EnabledGateways))
	for _, g := range cfg.EnabledGateways {
		gateways = append(gateways, domain.PaymentGateway(g))
	}

	return Settings{
		General: General{
			TimeSlotLength:             cfg.TimeSlotLengthSeconds,
			ServiceDurationAsSlot:      cfg.ServiceDurationAsSlot,
			BufferTimeInSlot:           cfg.BufferTimeInSlot,
			DefaultAppointmentStatus:   status,
			MinimumTimeBeforeBooking:   cfg.MinimumTimeBeforeBookingSeconds,
			MinimumTimeBeforeCanceling: cfg.MinimumTimeBeforeCancelingSeconds,
			DaysAvailableForBooking:    cfg.DaysAvailableForBooking,
		},
		Appointments: Appointments{
			IsGloballyBusySlot:    cfg.GloballyBusySlot,
			AllowBookingIfPending: cfg.AllowBookingIfPending,
			AllowBookingIfNotMin:  cfg.AllowBookingIfNotMin,
			OpenedBookingAfterMin: cfg.OpenedBookingAfterMin,
		},
		Payments:                Payments{EnabledGateways: gateways},
		Roles:                   Roles{AllowCustomerReschedule: cfg.AllowCustomerReschedule},
		Location:                loc,
		MaxRecurringOccurrences: cfg.MaxRecurringOccurrences,
	}, nil
}

func (s *store) Load(ctx context.Context) (*Settings, error) {
	rows, err := s.db.Use(ctx).Setting.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	overrides := map[string]map[string]any{}
	for _, r := range rows {
		var v any
		if err := json.Unmarshal([]byte(r.Value), &v); err != nil {
			return nil, fmt.Errorf("setting %s.%s: %w", r.Category, r.Name, err)
		}
		if overrides[r.Category] == nil {
			overrides[r.Category] = map[string]any{}
		}
		overrides[r.Category][r.Name] = v
	}

	out := s.defaults
	out.Payments.EnabledGateways = append([]domain.PaymentGateway(nil), s.defaults.Payments.EnabledGateways...)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(overrides); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return &out, nil
}

// Static serves a fixed snapshot.
type Static Settings

func (s Static) Load(context.Context) (*Settings, error) {
	out := Settings(s)
	return &out, nil
}
