package settings

import (
	"context"
	"testing"

	"github.com/Alijeyrad/simorq_booking/config"
	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/repo/repotest"
)

func TestLoad_RowsOverrideConfig(t *testing.T) {
	ctx := context.Background()
	db := repotest.Open(t)

	store, err := New(db, config.BookingConfig{
		Timezone:              "Asia/Tehran",
		TimeSlotLengthSeconds: 1800,
		EnabledGateways:       []string{"onSite"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rows := []repo.Setting{
		{Category: "general", Name: "timeSlotLength", Value: "900"},
		{Category: "appointments", Name: "isGloballyBusySlot", Value: "true"},
		{Category: "roles", Name: "allowCustomerReschedule", Value: "true"},
		{Category: "webHooks", Name: "hooks", Value: `[{"name":"crm","url":"http://crm.local/hook","type":"appointment","action":"bookingAdded"}]`},
	}
	for _, r := range rows {
		if err := db.Setting.Set(ctx, r); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	s, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.General.TimeSlotLength != 900 {
		t.Errorf("timeSlotLength = %d, want 900", s.General.TimeSlotLength)
	}
	if !s.Appointments.IsGloballyBusySlot {
		t.Error("isGloballyBusySlot override lost")
	}
	if !s.Roles.AllowCustomerReschedule {
		t.Error("allowCustomerReschedule override lost")
	}
	if s.General.DefaultAppointmentStatus != domain.StatusApproved {
		t.Errorf("default status = %q", s.General.DefaultAppointmentStatus)
	}
	if s.Location.String() != "Asia/Tehran" {
		t.Errorf("location = %v", s.Location)
	}
	if !s.GatewayEnabled(domain.GatewayOnSite) || s.GatewayEnabled(domain.GatewayStripe) {
		t.Errorf("gateways = %v", s.Payments.EnabledGateways)
	}
	if hooks := s.HooksFor(domain.EntityAppointment, "bookingAdded"); len(hooks) != 1 || hooks[0].URL != "http://crm.local/hook" {
		t.Errorf("hooks = %+v", hooks)
	}
	if hooks := s.HooksFor(domain.EntityEvent, "bookingAdded"); len(hooks) != 0 {
		t.Errorf("event hooks should be empty, got %+v", hooks)
	}
}

func TestDefaults_InvalidTimezone(t *testing.T) {
	if _, err := Defaults(config.BookingConfig{Timezone: "Mars/Olympus"}); err == nil {
		t.Error("expected error for unknown timezone")
	}
}
