package repo

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

func pk() *schema.Column {
	return &schema.Column{Name: "id", Type: field.TypeInt64, Increment: true}
}

func col(name string, t field.Type) *schema.Column {
	return &schema.Column{Name: name, Type: t}
}

func nullable(name string, t field.Type) *schema.Column {
	return &schema.Column{Name: name, Type: t, Nullable: true}
}

func withDefault(name string, t field.Type, def any) *schema.Column {
	return &schema.Column{Name: name, Type: t, Default: def}
}

func table(name string, columns ...*schema.Column) *schema.Table {
	cols := append([]*schema.Column{pk()}, columns...)
	return &schema.Table{Name: name, Columns: cols, PrimaryKey: cols[:1]}
}

// index adds an index over the named columns of t.
func index(t *schema.Table, name string, unique bool, names ...string) *schema.Table {
	idx := &schema.Index{Name: name, Unique: unique}
	for _, n := range names {
		for _, c := range t.Columns {
			if c.Name == n {
				idx.Columns = append(idx.Columns, c)
			}
		}
	}
	t.Indexes = append(t.Indexes, idx)
	return t
}

var (
	UsersTable = index(table("users",
		col("type", field.TypeString),
		withDefault("status", field.TypeString, "visible"),
		col("first_name", field.TypeString),
		withDefault("last_name", field.TypeString, ""),
		withDefault("email", field.TypeString, ""),
		withDefault("phone", field.TypeString, ""),
		nullable("birthday", field.TypeTime),
		withDefault("note", field.TypeString, ""),
		nullable("location_id", field.TypeInt64),
		col("created", field.TypeTime),
	), "users_email", false, "email")

	ServicesTable = table("services",
		col("name", field.TypeString),
		col("price", field.TypeFloat64),
		col("duration", field.TypeInt),
		withDefault("time_before", field.TypeInt, 0),
		withDefault("time_after", field.TypeInt, 0),
		withDefault("min_capacity", field.TypeInt, 1),
		withDefault("max_capacity", field.TypeInt, 1),
		withDefault("aggregated_price", field.TypeBool, true),
		withDefault("status", field.TypeString, "visible"),
		withDefault("min_time_before_booking", field.TypeInt, 0),
		withDefault("min_time_before_canceling", field.TypeInt, 0),
		withDefault("days_available_for_booking", field.TypeInt, 0),
	)

	ExtrasTable = index(table("extras",
		col("service_id", field.TypeInt64),
		col("name", field.TypeString),
		col("price", field.TypeFloat64),
		withDefault("duration", field.TypeInt, 0),
		withDefault("max_quantity", field.TypeInt, 1),
		nullable("aggregated_price", field.TypeBool),
	), "extras_service_id", false, "service_id")

	ProviderServicesTable = index(table("provider_services",
		col("user_id", field.TypeInt64),
		col("service_id", field.TypeInt64),
		withDefault("price", field.TypeFloat64, 0),
		withDefault("min_capacity", field.TypeInt, 0),
		withDefault("max_capacity", field.TypeInt, 0),
	), "provider_services_user_service", true, "user_id", "service_id")

	ProviderWeekPeriodsTable = index(table("provider_week_periods",
		col("user_id", field.TypeInt64),
		col("day_index", field.TypeInt),
		col("start_time", field.TypeInt),
		col("end_time", field.TypeInt),
		nullable("location_id", field.TypeInt64),
		withDefault("is_break", field.TypeBool, false),
	), "provider_week_periods_user_id", false, "user_id")

	ProviderDaysOffTable = index(table("provider_days_off",
		col("user_id", field.TypeInt64),
		withDefault("name", field.TypeString, ""),
		col("start_date", field.TypeTime),
		col("end_date", field.TypeTime),
		withDefault("repeat", field.TypeBool, false),
	), "provider_days_off_user_id", false, "user_id")

	ProviderSpecialDaysTable = index(table("provider_special_days",
		col("user_id", field.TypeInt64),
		col("start_date", field.TypeTime),
		col("end_date", field.TypeTime),
	), "provider_special_days_user_id", false, "user_id")

	ProviderSpecialDayPeriodsTable = index(table("provider_special_day_periods",
		col("special_day_id", field.TypeInt64),
		col("start_time", field.TypeInt),
		col("end_time", field.TypeInt),
		nullable("location_id", field.TypeInt64),
	), "provider_special_day_periods_day_id", false, "special_day_id")

	ProviderCalendarsTable = index(table("provider_calendars",
		col("user_id", field.TypeInt64),
		col("kind", field.TypeString),
		col("calendar_id", field.TypeString),
		col("token", field.TypeString),
	), "provider_calendars_user_kind", true, "user_id", "kind")

	AppointmentsTable = index(table("appointments",
		nullable("parent_id", field.TypeInt64),
		col("service_id", field.TypeInt64),
		col("provider_id", field.TypeInt64),
		nullable("location_id", field.TypeInt64),
		col("booking_start", field.TypeTime),
		col("booking_end", field.TypeTime),
		col("status", field.TypeString),
		withDefault("notify_participants", field.TypeBool, true),
		withDefault("internal_notes", field.TypeString, ""),
		withDefault("google_calendar_event_id", field.TypeString, ""),
		withDefault("outlook_calendar_event_id", field.TypeString, ""),
	), "appointments_provider_start", false, "provider_id", "booking_start")

	CustomerBookingsTable = index(table("customer_bookings",
		nullable("appointment_id", field.TypeInt64),
		col("customer_id", field.TypeInt64),
		col("status", field.TypeString),
		col("price", field.TypeFloat64),
		withDefault("persons", field.TypeInt, 1),
		nullable("coupon_id", field.TypeInt64),
		withDefault("token", field.TypeString, ""),
		withDefault("custom_fields", field.TypeString, ""),
		withDefault("info", field.TypeString, ""),
		nullable("utc_offset", field.TypeInt),
		withDefault("aggregated_price", field.TypeBool, true),
		col("created", field.TypeTime),
	), "customer_bookings_appointment_id", false, "appointment_id")

	CustomerBookingsExtrasTable = index(table("customer_bookings_extras",
		col("customer_booking_id", field.TypeInt64),
		col("extra_id", field.TypeInt64),
		withDefault("quantity", field.TypeInt, 1),
		col("price", field.TypeFloat64),
		nullable("aggregated_price", field.TypeBool),
	), "customer_bookings_extras_booking_id", false, "customer_booking_id")

	PaymentsTable = index(table("payments",
		col("customer_booking_id", field.TypeInt64),
		col("amount", field.TypeFloat64),
		col("date_time", field.TypeTime),
		col("status", field.TypeString),
		col("gateway", field.TypeString),
		withDefault("gateway_title", field.TypeString, ""),
		withDefault("data", field.TypeString, ""),
	), "payments_booking_id", false, "customer_booking_id")

	EventsTable = index(table("events",
		nullable("parent_id", field.TypeInt64),
		col("name", field.TypeString),
		withDefault("description", field.TypeString, ""),
		col("status", field.TypeString),
		nullable("recurring_cycle", field.TypeString),
		nullable("recurring_until", field.TypeTime),
		nullable("recurring_order", field.TypeInt),
		col("price", field.TypeFloat64),
		withDefault("max_capacity", field.TypeInt, 1),
		withDefault("aggregated_price", field.TypeBool, true),
		nullable("booking_opens", field.TypeTime),
		nullable("booking_closes", field.TypeTime),
		nullable("location_id", field.TypeInt64),
		withDefault("custom_location", field.TypeString, ""),
		withDefault("notify_participants", field.TypeBool, true),
		withDefault("zoom_user_id", field.TypeString, ""),
		withDefault("min_time_before_booking", field.TypeInt, 0),
		withDefault("min_time_before_canceling", field.TypeInt, 0),
		col("created", field.TypeTime),
	), "events_parent_id", false, "parent_id")

	EventsPeriodsTable = index(table("events_periods",
		col("event_id", field.TypeInt64),
		col("period_start", field.TypeTime),
		col("period_end", field.TypeTime),
		withDefault("zoom_meeting_id", field.TypeString, ""),
	), "events_periods_event_id", false, "event_id")

	EventsProvidersTable = index(table("events_providers",
		col("event_id", field.TypeInt64),
		col("user_id", field.TypeInt64),
	), "events_providers_event_id", false, "event_id")

	EventsTagsTable = index(table("events_tags",
		col("event_id", field.TypeInt64),
		col("name", field.TypeString),
	), "events_tags_event_id", false, "event_id")

	EventsGalleryTable = index(table("events_gallery",
		col("event_id", field.TypeInt64),
		col("picture_full_path", field.TypeString),
		withDefault("position", field.TypeInt, 0),
	), "events_gallery_event_id", false, "event_id")

	CustomerBookingsEventsPeriodsTable = index(table("customer_bookings_events_periods",
		col("customer_booking_id", field.TypeInt64),
		col("event_period_id", field.TypeInt64),
	), "customer_bookings_events_periods_period_id", false, "event_period_id")

	CouponsTable = index(table("coupons",
		col("code", field.TypeString),
		withDefault("discount", field.TypeFloat64, 0),
		withDefault("deduction", field.TypeFloat64, 0),
		withDefault("usage_limit", field.TypeInt, 0),
		withDefault("customer_limit", field.TypeInt, 0),
		withDefault("status", field.TypeString, "visible"),
		nullable("expiration_date", field.TypeTime),
	), "coupons_code", true, "code")

	CouponsToServicesTable = index(table("coupons_to_services",
		col("coupon_id", field.TypeInt64),
		col("service_id", field.TypeInt64),
	), "coupons_to_services_coupon_id", false, "coupon_id")

	CouponsToEventsTable = index(table("coupons_to_events",
		col("coupon_id", field.TypeInt64),
		col("event_id", field.TypeInt64),
	), "coupons_to_events_coupon_id", false, "coupon_id")

	CustomFieldsTable = table("custom_fields",
		col("label", field.TypeString),
		col("type", field.TypeString),
		withDefault("required", field.TypeBool, false),
		withDefault("position", field.TypeInt, 0),
	)

	CustomFieldsEventsTable = index(table("custom_fields_events",
		col("custom_field_id", field.TypeInt64),
		col("event_id", field.TypeInt64),
	), "custom_fields_events_event_id", false, "event_id")

	SettingsTable = index(table("settings",
		col("category", field.TypeString),
		col("name", field.TypeString),
		col("value", field.TypeString),
	), "settings_category_name", true, "category", "name")

	NotificationsLogTable = index(table("notifications_log",
		col("name", field.TypeString),
		col("user_id", field.TypeInt64),
		nullable("appointment_id", field.TypeInt64),
		nullable("event_id", field.TypeInt64),
		col("sent_date_time", field.TypeTime),
	), "notifications_log_name_user", false, "name", "user_id")

	// Tables holds every table the migrator manages.
	Tables = []*schema.Table{
		UsersTable,
		ServicesTable,
		ExtrasTable,
		ProviderServicesTable,
		ProviderWeekPeriodsTable,
		ProviderDaysOffTable,
		ProviderSpecialDaysTable,
		ProviderSpecialDayPeriodsTable,
		ProviderCalendarsTable,
		AppointmentsTable,
		CustomerBookingsTable,
		CustomerBookingsExtrasTable,
		PaymentsTable,
		EventsTable,
		EventsPeriodsTable,
		EventsProvidersTable,
		EventsTagsTable,
		EventsGalleryTable,
		CustomerBookingsEventsPeriodsTable,
		CouponsTable,
		CouponsToServicesTable,
		CouponsToEventsTable,
		CustomFieldsTable,
		CustomFieldsEventsTable,
		SettingsTable,
		NotificationsLogTable,
	}
)

// Migrate creates or upgrades every table.
func (c *Client) Migrate(ctx context.Context, opts ...schema.MigrateOption) error {
	if c.drv == nil {
		return ErrTxStarted
	}
	m, err := schema.NewMigrate(c.drv, opts...)
	if err != nil {
		return fmt.Errorf("ent/migrate: %w", err)
	}
	return m.Create(ctx, Tables...)
}
