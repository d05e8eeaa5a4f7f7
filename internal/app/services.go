package app

import (
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"

	"github.com/Alijeyrad/simorq_booking/config"
	"github.com/Alijeyrad/simorq_booking/internal/command"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/service/availability"
	"github.com/Alijeyrad/simorq_booking/internal/service/event"
	"github.com/Alijeyrad/simorq_booking/internal/service/notification"
	"github.com/Alijeyrad/simorq_booking/internal/service/reservation"
	"github.com/Alijeyrad/simorq_booking/internal/service/webhook"
	"github.com/Alijeyrad/simorq_booking/internal/settings"
	"github.com/Alijeyrad/simorq_booking/pkg/calendar"
	"github.com/Alijeyrad/simorq_booking/pkg/email"
	pasetotoken "github.com/Alijeyrad/simorq_booking/pkg/paseto"
	s3pkg "github.com/Alijeyrad/simorq_booking/pkg/s3"
	"github.com/Alijeyrad/simorq_booking/pkg/sms"
)

// ServiceModule provides the booking services and the command handler.
var ServiceModule = fx.Module("services",
	fx.Provide(
		ProvideSettings,
		ProvideEventService,
		ProvideAvailabilityService,
		ProvideReservationService,
		ProvideWebhookDispatcher,
		ProvideNotificationService,
		ProvidePublisher,
		ProvideCommandHandler,
		ProvidePasetoManager,
	),
)

func ProvideSettings(db *repo.Client, cfg *config.Config) (settings.Store, error) {
	return settings.New(db, cfg.Booking)
}

func ProvideEventService(db *repo.Client, store settings.Store) event.Service {
	return event.New(db, store)
}

func ProvideAvailabilityService(db *repo.Client, store settings.Store, events event.Service, cal *calendar.Source) availability.Service {
	return availability.New(db, store, events, cal)
}

func ProvideReservationService(
	db *repo.Client,
	store settings.Store,
	slots availability.Service,
	files *s3pkg.Client,
	cfg *config.Config,
) reservation.Service {
	opts := []reservation.Option{reservation.WithPhoneRegion(cfg.Booking.PhoneRegion)}
	if files != nil {
		opts = append(opts, reservation.WithFileStore(files))
	}
	return reservation.New(db, store, slots, opts...)
}

func ProvideWebhookDispatcher(store settings.Store) webhook.Dispatcher {
	return webhook.New(store)
}

func ProvideNotificationService(
	db *repo.Client,
	store settings.Store,
	mail *email.Client,
	texts *sms.Client,
	cfg *config.Config,
) notification.Service {
	n := cfg.Notifications
	return notification.New(db, store, mail, texts, notification.Config{
		AppName:       mail.AppName(),
		ReminderLead:  time.Duration(n.ReminderLeadHours) * time.Hour,
		SMSTemplateID: n.SMSTemplateID,
		Concurrency:   n.Concurrency,
		InviteDomain:  n.InviteDomain,
	})
}

// ProvidePublisher hands messages to NATS when it is enabled and notifies
// inline otherwise.
func ProvidePublisher(nc *nats.Conn, svc notification.Service) notification.Publisher {
	if nc == nil {
		return notification.NewInlinePublisher(svc)
	}
	return notification.NewNATSPublisher(nc)
}

func ProvideCommandHandler(
	reservations reservation.Service,
	events event.Service,
	slots availability.Service,
	notifications notification.Service,
	hooks webhook.Dispatcher,
	publisher notification.Publisher,
) command.Handler {
	return command.New(reservations, events, slots, notifications, hooks, publisher)
}

func ProvidePasetoManager(cfg *config.Config) (*pasetotoken.Manager, error) {
	return pasetotoken.NewFromCentral(cfg.Authentication.Paseto)
}
