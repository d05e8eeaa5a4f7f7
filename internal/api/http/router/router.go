package router

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/Alijeyrad/simorq_booking/config"
	"github.com/Alijeyrad/simorq_booking/internal/api/http/handler"
	"github.com/Alijeyrad/simorq_booking/internal/api/http/middleware"
	"github.com/Alijeyrad/simorq_booking/internal/command"
	"github.com/Alijeyrad/simorq_booking/internal/settings"
	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
	pasetotoken "github.com/Alijeyrad/simorq_booking/pkg/paseto"
	redispkg "github.com/Alijeyrad/simorq_booking/pkg/redis"
)

// Module provides the Router to the fx graph.
var Module = fx.Module("router", fx.Provide(NewRouter))

type Params struct {
	fx.In

	Cfg       *config.Config
	Auth      authorize.IAuthorization
	Command   command.Handler
	Settings  settings.Store
	PasetoMgr *pasetotoken.Manager
	Sessions  *redispkg.Sessions
}

type Router struct {
	p Params
}

func NewRouter(p Params) *Router {
	return &Router{p: p}
}

func (r *Router) Register(app *fiber.App) {
	// 1. Health & Metrics
	r.registerSystemRoutes(app)

	// 2. Middlewares
	authRequired := middleware.AuthRequired(r.p.PasetoMgr, r.p.Sessions)
	cabinet := middleware.CabinetOptional(r.p.PasetoMgr)
	requirePerm := func(res authorize.Resource, act authorize.Action) fiber.Handler {
		return middleware.RequirePermission(r.p.Auth, res, act)
	}

	// 3. Handlers
	authH := handler.NewAuthHandler(r.p.Sessions)
	slotH := handler.NewSlotHandler(r.p.Command, r.p.Settings)
	bookingH := handler.NewBookingHandler(r.p.Command, r.p.PasetoMgr)
	eventH := handler.NewEventHandler(r.p.Command)
	appointmentH := handler.NewAppointmentHandler(r.p.Command)
	notificationH := handler.NewNotificationHandler(r.p.Command)

	api := app.Group("/api/v1")

	auth := api.Group("/auth", authRequired)
	auth.Get("/me", authH.Me)
	auth.Post("/logout", authH.Logout)

	// Public booking surface
	api.Get("/slots", slotH.List)
	api.Post("/bookings", bookingH.Create)
	api.Post("/bookings/:id/cancel", cabinet, bookingH.Cancel)
	api.Post("/appointments/:id/reschedule", cabinet, appointmentH.Reschedule)

	// Back office
	admin := api.Group("/admin", authRequired)
	admin.Post("/bookings", requirePerm(authorize.ResourceBooking, authorize.ActionCreate), bookingH.CreateAsStaff)
	admin.Post("/bookings/:id/cancel", requirePerm(authorize.ResourceBooking, authorize.ActionCancel), bookingH.CancelAsStaff)

	appointments := admin.Group("/appointments")
	appointments.Patch("/:id/time", requirePerm(authorize.ResourceAppointment, authorize.ActionUpdate), appointmentH.RescheduleAsStaff)
	appointments.Patch("/:id/status", requirePerm(authorize.ResourceAppointment, authorize.ActionUpdate), appointmentH.UpdateStatus)

	events := admin.Group("/events")
	events.Post("/", requirePerm(authorize.ResourceEvent, authorize.ActionCreate), eventH.Create)
	events.Patch("/:id", requirePerm(authorize.ResourceEvent, authorize.ActionUpdate), eventH.Update)
	events.Patch("/:id/status", requirePerm(authorize.ResourceEvent, authorize.ActionUpdate), eventH.UpdateStatus)
	events.Delete("/:id", requirePerm(authorize.ResourceEvent, authorize.ActionDelete), eventH.Delete)

	admin.Post("/notifications/scheduled", requirePerm(authorize.ResourceNotification, authorize.ActionCreate), notificationH.SendScheduled)
}

func (r *Router) registerSystemRoutes(app *fiber.App) {
	app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	app.Get(healthcheck.ReadinessEndpoint, healthcheck.New(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool { return authorize.IsPolicyHealthy() },
	}))
	app.Get(healthcheck.StartupEndpoint, healthcheck.New())

	if r.p.Cfg.Observability.Enabled && r.p.Cfg.Observability.Metrics.Enabled {
		path := r.p.Cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}
}
