package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/logger"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/simorq_booking/config"
	"github.com/Alijeyrad/simorq_booking/internal/api/http/middleware"
	"github.com/Alijeyrad/simorq_booking/internal/api/http/router"
	"github.com/Alijeyrad/simorq_booking/internal/command"
	"github.com/Alijeyrad/simorq_booking/pkg/observability"
	"github.com/Alijeyrad/simorq_booking/pkg/reqctx"
)

// bodyLimit leaves room for custom field uploads sent with a booking.
const bodyLimit = 16 << 20

var Module = fx.Module("http", fx.Provide(NewServer))

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Cfg       *config.Config
	Redis     *redis.Client
	Router    *router.Router
	OTel      *observability.Provider `optional:"true"`
}

func NewServer(p Params) *fiber.App {
	timeout := time.Duration(p.Cfg.Server.TimeoutSeconds) * time.Second
	app := fiber.New(fiber.Config{
		AppName:      p.Cfg.Observability.ServiceName,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		BodyLimit:    bodyLimit,
		ErrorHandler: errorHandler,
	})

	if p.OTel != nil && p.Cfg.Observability.Tracing.Enabled {
		app.Use(observability.FiberMiddleware())
	}
	useGlobalMiddleware(app, p.Cfg.Server, p.Redis)
	p.Router.Register(app)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			addr := fmt.Sprintf(":%d", p.Cfg.Server.Port)
			go func() {
				if err := app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
					slog.Error("http server stopped", "err", err)
				}
			}()
			slog.Info("http server listening", "addr", addr, "env", p.Cfg.Server.Environment)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})

	return app
}

// errorHandler answers errors that escaped a handler, e.g. fiber.ErrUnauthorized
// from the auth middleware, in the same body shape as command results.
func errorHandler(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	msg := "internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status, msg = fe.Code, fe.Message
	} else {
		slog.ErrorContext(c.Context(), "unhandled error",
			append(reqctx.LogAttrs(c.Context()), "path", c.Path(), "err", err)...)
	}
	return c.Status(status).JSON(command.Failure(msg, nil))
}

func useGlobalMiddleware(app *fiber.App, cfg config.ServerConfig, rdb *redis.Client) {
	app.Use(middleware.RequestID())
	app.Use(recoverer.New())

	if cfg.CORS.Enabled {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowOrigins,
			AllowMethods:     cfg.CORS.AllowMethods,
			AllowHeaders:     cfg.CORS.AllowHeaders,
			ExposeHeaders:    cfg.CORS.ExposeHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAgeSeconds,
		}))
	}

	if cfg.Environment == "production" {
		h := cfg.Headers
		app.Use(helmet.New(helmet.Config{
			XSSProtection:             h.XSSProtection,
			ContentTypeNosniff:        h.ContentTypeNosniff,
			XFrameOptions:             h.XFrameOptions,
			ReferrerPolicy:            h.ReferrerPolicy,
			CrossOriginEmbedderPolicy: h.CrossOriginEmbedderPolicy,
			CrossOriginOpenerPolicy:   h.CrossOriginOpenerPolicy,
			CrossOriginResourcePolicy: h.CrossOriginResourcePolicy,
			OriginAgentCluster:        h.OriginAgentCluster,
			XDNSPrefetchControl:       h.XDNSPrefetchControl,
			XDownloadOptions:          h.XDownloadOptions,
			XPermittedCrossDomain:     h.XPermittedCrossDomain,
		}))
		app.Use(middleware.NewLimiterWithRedis(rdb, cfg.RateLimit.RequestsPerMinute))
	}

	app.Use(logger.New(logger.Config{
		Format: "${ip} - [${time}] [req_id=${locals:requestId}] ${method} ${url} ${status} ${latency}\n",
	}))
}
