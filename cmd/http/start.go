package http

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Alijeyrad/simorq_booking/config"
	"github.com/Alijeyrad/simorq_booking/internal/api/http"
	"github.com/Alijeyrad/simorq_booking/internal/api/http/router"
	"github.com/Alijeyrad/simorq_booking/internal/app"
	"github.com/Alijeyrad/simorq_booking/pkg/logs"
)

func NewStartCommand() *cobra.Command {
	var (
		shutdownTimeout time.Duration
		noWorkers       bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the booking API server",
		Long: `Start the booking API server.

With nats.enabled the server also consumes booking messages and sends
notifications, unless --no-workers is set; run "notify worker" elsewhere then.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return err
			}
			cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
			if err != nil {
				return err
			}

			// Logger first so fx start-up errors use it.
			slog.SetDefault(logs.New(cfg))

			opts := []fx.Option{
				fx.Supply(cfg),
				app.InfraModule,
				app.ServiceModule,
				router.Module,
				http.Module,
				fx.Invoke(func(*fiber.App) {}),
				fx.StopTimeout(shutdownTimeout),
				fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
			}
			if !noWorkers {
				opts = append(opts, app.WorkerModule)
			}

			fxApp := fx.New(opts...)
			fxApp.Run()
			return fxApp.Err()
		},
	}

	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "maximum time to wait for graceful shutdown")
	cmd.Flags().BoolVar(&noWorkers, "no-workers", false, "do not consume booking messages in this process")

	return cmd
}
