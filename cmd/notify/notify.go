package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Alijeyrad/simorq_booking/config"
	"github.com/Alijeyrad/simorq_booking/internal/app"
	"github.com/Alijeyrad/simorq_booking/internal/command"
	"github.com/Alijeyrad/simorq_booking/pkg/logs"
	redispkg "github.com/Alijeyrad/simorq_booking/pkg/redis"
)

// lockName keeps concurrent schedulers from sending the same reminders.
const lockName = "notifications:scheduled"

func NewNotifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Scheduled customer notifications",
	}

	cmd.AddCommand(newSendCommand())
	cmd.AddCommand(newScheduleCommand())
	cmd.AddCommand(newWorkerCommand())

	return cmd
}

func newSendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Send due reminders once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHandler(cmd, func(ctx context.Context, h command.Handler, _ *redis.Client, _ *config.Config) error {
				res, err := h.SendScheduledNotifications(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("%s: %v\n", res.Message, res.Data["sent"])
				return nil
			})
		},
	}
}

func newScheduleCommand() *cobra.Command {
	var spec string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Send due reminders on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHandler(cmd, func(ctx context.Context, h command.Handler, rdb *redis.Client, cfg *config.Config) error {
				if spec == "" {
					spec = cfg.Notifications.ReminderCron
				}

				c := cron.New()
				_, err := c.AddFunc(spec, func() { runOnce(ctx, h, rdb) })
				if err != nil {
					return fmt.Errorf("bad cron spec %q: %w", spec, err)
				}
				c.Start()
				slog.Info("notification scheduler started", "cron", spec)

				<-ctx.Done()
				<-c.Stop().Done()
				slog.Info("notification scheduler stopped")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "", "Cron spec, defaults to notifications.reminder_cron")

	return cmd
}

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume booking messages from NATS and notify customers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := readConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.Nats.Enabled {
				return fmt.Errorf("the worker needs nats.enabled; without it notifications are sent by the API process")
			}

			fxApp := fx.New(
				fx.Supply(cfg),
				app.InfraModule,
				app.ServiceModule,
				app.WorkerModule,
				fx.NopLogger,
			)
			fxApp.Run()
			return fxApp.Err()
		},
	}
}

func runOnce(ctx context.Context, h command.Handler, rdb *redis.Client) {
	release, ok, err := redispkg.TryLock(ctx, rdb, lockName, 10*time.Minute)
	if err != nil {
		slog.Error("notification lock failed", "err", err)
		return
	}
	if !ok {
		slog.Debug("notification pass already running elsewhere")
		return
	}
	defer release()

	if _, err := h.SendScheduledNotifications(ctx); err != nil {
		slog.Error("scheduled notifications failed", "err", err)
	}
}

// withHandler starts the service graph, runs fn and stops the graph again.
func withHandler(cmd *cobra.Command, fn func(context.Context, command.Handler, *redis.Client, *config.Config) error) error {
	cfg, err := readConfig(cmd)
	if err != nil {
		return err
	}

	var (
		h   command.Handler
		rdb *redis.Client
	)
	fxApp := fx.New(
		fx.Supply(cfg),
		app.InfraModule,
		app.ServiceModule,
		fx.Populate(&h, &rdb),
		fx.NopLogger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fxApp.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := fxApp.Stop(stopCtx); err != nil {
			slog.Warn("shutdown failed", "err", err)
		}
	}()

	return fn(ctx, h, rdb, cfg)
}

// readConfig loads the config named by --config and installs its logger.
func readConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logs.New(cfg))
	return cfg, nil
}
