package app

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"

	"github.com/Alijeyrad/simorq_booking/internal/service/notification"
)

// WorkerModule registers the NATS notification worker.
var WorkerModule = fx.Module("workers",
	fx.Invoke(RegisterWorkers),
)

type WorkerParams struct {
	fx.In

	Lc       fx.Lifecycle
	NC       *nats.Conn
	NotifSvc notification.Service
}

func RegisterWorkers(p WorkerParams) {
	var sub *nats.Subscription
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if p.NC == nil {
				slog.Info("notification_worker: nats disabled, notifications are sent inline")
				return nil
			}
			var err error
			sub, err = notification.Subscribe(p.NC, p.NotifSvc)
			if err != nil {
				return err
			}
			slog.Info("notification_worker: started", "subject", notification.SubjectPrefix+".>")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if sub == nil {
				return nil
			}
			// The connection drain in ProvideNatsClient flushes pending messages.
			return sub.Unsubscribe()
		},
	})
}
