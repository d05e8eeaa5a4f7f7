package notification

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectPrefix is the NATS subject space booking messages are published on.
	SubjectPrefix = "booking"
	// QueueGroup spreads messages over all running workers so each is
	// handled once.
	QueueGroup = "booking-notifications"
)

// Subject is booking.<action>.<type>, e.g. booking.bookingAdded.appointment.
func Subject(msg Message) string {
	return SubjectPrefix + "." + msg.Action + "." + string(msg.Type)
}

// Publisher hands booking messages to the notification worker. Publishing
// never fails the caller; errors are logged.
type Publisher interface {
	Publish(ctx context.Context, msg Message)
}

type natsPublisher struct {
	nc *nats.Conn
}

func NewNATSPublisher(nc *nats.Conn) Publisher {
	return &natsPublisher{nc: nc}
}

func (p *natsPublisher) Publish(_ context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("notification: encode message failed", "err", err)
		return
	}
	if err := p.nc.Publish(Subject(msg), data); err != nil {
		slog.Warn("notification: publish failed", "subject", Subject(msg), "err", err)
	}
}

type inlinePublisher struct {
	svc Service
}

// NewInlinePublisher notifies synchronously, for deployments without NATS.
func NewInlinePublisher(svc Service) Publisher {
	return &inlinePublisher{svc: svc}
}

func (p *inlinePublisher) Publish(ctx context.Context, msg Message) {
	if err := p.svc.Notify(context.WithoutCancel(ctx), msg); err != nil {
		slog.Warn("notification: notify failed",
			"action", msg.Action, "type", msg.Type, "entity_id", msg.EntityID, "err", err)
	}
}

// Subscribe runs svc.Notify for every message published under SubjectPrefix.
func Subscribe(nc *nats.Conn, svc Service) (*nats.Subscription, error) {
	return nc.QueueSubscribe(SubjectPrefix+".>", QueueGroup, func(m *nats.Msg) {
		var msg Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			slog.Warn("notification_worker: bad message", "subject", m.Subject, "err", err)
			return
		}
		if err := svc.Notify(context.Background(), msg); err != nil {
			slog.Warn("notification_worker: notify failed",
				"subject", m.Subject, "entity_id", msg.EntityID, "err", err)
		}
	})
}
