package repo

import (
	"context"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// NotificationLog records a scheduled notification that was sent.
type NotificationLog struct {
	ID            int64
	Name          string
	UserID        int64
	AppointmentID *int64
	EventID       *int64
	SentAt        time.Time
}

type NotificationClient struct {
	config
}

func (c *NotificationClient) Log(ctx context.Context, l *NotificationLog) error {
	id, err := c.insert(ctx, "log notification", c.builder().Insert("notifications_log").
		Columns("name", "user_id", "appointment_id", "event_id", "sent_date_time").
		Values(l.Name, l.UserID, nullInt(l.AppointmentID), nullInt(l.EventID), l.SentAt.UTC()))
	if err != nil {
		return err
	}
	l.ID = id
	return nil
}

// Sent reports whether the named notification was already logged for the
// user and entity.
func (c *NotificationClient) Sent(ctx context.Context, name string, userID int64, appointmentID, eventID *int64) (bool, error) {
	preds := []*entsql.Predicate{entsql.EQ("name", name), entsql.EQ("user_id", userID)}
	if appointmentID != nil {
		preds = append(preds, entsql.EQ("appointment_id", *appointmentID))
	}
	if eventID != nil {
		preds = append(preds, entsql.EQ("event_id", *eventID))
	}
	n, err := c.count(ctx, "count notifications", "notifications_log", preds...)
	return n > 0, err
}
