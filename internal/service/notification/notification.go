package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/settings"
	"github.com/Alijeyrad/simorq_booking/pkg/email"
)

const (
	appointmentReminder = "customer_appointment_next_day_reminder"
	eventReminder       = "customer_event_next_day_reminder"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// Message is a booking lifecycle change. Action is one of the webhook
// action names, which double as email template names.
type Message struct {
	Action     string            `json:"action"`
	Type       domain.EntityType `json:"type"`
	EntityID   int64             `json:"entityId"`
	BookingIDs []int64           `json:"bookingIds"`
}

// Mailer sends rendered emails.
type Mailer interface {
	Send(ctx context.Context, m email.Message) error
}

// Texter sends SMS template messages.
type Texter interface {
	SendTemplate(ctx context.Context, phone, templateID string, params map[string]string) error
}

type Config struct {
	AppName       string
	ReminderLead  time.Duration
	SMSTemplateID string
	Concurrency   int
	// InviteDomain qualifies calendar invite UIDs.
	InviteDomain string
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	// Notify emails the customers of the message's bookings.
	Notify(ctx context.Context, msg Message) error
	// SendScheduled sends reminders for approved bookings starting within
	// the reminder lead time and returns how many were sent. Reminders
	// already in the log are skipped.
	SendScheduled(ctx context.Context) (int, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type notificationService struct {
	db    *repo.Client
	store settings.Store
	mail  Mailer
	sms   Texter
	cfg   Config
	now   func() time.Time
}

type Option func(*notificationService)

func WithClock(now func() time.Time) Option {
	return func(s *notificationService) { s.now = now }
}

func New(db *repo.Client, store settings.Store, mail Mailer, sms Texter, cfg Config, opts ...Option) Service {
	if cfg.ReminderLead <= 0 {
		cfg.ReminderLead = 24 * time.Hour
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.InviteDomain == "" {
		cfg.InviteDomain = "booking.local"
	}
	s := &notificationService{db: db, store: store, mail: mail, sms: sms, cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// subject is what a notification is about.
type subject struct {
	uid      string
	name     string
	provider string
	start    time.Time
	end      time.Time
}

func (s *notificationService) Notify(ctx context.Context, msg Message) error {
	set, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	subj, err := s.subject(ctx, msg.Type, msg.EntityID)
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range msg.BookingIDs {
		b, err := s.db.Booking.Get(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cust, err := s.db.User.GetCustomer(ctx, b.CustomerID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		err = s.sendEmail(ctx, email.Template(msg.Action), cust, b, subj, set.Location)
		if errors.Is(err, email.ErrDisabled) {
			return nil
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("booking %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (s *notificationService) subject(ctx context.Context, kind domain.EntityType, id int64) (subject, error) {
	switch kind {
	case domain.EntityAppointment:
		a, err := s.db.Appointment.Get(ctx, id)
		if err != nil {
			return subject{}, err
		}
		return s.appointmentSubject(ctx, a)
	case domain.EntityEvent:
		e, err := s.db.Event.Get(ctx, id)
		if err != nil {
			return subject{}, err
		}
		return eventSubject(e, time.Time{}), nil
	}
	return subject{}, fmt.Errorf("%w: %q", ErrUnknownEntity, kind)
}

func (s *notificationService) appointmentSubject(ctx context.Context, a *domain.Appointment) (subject, error) {
	svc, err := s.db.Service.Get(ctx, a.ServiceID)
	if err != nil {
		return subject{}, err
	}
	subj := subject{
		uid:   fmt.Sprintf("appointment-%d", a.ID),
		name:  svc.Name,
		start: a.BookingStart,
		end:   a.BookingEnd,
	}
	if p, err := s.db.Provider.Get(ctx, a.ProviderID); err == nil {
		subj.provider = p.FullName()
	}
	return subj, nil
}

// eventSubject starts at the first period starting at or after from.
func eventSubject(e *domain.Event, from time.Time) subject {
	subj := subject{uid: fmt.Sprintf("event-%d", e.ID), name: e.Name}
	for _, p := range e.Periods {
		if p.PeriodStart.Before(from) {
			continue
		}
		if subj.start.IsZero() || p.PeriodStart.Before(subj.start) {
			subj.start, subj.end = p.PeriodStart, p.PeriodEnd
		}
	}
	return subj
}

func (s *notificationService) sendEmail(ctx context.Context, tpl email.Template, cust *domain.Customer, b *domain.CustomerBooking, subj subject, loc *time.Location) error {
	if cust.Email == "" {
		return ErrNoRecipient
	}
	msg, err := email.BuildBookingEmail(tpl, email.BookingEmailData{
		To:           cust.Email,
		CustomerName: cust.FullName(),
		EntityName:   subj.name,
		ProviderName: subj.provider,
		Status:       string(b.Status),
		Start:        subj.start,
		End:          subj.end,
		UID:          fmt.Sprintf("%s-booking-%d@%s", subj.uid, b.ID, s.cfg.InviteDomain),
		Location:     loc,
		AppName:      s.cfg.AppName,
		Stamp:        s.now(),
	})
	if err != nil {
		return err
	}
	return s.mail.Send(ctx, msg)
}

// ---------------------------------------------------------------------------
// Scheduled reminders
// ---------------------------------------------------------------------------

type reminder struct {
	name          string
	customer      *domain.Customer
	booking       *domain.CustomerBooking
	subject       subject
	appointmentID *int64
	eventID       *int64
}

func (s *notificationService) SendScheduled(ctx context.Context) (int, error) {
	set, err := s.store.Load(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now().UTC()
	until := now.Add(s.cfg.ReminderLead)

	due, err := s.dueReminders(ctx, now, until)
	if err != nil {
		return 0, err
	}

	p := pool.NewWithResults[*reminder]().WithMaxGoroutines(s.cfg.Concurrency)
	for _, r := range due {
		p.Go(func() *reminder {
			err := s.remind(ctx, r, set.Location)
			if errors.Is(err, email.ErrDisabled) {
				return nil
			}
			if err != nil {
				slog.Warn("notification: reminder failed",
					"name", r.name, "customer_id", r.customer.ID, "booking_id", r.booking.ID, "err", err)
				return nil
			}
			return r
		})
	}

	sent := 0
	for _, r := range p.Wait() {
		if r == nil {
			continue
		}
		sent++
		err := s.db.Notification.Log(ctx, &repo.NotificationLog{
			Name:          r.name,
			UserID:        r.customer.ID,
			AppointmentID: r.appointmentID,
			EventID:       r.eventID,
			SentAt:        now,
		})
		if err != nil {
			slog.Warn("notification: log reminder failed", "name", r.name, "customer_id", r.customer.ID, "err", err)
		}
	}
	return sent, nil
}

// dueReminders lists approved bookings of approved appointments and events
// starting in [from, until) that have no logged reminder yet.
func (s *notificationService) dueReminders(ctx context.Context, from, until time.Time) ([]*reminder, error) {
	customers := map[int64]*domain.Customer{}
	customer := func(id int64) (*domain.Customer, error) {
		if c, ok := customers[id]; ok {
			return c, nil
		}
		c, err := s.db.User.GetCustomer(ctx, id)
		if err != nil {
			return nil, err
		}
		customers[id] = c
		return c, nil
	}

	var out []*reminder
	add := func(name string, subj subject, bookings []*domain.CustomerBooking, appointmentID, eventID *int64) error {
		for _, b := range bookings {
			if b.Status != domain.StatusApproved {
				continue
			}
			sent, err := s.db.Notification.Sent(ctx, name, b.CustomerID, appointmentID, eventID)
			if err != nil {
				return err
			}
			if sent {
				continue
			}
			c, err := customer(b.CustomerID)
			if err != nil {
				return err
			}
			out = append(out, &reminder{name: name, customer: c, booking: b, subject: subj, appointmentID: appointmentID, eventID: eventID})
		}
		return nil
	}

	appts, err := s.db.Appointment.List(ctx, repo.AppointmentFilter{
		From:     from,
		To:       until,
		Statuses: []domain.BookingStatus{domain.StatusApproved},
	})
	if err != nil {
		return nil, err
	}
	for _, a := range appts {
		if a.BookingStart.Before(from) {
			continue
		}
		subj, err := s.appointmentSubject(ctx, a)
		if err != nil {
			return nil, err
		}
		if err := add(appointmentReminder, subj, a.Bookings, &a.ID, nil); err != nil {
			return nil, err
		}
	}

	events, err := s.db.Event.ApprovedStartingBetween(ctx, from, until)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		if err := add(eventReminder, eventSubject(e, from), e.Bookings, nil, &e.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// remind emails the customer and texts them when they have a phone. The
// SMS is best effort once the email went out.
func (s *notificationService) remind(ctx context.Context, r *reminder, loc *time.Location) error {
	if err := s.sendEmail(ctx, email.TemplateReminder, r.customer, r.booking, r.subject, loc); err != nil {
		return err
	}
	if s.sms == nil || r.customer.Phone == "" {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	start := r.subject.start.In(loc)
	err := s.sms.SendTemplate(ctx, r.customer.Phone, s.cfg.SMSTemplateID, map[string]string{
		"name": r.customer.FirstName,
		"item": r.subject.name,
		"date": start.Format(time.DateOnly),
		"time": start.Format("15:04"),
	})
	if err != nil {
		slog.Warn("notification: reminder sms failed", "customer_id", r.customer.ID, "err", err)
	}
	return nil
}
