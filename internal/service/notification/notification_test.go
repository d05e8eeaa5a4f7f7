package notification_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/repo/repotest"
	"github.com/Alijeyrad/simorq_booking/internal/service/notification"
	"github.com/Alijeyrad/simorq_booking/internal/settings"
	"github.com/Alijeyrad/simorq_booking/pkg/email"
)

var now = time.Date(2024, 1, 9, 10, 0, 0, 0, time.UTC)

type outbox struct {
	mu       sync.Mutex
	mails    []email.Message
	texts    []string
	fail     bool
	disabled bool
}

func (o *outbox) Send(_ context.Context, m email.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disabled {
		return email.ErrDisabled
	}
	if o.fail {
		return errors.New("smtp down")
	}
	o.mails = append(o.mails, m)
	return nil
}

func (o *outbox) SendTemplate(_ context.Context, phone, _ string, params map[string]string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.texts = append(o.texts, phone+" "+params["time"])
	return nil
}

type fixture struct {
	db       *repo.Client
	customer *domain.Customer
	appt     *domain.Appointment
	event    *domain.Event
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := repotest.Open(t)

	svc := &domain.Service{Name: "Massage", Duration: 3600, MinCapacity: 1, MaxCapacity: 1}
	if err := db.Service.Create(ctx, svc); err != nil {
		t.Fatalf("create service: %v", err)
	}
	provider := &domain.Provider{FirstName: "Sara", LastName: "Ahmadi"}
	if err := db.Provider.Create(ctx, provider); err != nil {
		t.Fatalf("create provider: %v", err)
	}
	cust := &domain.Customer{FirstName: "Nima", Email: "nima@example.com", Phone: "+989123456789"}
	if err := db.User.CreateCustomer(ctx, cust); err != nil {
		t.Fatalf("create customer: %v", err)
	}

	appt := &domain.Appointment{
		ServiceID:    svc.ID,
		ProviderID:   provider.ID,
		BookingStart: now.Add(23 * time.Hour),
		BookingEnd:   now.Add(24 * time.Hour),
		Status:       domain.StatusApproved,
		Bookings: []*domain.CustomerBooking{
			{CustomerID: cust.ID, Status: domain.StatusApproved, Persons: 1, Token: "a"},
		},
	}
	if err := db.Appointment.Create(ctx, appt); err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	// Outside the reminder lead time.
	later := &domain.Appointment{
		ServiceID:    svc.ID,
		ProviderID:   provider.ID,
		BookingStart: now.Add(30 * time.Hour),
		BookingEnd:   now.Add(31 * time.Hour),
		Status:       domain.StatusApproved,
		Bookings: []*domain.CustomerBooking{
			{CustomerID: cust.ID, Status: domain.StatusApproved, Persons: 1, Token: "b"},
		},
	}
	if err := db.Appointment.Create(ctx, later); err != nil {
		t.Fatalf("create appointment: %v", err)
	}

	event := &domain.Event{Name: "Yoga", Status: domain.StatusApproved, MaxCapacity: 5}
	if err := db.Event.CreateRow(ctx, event); err != nil {
		t.Fatalf("create event: %v", err)
	}
	period := &domain.EventPeriod{EventID: event.ID, PeriodStart: now.Add(2 * time.Hour), PeriodEnd: now.Add(3 * time.Hour)}
	if err := db.Event.CreatePeriod(ctx, period); err != nil {
		t.Fatalf("create period: %v", err)
	}
	booking := &domain.CustomerBooking{CustomerID: cust.ID, Status: domain.StatusApproved, Persons: 1, Token: "c"}
	if err := db.Booking.Create(ctx, booking); err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if err := db.Booking.LinkEventPeriods(ctx, booking.ID, []int64{period.ID}); err != nil {
		t.Fatalf("link booking: %v", err)
	}
	return &fixture{db: db, customer: cust, appt: appt, event: event}
}

func newService(f *fixture, box *outbox) notification.Service {
	return notification.New(f.db, settings.Static{Location: time.UTC}, box, box,
		notification.Config{AppName: "Test", ReminderLead: 24 * time.Hour},
		notification.WithClock(func() time.Time { return now }))
}

func TestSendScheduledRemindsOnce(t *testing.T) {
	f := setup(t)
	box := &outbox{}
	svc := newService(f, box)
	ctx := context.Background()

	sent, err := svc.SendScheduled(ctx)
	if err != nil {
		t.Fatalf("SendScheduled: %v", err)
	}
	if sent != 2 || len(box.mails) != 2 {
		t.Fatalf("sent = %d, mails = %d, want 2", sent, len(box.mails))
	}
	subjects := []string{box.mails[0].Subject, box.mails[1].Subject}
	if !slices.Contains(subjects, "Reminder: Massage is coming up") || !slices.Contains(subjects, "Reminder: Yoga is coming up") {
		t.Errorf("subjects = %v", subjects)
	}
	if len(box.texts) != 2 {
		t.Errorf("texts = %v", box.texts)
	}

	logged, err := f.db.Notification.Sent(ctx, "customer_appointment_next_day_reminder", f.customer.ID, &f.appt.ID, nil)
	if err != nil || !logged {
		t.Errorf("appointment reminder logged = %v, %v", logged, err)
	}

	sent, err = svc.SendScheduled(ctx)
	if err != nil || sent != 0 {
		t.Errorf("second pass sent = %d, %v", sent, err)
	}
}

func TestSendScheduledSkipsFailedSends(t *testing.T) {
	f := setup(t)
	box := &outbox{fail: true}
	svc := newService(f, box)

	sent, err := svc.SendScheduled(context.Background())
	if err != nil || sent != 0 {
		t.Fatalf("sent = %d, err = %v", sent, err)
	}

	// Nothing was logged, so the next pass retries.
	box.fail = false
	sent, err = svc.SendScheduled(context.Background())
	if err != nil || sent != 2 {
		t.Errorf("retry sent = %d, err = %v", sent, err)
	}
}

func TestNotify(t *testing.T) {
	f := setup(t)
	box := &outbox{}
	svc := newService(f, box)

	err := svc.Notify(context.Background(), notification.Message{
		Action:     "bookingCanceled",
		Type:       domain.EntityAppointment,
		EntityID:   f.appt.ID,
		BookingIDs: []int64{f.appt.Bookings[0].ID},
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(box.mails) != 1 {
		t.Fatalf("mails = %d", len(box.mails))
	}
	m := box.mails[0]
	if m.Subject != "Booking canceled: Massage" || m.To[0] != "nima@example.com" || !strings.Contains(m.TextBody, "With: Sara Ahmadi") {
		t.Errorf("mail = %+v", m)
	}
	if len(m.Attachments) != 1 || !strings.Contains(string(m.Attachments[0].Data), "METHOD:CANCEL") {
		t.Errorf("attachments = %+v", m.Attachments)
	}

	err = svc.Notify(context.Background(), notification.Message{Type: "waitlist", EntityID: 1})
	if !errors.Is(err, notification.ErrUnknownEntity) {
		t.Errorf("unknown type err = %v", err)
	}
}

func TestNotifyWithEmailDisabled(t *testing.T) {
	f := setup(t)
	svc := newService(f, &outbox{disabled: true})

	err := svc.Notify(context.Background(), notification.Message{
		Action:     "bookingAdded",
		Type:       domain.EntityAppointment,
		EntityID:   f.appt.ID,
		BookingIDs: []int64{f.appt.Bookings[0].ID},
	})
	if err != nil {
		t.Errorf("Notify: %v", err)
	}
}

func TestInlinePublisher(t *testing.T) {
	f := setup(t)
	box := &outbox{}
	pub := notification.NewInlinePublisher(newService(f, box))

	msg := notification.Message{
		Action:     "bookingAdded",
		Type:       domain.EntityAppointment,
		EntityID:   f.appt.ID,
		BookingIDs: []int64{f.appt.Bookings[0].ID},
	}
	pub.Publish(context.Background(), msg)
	if len(box.mails) != 1 || box.mails[0].Subject != "Your booking for Massage" {
		t.Errorf("mails = %+v", box.mails)
	}
	if got := notification.Subject(msg); got != "booking.bookingAdded.appointment" {
		t.Errorf("Subject = %q", got)
	}
}
