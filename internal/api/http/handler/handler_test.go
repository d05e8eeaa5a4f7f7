package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_booking/internal/command"
	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/service/availability"
	"github.com/Alijeyrad/simorq_booking/internal/service/event"
	"github.com/Alijeyrad/simorq_booking/internal/service/reservation"
	"github.com/Alijeyrad/simorq_booking/internal/settings"
	pasetotoken "github.com/Alijeyrad/simorq_booking/pkg/paseto"
)

// fakeCommands records the last call and answers with res or err.
type fakeCommands struct {
	res *command.Result
	err error

	slots      availability.FreeSlotsRequest
	booking    reservation.BookingRequest
	validate   reservation.Validator
	cancel     reservation.CancelRequest
	reschedule reservation.RescheduleRequest
	apptStatus reservation.StatusRequest
	status     domain.BookingStatus
	global     bool
}

func (f *fakeCommands) answer() (*command.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.res == nil {
		return command.Success("ok", nil), nil
	}
	return f.res, nil
}

func (f *fakeCommands) AddBooking(_ context.Context, req reservation.BookingRequest, v reservation.Validator) (*command.Result, error) {
	f.booking, f.validate = req, v
	return f.answer()
}

func (f *fakeCommands) CancelBooking(_ context.Context, req reservation.CancelRequest) (*command.Result, error) {
	f.cancel = req
	return f.answer()
}

func (f *fakeCommands) RescheduleAppointment(_ context.Context, req reservation.RescheduleRequest) (*command.Result, error) {
	f.reschedule = req
	return f.answer()
}

func (f *fakeCommands) UpdateAppointmentStatus(_ context.Context, req reservation.StatusRequest) (*command.Result, error) {
	f.apptStatus = req
	return f.answer()
}

func (f *fakeCommands) AddEvent(context.Context, *domain.Event) (*command.Result, error) {
	return f.answer()
}

func (f *fakeCommands) UpdateEvent(_ context.Context, _ int64, _ *domain.Event, applyGlobally bool) (*command.Result, error) {
	f.global = applyGlobally
	return f.answer()
}

func (f *fakeCommands) UpdateEventStatus(_ context.Context, _ int64, status domain.BookingStatus, applyGlobally bool) (*command.Result, error) {
	f.status, f.global = status, applyGlobally
	return f.answer()
}

func (f *fakeCommands) DeleteEvent(_ context.Context, _ int64, applyGlobally bool) (*command.Result, error) {
	f.global = applyGlobally
	return f.answer()
}

func (f *fakeCommands) GetTimeSlots(_ context.Context, req availability.FreeSlotsRequest) (*command.Result, error) {
	f.slots = req
	return f.answer()
}

func (f *fakeCommands) SendScheduledNotifications(context.Context) (*command.Result, error) {
	return f.answer()
}

type fakeCabinet struct{}

func (fakeCabinet) IssueCabinet(customerID int64) (string, error) {
	return fmt.Sprintf("cabinet-%d", customerID), nil
}

func newApp(cmd *fakeCommands, withClaims *pasetotoken.Claims) *fiber.App {
	store := settings.Static{Location: time.FixedZone("Tehran", 3*3600+1800)}

	app := fiber.New()
	if withClaims != nil {
		app.Use(func(c fiber.Ctx) error {
			c.Locals(pasetotoken.CtxKeyClaims, withClaims)
			return c.Next()
		})
	}
	slots := NewSlotHandler(cmd, store)
	bookings := NewBookingHandler(cmd, fakeCabinet{})
	events := NewEventHandler(cmd)
	appointments := NewAppointmentHandler(cmd)

	app.Get("/slots", slots.List)
	app.Post("/bookings", bookings.Create)
	app.Post("/bookings/:id/cancel", bookings.Cancel)
	app.Post("/admin/bookings", bookings.CreateAsStaff)
	app.Post("/appointments/:id/reschedule", appointments.Reschedule)
	app.Patch("/admin/appointments/:id/time", appointments.RescheduleAsStaff)
	app.Patch("/admin/appointments/:id/status", appointments.UpdateStatus)
	app.Patch("/admin/events/:id/status", events.UpdateStatus)
	app.Delete("/admin/events/:id", events.Delete)
	return app
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("decode body: %v", err)
	}
	return resp.StatusCode, out
}

func TestSlotsQuery(t *testing.T) {
	cmd := &fakeCommands{}
	app := newApp(cmd, nil)

	q := url.Values{}
	q.Set("serviceId", "3")
	q.Set("start", "2024-01-10")
	q.Set("end", "2024-01-11")
	q.Set("providerIds", "1, 2")
	q.Set("extras", `[{"id":4,"quantity":2}]`)
	status, _ := do(t, app, http.MethodGet, "/slots?"+q.Encode(), "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	got := cmd.slots
	if got.ServiceID != 3 || !got.FrontEnd || got.Persons != 1 {
		t.Errorf("request = %+v", got)
	}
	if len(got.ProviderIDs) != 2 || got.ProviderIDs[1] != 2 {
		t.Errorf("providers = %v", got.ProviderIDs)
	}
	if len(got.Extras) != 1 || got.Extras[0] != (domain.SelectedExtra{ID: 4, Quantity: 2}) {
		t.Errorf("extras = %v", got.Extras)
	}
	if got.Start.Location().String() != "Tehran" || got.End.Sub(got.Start) != 48*time.Hour {
		t.Errorf("range = %s .. %s", got.Start, got.End)
	}
}

func TestSlotsRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"missing service", "start=2024-01-10&end=2024-01-11"},
		{"bad start", "serviceId=1&start=tomorrow&end=2024-01-11"},
		{"end before start", "serviceId=1&start=2024-01-10T10:00:00Z&end=2024-01-10T09:00:00Z"},
		{"bad providers", "serviceId=1&start=2024-01-10&end=2024-01-11&providerIds=a,b"},
		{"bad extras", "serviceId=1&start=2024-01-10&end=2024-01-11&extras=nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, newApp(&fakeCommands{}, nil), http.MethodGet, "/slots?"+tt.query, "")
			if status != http.StatusBadRequest || body["result"] != "error" {
				t.Errorf("status = %d, body = %v", status, body)
			}
		})
	}
}

func TestCreateBooking(t *testing.T) {
	cmd := &fakeCommands{res: command.Success(reservation.SuccessMessage, map[string]any{
		"booking": &domain.CustomerBooking{ID: 9, CustomerID: 7},
	})}
	app := newApp(cmd, nil)

	status, body := do(t, app, http.MethodPost, "/bookings", `{"type":"appointment","serviceId":1,"providerId":2}`)
	if status != http.StatusCreated {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	if cmd.validate != reservation.FrontEnd || cmd.booking.ServiceID != 1 {
		t.Errorf("call = %+v, %+v", cmd.booking, cmd.validate)
	}
	data := body["data"].(map[string]any)
	if data["cabinetToken"] != "cabinet-7" {
		t.Errorf("data = %v", data)
	}

	do(t, app, http.MethodPost, "/admin/bookings", `{"type":"appointment"}`)
	if cmd.validate.TimeSlot || !cmd.validate.Coupon {
		t.Errorf("staff validator = %+v", cmd.validate)
	}
}

func TestFailureStatus(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want int
	}{
		{"slot taken", string(reservation.KindTimeSlotUnavailable), http.StatusConflict},
		{"unknown coupon", string(reservation.KindCouponUnknown), http.StatusNotFound},
		{"payment", string(reservation.KindPayment), http.StatusPaymentRequired},
		{"reauthorize", command.KeyReauthorize, http.StatusForbidden},
		{"anything else", "somethingElse", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &fakeCommands{res: command.Failure("no", map[string]any{tt.key: true})}
			status, body := do(t, newApp(cmd, nil), http.MethodPost, "/bookings", `{}`)
			if status != tt.want {
				t.Errorf("status = %d, want %d", status, tt.want)
			}
			if _, ok := body["data"].(map[string]any)["cabinetToken"]; ok {
				t.Error("cabinet token issued for a failed booking")
			}
		})
	}
}

func TestCancelBooking(t *testing.T) {
	cmd := &fakeCommands{}
	status, _ := do(t, newApp(cmd, nil), http.MethodPost, "/bookings/12/cancel", `{"token":"abc"}`)
	if status != http.StatusOK || cmd.cancel != (reservation.CancelRequest{BookingID: 12, Token: "abc"}) {
		t.Errorf("status = %d, request = %+v", status, cmd.cancel)
	}

	cabinet := &pasetotoken.Claims{Type: pasetotoken.TokenTypeCabinet, UserID: 7}
	do(t, newApp(cmd, cabinet), http.MethodPost, "/bookings/12/cancel", "")
	if cmd.cancel != (reservation.CancelRequest{BookingID: 12, CustomerID: 7}) {
		t.Errorf("cabinet request = %+v", cmd.cancel)
	}

	status, _ = do(t, newApp(cmd, nil), http.MethodPost, "/bookings/x/cancel", `{}`)
	if status != http.StatusBadRequest {
		t.Errorf("bad id status = %d", status)
	}
}

func TestAppointmentEndpoints(t *testing.T) {
	cmd := &fakeCommands{}
	at := time.Date(2024, 1, 10, 11, 0, 0, 0, time.UTC)
	body := `{"bookingStart":"2024-01-10T11:00:00Z"}`

	status, _ := do(t, newApp(cmd, nil), http.MethodPatch, "/admin/appointments/5/time", body)
	want := reservation.RescheduleRequest{AppointmentID: 5, BookingStart: at, Privileged: true}
	if status != http.StatusOK || cmd.reschedule.AppointmentID != want.AppointmentID || !cmd.reschedule.BookingStart.Equal(at) || !cmd.reschedule.Privileged {
		t.Errorf("status = %d, request = %+v", status, cmd.reschedule)
	}

	status, _ = do(t, newApp(cmd, nil), http.MethodPost, "/appointments/5/reschedule", body)
	if status != http.StatusUnauthorized {
		t.Errorf("reschedule without cabinet token status = %d", status)
	}

	cabinet := &pasetotoken.Claims{Type: pasetotoken.TokenTypeCabinet, UserID: 7}
	do(t, newApp(cmd, cabinet), http.MethodPost, "/appointments/5/reschedule", body)
	if cmd.reschedule.CustomerID != 7 || cmd.reschedule.Privileged {
		t.Errorf("cabinet request = %+v", cmd.reschedule)
	}

	status, _ = do(t, newApp(cmd, nil), http.MethodPatch, "/admin/appointments/5/time", `{}`)
	if status != http.StatusBadRequest {
		t.Errorf("missing start status = %d", status)
	}

	cmd.res = command.Failure("no", map[string]any{string(reservation.KindRescheduleDenied): true})
	status, _ = do(t, newApp(cmd, cabinet), http.MethodPost, "/appointments/5/reschedule", body)
	if status != http.StatusConflict {
		t.Errorf("reschedule window status = %d", status)
	}
	cmd.res = nil

	status, _ = do(t, newApp(cmd, nil), http.MethodPatch, "/admin/appointments/5/status", `{"status":"no-show"}`)
	if status != http.StatusOK || cmd.apptStatus != (reservation.StatusRequest{AppointmentID: 5, Status: domain.StatusNoShow}) {
		t.Errorf("status = %d, request = %+v", status, cmd.apptStatus)
	}

	status, _ = do(t, newApp(cmd, nil), http.MethodPatch, "/admin/appointments/5/status", `{"status":"done"}`)
	if status != http.StatusBadRequest {
		t.Errorf("unknown status = %d", status)
	}

	cmd.err = fmt.Errorf("update: %w", &repo.NotFoundError{})
	status, _ = do(t, newApp(cmd, nil), http.MethodPatch, "/admin/appointments/5/status", `{"status":"approved"}`)
	if status != http.StatusNotFound {
		t.Errorf("missing appointment status = %d", status)
	}
}

func TestEventEndpoints(t *testing.T) {
	cmd := &fakeCommands{}
	app := newApp(cmd, nil)

	status, _ := do(t, app, http.MethodPatch, "/admin/events/4/status", `{"status":"rejected","applyGlobally":true}`)
	if status != http.StatusOK || cmd.status != domain.StatusRejected || !cmd.global {
		t.Errorf("status = %d, call = %s %v", status, cmd.status, cmd.global)
	}

	status, _ = do(t, app, http.MethodPatch, "/admin/events/4/status", `{"status":"no-show"}`)
	if status != http.StatusBadRequest {
		t.Errorf("no-show status = %d", status)
	}

	cmd.err = fmt.Errorf("delete: %w", event.ErrNotFound)
	status, _ = do(t, app, http.MethodDelete, "/admin/events/4?applyGlobally=true", "")
	if status != http.StatusNotFound {
		t.Errorf("missing event status = %d", status)
	}

	cmd.err = errors.New("db gone")
	status, body := do(t, app, http.MethodDelete, "/admin/events/4", "")
	if status != http.StatusInternalServerError || body["message"] != "internal server error" {
		t.Errorf("status = %d, body = %v", status, body)
	}
}
