package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/settings"
)

const (
	meterName = "github.com/Alijeyrad/simorq_booking/internal/service/reservation"

	SuccessMessage = "Successfully added booking"
)

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	// Process books, pays and finalizes in one transaction. Expected
	// failures come back as *BookingError and leave nothing persisted.
	Process(ctx context.Context, req BookingRequest, v Validator, save bool) (*Outcome, error)
	ProcessBooking(ctx context.Context, req BookingRequest, v Validator, save bool) (*domain.Reservation, error)
	Finalize(res *domain.Reservation) map[string]any

	CancelBooking(ctx context.Context, req CancelRequest) (*domain.Reservation, error)
	Reschedule(ctx context.Context, req RescheduleRequest) (*domain.Reservation, error)
	UpdateAppointmentStatus(ctx context.Context, req StatusRequest) (*domain.Reservation, error)

	AddPayment(ctx context.Context, bookingID int64, req PaymentRequest, amount float64, at time.Time) (*domain.Payment, error)
	InspectMinimumCancellationTime(start time.Time, minSeconds int) error
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type reservationService struct {
	db          *repo.Client
	store       settings.Store
	slots       SlotChecker
	files       FileStore
	bookers     map[domain.EntityType]booker
	phoneRegion string
	now         func() time.Time
	processed   metric.Int64Counter
}

type Option func(*reservationService)

func WithClock(now func() time.Time) Option {
	return func(s *reservationService) { s.now = now }
}

// WithFileStore enables custom-field file uploads.
func WithFileStore(files FileStore) Option {
	return func(s *reservationService) { s.files = files }
}

func WithPhoneRegion(region string) Option {
	return func(s *reservationService) { s.phoneRegion = region }
}

func New(db *repo.Client, store settings.Store, slots SlotChecker, opts ...Option) Service {
	counter, _ := otel.Meter(meterName).Int64Counter(
		"booking_reservations_total",
		metric.WithDescription("Total number of processed reservations by result"),
		metric.WithUnit("{reservation}"),
	)
	s := &reservationService{
		db:          db,
		store:       store,
		slots:       slots,
		phoneRegion: "IR",
		now:         time.Now,
		processed:   counter,
	}
	for _, o := range opts {
		o(s)
	}
	s.bookers = map[domain.EntityType]booker{
		domain.EntityAppointment: &appointmentBooker{slots: slots},
		domain.EntityEvent:       &eventBooker{now: s.now},
	}
	return s
}

// ---------------------------------------------------------------------------
// Process
// ---------------------------------------------------------------------------

func (s *reservationService) Process(ctx context.Context, req BookingRequest, v Validator, save bool) (*Outcome, error) {
	var out *Outcome
	err := repo.WithTx(ctx, s.db, func(ctx context.Context, tx *repo.Tx) error {
		res, err := s.ProcessBooking(ctx, req, v, save)
		if err != nil {
			return err
		}

		set, err := s.store.Load(ctx)
		if err != nil {
			return err
		}
		if err := checkPayment(set, req.Payment, reservationAmount(res)); err != nil {
			s.discard(ctx, res.UploadedFiles)
			return classify(err)
		}
		if save {
			if err := s.payAll(ctx, res, req.Payment); err != nil {
				s.discard(ctx, res.UploadedFiles)
				return err
			}
		}

		out = &Outcome{Reservation: res, Data: s.Finalize(res)}
		return nil
	})
	s.record(ctx, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *reservationService) record(ctx context.Context, err error) {
	result := "success"
	var be *BookingError
	switch {
	case errors.As(err, &be):
		result = string(be.Kind)
	case err != nil:
		result = "error"
	}
	s.processed.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (s *reservationService) ProcessBooking(ctx context.Context, req BookingRequest, v Validator, save bool) (*domain.Reservation, error) {
	kind := lo.CoalesceOrEmpty(req.Type, domain.EntityAppointment)
	bk, ok := s.bookers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, kind)
	}
	if kind == domain.EntityEvent && len(req.Recurring) > 0 {
		return nil, fmt.Errorf("%w: events cannot carry recurring items", domain.ErrInvalidArgument)
	}
	req.Type = kind
	req.Booking.Persons = max(req.Booking.Persons, 1)

	var res *domain.Reservation
	err := repo.WithTx(ctx, s.db, func(ctx context.Context, tx *repo.Tx) error {
		var err error
		res, err = s.processBooking(ctx, tx.Client, bk, &req, v, save)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return res, nil
}

func (s *reservationService) processBooking(ctx context.Context, db *repo.Client, bk booker, req *BookingRequest, v Validator, save bool) (*domain.Reservation, error) {
	customer, created, err := s.resolveCustomer(ctx, db, req.Booking, save)
	if err != nil {
		return nil, err
	}

	info, _ := json.Marshal(map[string]string{
		"firstName": customer.FirstName,
		"lastName":  customer.LastName,
		"phone":     customer.Phone,
	})
	token := uuid.NewString()

	var (
		fields   json.RawMessage
		uploaded []domain.UploadedFile
	)
	if v.CustomFields {
		var eventID int64
		if req.Type == domain.EntityEvent {
			eventID = req.EventID
		}
		if fields, uploaded, err = s.customFields(ctx, db, token, eventID, req.Booking.CustomFields); err != nil {
			return nil, err
		}
	} else if len(req.Booking.CustomFields) > 0 {
		fields, _ = json.Marshal(req.Booking.CustomFields)
	}

	var (
		coupon     *domain.Coupon
		couponUses = 1 + len(req.Recurring)
	)
	if req.CouponCode != "" {
		entityID := lo.Ternary(req.Type == domain.EntityEvent, req.EventID, req.ServiceID)
		coupon, err = couponFor(ctx, db, req.CouponCode, req.Type, entityID, customer.ID, v.Coupon, s.now())
		if err == nil && v.Coupon && len(req.Recurring) > 0 {
			couponUses, err = allowedCouponUses(ctx, db, coupon, customer.ID)
		}
		if err != nil {
			s.discard(ctx, uploaded)
			return nil, err
		}
	}

	newBooking := func(withCoupon bool) *domain.CustomerBooking {
		b := &domain.CustomerBooking{
			CustomerID:   customer.ID,
			Customer:     customer,
			Persons:      req.Booking.Persons,
			CustomFields: fields,
			Info:         info,
			UTCOffset:    req.Booking.UTCOffset,
			Token:        token,
			Created:      s.now().UTC(),
		}
		if withCoupon && coupon != nil {
			b.Coupon = coupon
			b.CouponID = lo.ToPtr(coupon.ID)
		}
		return b
	}

	cache := s.slots.NewCache()
	res, err := bk.Book(ctx, db, bookInput{
		Request:    req,
		ProviderID: req.ProviderID,
		LocationID: req.LocationID,
		Start:      req.BookingStart,
		Booking:    newBooking(true),
		CheckSlot:  v.TimeSlot,
		Save:       save,
		Cache:      cache,
	})
	if err != nil {
		s.discard(ctx, uploaded)
		return nil, err
	}
	res.Customer = customer
	res.IsNewUser = created
	res.UploadedFiles = uploaded

	// Recurring appointments hang off the main one and use the coupon while
	// its limits allow.
	var parentID *int64
	if parent, ok := res.Appointment(); ok {
		parentID = lo.ToPtr(parent.ID)
	}
	for i, item := range req.Recurring {
		b := newBooking(i+2 <= couponUses)
		b.Token = uuid.NewString()
		r, err := bk.Book(ctx, db, bookInput{
			Request:    req,
			ProviderID: item.ProviderID,
			LocationID: item.LocationID,
			Start:      item.BookingStart,
			ParentID:   parentID,
			Booking:    b,
			CheckSlot:  v.TimeSlot,
			Save:       save,
			Cache:      cache,
		})
		if err != nil {
			s.discard(ctx, uploaded)
			return nil, err
		}
		r.Customer = customer
		res.Recurring = append(res.Recurring, r)
	}
	return res, nil
}

// ---------------------------------------------------------------------------
// Finalize
// ---------------------------------------------------------------------------

// Finalize builds the result data of a successful reservation.
func (s *reservationService) Finalize(res *domain.Reservation) map[string]any {
	data := resultData(res)
	recurring := make([]map[string]any, 0, len(res.Recurring))
	for _, r := range res.Recurring {
		recurring = append(recurring, resultData(r))
	}
	data["recurring"] = recurring
	if len(res.UploadedFiles) > 0 {
		data["uploadedFiles"] = res.UploadedFiles
	}
	return data
}

func resultData(res *domain.Reservation) map[string]any {
	kind := res.Reservation.Kind()
	return map[string]any{
		"type":                     kind,
		string(kind):               withOnlyBooking(res.Reservation, res.Booking),
		"booking":                  res.Booking,
		"utcTime":                  utcTimes(res.Reservation),
		"appointmentStatusChanged": res.IsStatusChanged,
	}
}

// withOnlyBooking copies the reservation keeping only one booking, so other
// customers' bookings never reach the result.
func withOnlyBooking(r domain.Reservable, b *domain.CustomerBooking) domain.Reservable {
	switch v := r.(type) {
	case *domain.Appointment:
		c := *v
		c.Bookings = []*domain.CustomerBooking{b}
		return &c
	case *domain.Event:
		c := *v
		c.Bookings = []*domain.CustomerBooking{b}
		return &c
	}
	return r
}

type utcPeriod struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func utcTimes(r domain.Reservable) []utcPeriod {
	return lo.Map(r.Intervals(), func(i domain.TimeInterval, _ int) utcPeriod {
		return utcPeriod{
			Start: i.Start.UTC().Format(time.DateTime),
			End:   i.End.UTC().Format(time.DateTime),
		}
	})
}

// ---------------------------------------------------------------------------
// Cancel
// ---------------------------------------------------------------------------

func (s *reservationService) CancelBooking(ctx context.Context, req CancelRequest) (*domain.Reservation, error) {
	set, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	var res *domain.Reservation
	err = repo.WithTx(ctx, s.db, func(ctx context.Context, tx *repo.Tx) error {
		db := tx.Client
		b, err := db.Booking.Get(ctx, req.BookingID)
		if err != nil {
			return err
		}
		if !req.owns(b) {
			return ErrAccessDenied
		}

		res = &domain.Reservation{Booking: b}
		var minSeconds int
		switch {
		case b.AppointmentID != nil:
			appt, err := db.Appointment.Get(ctx, *b.AppointmentID)
			if err != nil {
				return err
			}
			svc, err := db.Service.Get(ctx, appt.ServiceID)
			if err != nil {
				return err
			}
			res.Reservation, res.Bookable = appt, svc
			minSeconds = lo.CoalesceOrEmpty(svc.Settings.MinimumTimeBeforeCanceling, set.General.MinimumTimeBeforeCanceling)
		case b.EventID != nil:
			e, err := db.Event.Get(ctx, *b.EventID)
			if err != nil {
				return err
			}
			res.Reservation, res.Bookable = e, e
			minSeconds = lo.CoalesceOrEmpty(e.Settings.MinimumTimeBeforeCanceling, set.General.MinimumTimeBeforeCanceling)
		default:
			return fmt.Errorf("%w: booking %d has no reservation", domain.ErrInvalidArgument, b.ID)
		}

		if !req.Privileged {
			if err := s.InspectMinimumCancellationTime(res.Reservation.Start(), minSeconds); err != nil {
				return err
			}
		}
		if err := db.Booking.UpdateStatus(ctx, b.ID, domain.StatusCanceled); err != nil {
			return err
		}
		b.Status = domain.StatusCanceled
		b.ChangedStatus = true

		appt, ok := res.Appointment()
		if !ok {
			return nil
		}
		for i, ab := range appt.Bookings {
			if ab.ID == b.ID {
				appt.Bookings[i] = b
			}
		}
		svc := res.Bookable.(*domain.Service)
		defaultStatus := lo.CoalesceOrEmpty(set.General.DefaultAppointmentStatus, domain.StatusApproved)
		status := domain.StatusFromBookings(appt.Bookings, svc.MinCapacity, defaultStatus)
		if status == appt.Status {
			return nil
		}
		if err := db.Appointment.UpdateStatus(ctx, appt.ID, status); err != nil {
			return err
		}
		appt.Status = status
		res.IsStatusChanged = true
		return nil
	})
	if err != nil {
		return nil, classify(fmt.Errorf("cancel booking %d: %w", req.BookingID, err))
	}
	slog.Info("booking canceled", "booking_id", req.BookingID, "status_changed", res.IsStatusChanged)
	return res, nil
}
