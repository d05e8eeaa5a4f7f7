package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/settings"
)

type Action string

const (
	BookingAdded         Action = "bookingAdded"
	BookingCanceled      Action = "bookingCanceled"
	BookingRescheduled   Action = "bookingRescheduled"
	BookingStatusUpdated Action = "bookingStatusUpdated"
)

const defaultTimeout = 10 * time.Second

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

// Dispatcher posts booking changes to the hooks registered in settings.
// Delivery is best effort: failures are logged and never retried.
type Dispatcher interface {
	Dispatch(ctx context.Context, action Action, res domain.Reservable, bookings []*domain.CustomerBooking)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type dispatcher struct {
	store  settings.Store
	client *http.Client
}

type Option func(*dispatcher)

func WithHTTPClient(c *http.Client) Option {
	return func(d *dispatcher) { d.client = c }
}

func New(store settings.Store, opts ...Option) Dispatcher {
	d := &dispatcher{
		store: store,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   defaultTimeout,
		},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *dispatcher) Dispatch(ctx context.Context, action Action, res domain.Reservable, bookings []*domain.CustomerBooking) {
	set, err := d.store.Load(ctx)
	if err != nil {
		slog.Warn("webhook: load settings failed", "err", err)
		return
	}
	hooks := set.HooksFor(res.Kind(), string(action))
	if len(hooks) == 0 {
		return
	}

	body, err := json.Marshal(map[string]any{
		string(res.Kind()): res,
		"bookings":         bookings,
	})
	if err != nil {
		slog.Warn("webhook: encode payload failed", "action", action, "err", err)
		return
	}

	for _, h := range hooks {
		if err := d.post(ctx, h.URL, body); err != nil {
			slog.Warn("webhook: delivery failed", "name", h.Name, "action", action, "err", err)
		}
	}
}

func (d *dispatcher) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
