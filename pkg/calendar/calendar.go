// Package calendar reads provider busy periods from Google Calendar and
// Outlook. Results are cached in Redis for a short while so a burst of slot
// queries does not hammer the remote APIs.
package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/Alijeyrad/simorq_booking/config"
	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/pkg/crypto"
)

const (
	cacheKeyPrefix = "calendar:busy:"
	graphBaseURL   = "https://graph.microsoft.com/v1.0"
)

var ErrUnsupportedKind = errors.New("unsupported calendar kind")

// Config holds the OAuth clients and cache settings.
type Config struct {
	Google  OAuthClient
	Outlook OAuthClient

	// Tokens opens the stored provider tokens. Nil means they are kept
	// in plain text.
	Tokens *crypto.Box

	BusyCacheTTL time.Duration
	Timeout      time.Duration
}

type OAuthClient struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Tenant       string
}

func DefaultConfig() Config {
	return Config{
		BusyCacheTTL: 5 * time.Minute,
		Timeout:      10 * time.Second,
	}
}

// FromCentralConfig converts config.CalendarConfig. keyHex is the shared
// token encryption key.
func FromCentralConfig(c config.CalendarConfig, keyHex string) (Config, error) {
	cfg := DefaultConfig()
	cfg.Google = OAuthClient(c.Google)
	cfg.Outlook = OAuthClient(c.Outlook)
	if c.BusyCacheSeconds > 0 {
		cfg.BusyCacheTTL = time.Duration(c.BusyCacheSeconds) * time.Second
	}
	if c.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(c.TimeoutSeconds) * time.Second
	}
	if (cfg.Google.Enabled || cfg.Outlook.Enabled) && keyHex != "" {
		box, err := crypto.NewBoxFromHex(keyHex)
		if err != nil {
			return Config{}, fmt.Errorf("calendar encryption key: %w", err)
		}
		cfg.Tokens = box
	}
	return cfg, nil
}

// busyEvent is one blocking entry of a remote calendar.
type busyEvent struct {
	ID    string    `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type fetcher interface {
	fetch(ctx context.Context, client *http.Client, calendarID string, window domain.TimeInterval) ([]busyEvent, error)
}

// Source implements the availability calendar collaborator.
type Source struct {
	cfg      Config
	rdb      *goredis.Client
	base     *http.Client
	oauth    map[domain.CalendarKind]*oauth2.Config
	fetchers map[domain.CalendarKind]fetcher
}

type Option func(*Source)

// WithGraphURL points the Outlook fetcher at another Graph endpoint.
func WithGraphURL(url string) Option {
	return func(s *Source) { s.fetchers[domain.CalendarOutlook] = outlookFetcher{baseURL: url} }
}

// New builds a Source. rdb may be nil, which disables caching.
func New(cfg Config, rdb *goredis.Client, opts ...Option) *Source {
	s := &Source{
		cfg: cfg,
		rdb: rdb,
		base: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		},
		oauth: map[domain.CalendarKind]*oauth2.Config{},
		fetchers: map[domain.CalendarKind]fetcher{
			domain.CalendarGoogle:  googleFetcher{},
			domain.CalendarOutlook: outlookFetcher{baseURL: graphBaseURL},
		},
	}
	if cfg.Google.Enabled {
		s.oauth[domain.CalendarGoogle] = &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			Scopes:       []string{gcal.CalendarReadonlyScope},
			Endpoint:     google.Endpoint,
		}
	}
	if cfg.Outlook.Enabled {
		s.oauth[domain.CalendarOutlook] = &oauth2.Config{
			ClientID:     cfg.Outlook.ClientID,
			ClientSecret: cfg.Outlook.ClientSecret,
			RedirectURL:  cfg.Outlook.RedirectURL,
			Scopes:       []string{"offline_access", "Calendars.Read"},
			Endpoint:     microsoft.AzureADEndpoint(cfg.Outlook.Tenant),
		}
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// BusyPeriods merges the busy time of every linked calendar of the provider
// inside window. Events named in excludeEventIDs are ignored. A calendar
// that fails is logged and skipped.
func (s *Source) BusyPeriods(ctx context.Context, provider *domain.Provider, window domain.TimeInterval, excludeEventIDs []string) ([]domain.TimeInterval, error) {
	links := make([]*domain.CalendarLink, 0, len(provider.Calendars))
	for _, l := range provider.Calendars {
		if _, ok := s.oauth[l.Kind]; ok {
			links = append(links, l)
		}
	}
	if len(links) == 0 {
		return nil, nil
	}

	excluded := make(map[string]struct{}, len(excludeEventIDs))
	for _, id := range excludeEventIDs {
		excluded[id] = struct{}{}
	}

	p := pool.NewWithResults[[]busyEvent]().WithContext(ctx)
	for _, link := range links {
		p.Go(func(ctx context.Context) ([]busyEvent, error) {
			events, err := s.events(ctx, link, window)
			if err != nil {
				slog.Warn("calendar: fetch busy periods failed",
					"provider_id", provider.ID, "kind", link.Kind, "err", err)
				return nil, nil
			}
			return events, nil
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	var out []domain.TimeInterval
	for _, events := range results {
		for _, e := range events {
			if _, skip := excluded[e.ID]; skip || !e.Start.Before(e.End) {
				continue
			}
			out = append(out, domain.TimeInterval{Start: e.Start, End: e.End})
		}
	}
	domain.SortIntervals(out)
	return out, nil
}

func (s *Source) events(ctx context.Context, link *domain.CalendarLink, window domain.TimeInterval) ([]busyEvent, error) {
	key := fmt.Sprintf("%s%d:%d:%d", cacheKeyPrefix, link.ID, window.Start.Unix(), window.End.Unix())
	if cached, ok := s.cached(ctx, key); ok {
		return cached, nil
	}

	f, ok := s.fetchers[link.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, link.Kind)
	}
	client, err := s.client(ctx, link)
	if err != nil {
		return nil, err
	}
	calendarID := link.CalendarID
	if calendarID == "" && link.Kind == domain.CalendarGoogle {
		calendarID = "primary"
	}
	events, err := f.fetch(ctx, client, calendarID, window)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, events)
	return events, nil
}

// client decrypts the link token and returns an HTTP client that refreshes
// it as needed.
func (s *Source) client(ctx context.Context, link *domain.CalendarLink) (*http.Client, error) {
	raw := []byte(link.Token)
	if s.cfg.Tokens != nil {
		var err error
		if raw, err = s.cfg.Tokens.Open(link.Token, string(link.Kind)); err != nil {
			return nil, fmt.Errorf("decrypt calendar token: %w", err)
		}
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("decode calendar token: %w", err)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.base)
	return s.oauth[link.Kind].Client(ctx, &tok), nil
}

func (s *Source) cached(ctx context.Context, key string) ([]busyEvent, bool) {
	if s.rdb == nil {
		return nil, false
	}
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			slog.Debug("calendar: cache read failed", "key", key, "err", err)
		}
		return nil, false
	}
	var events []busyEvent
	if err := json.Unmarshal(b, &events); err != nil {
		return nil, false
	}
	return events, true
}

func (s *Source) store(ctx context.Context, key string, events []busyEvent) {
	if s.rdb == nil || s.cfg.BusyCacheTTL <= 0 {
		return
	}
	b, _ := json.Marshal(events)
	if err := s.rdb.Set(ctx, key, b, s.cfg.BusyCacheTTL).Err(); err != nil {
		slog.Debug("calendar: cache write failed", "key", key, "err", err)
	}
}
