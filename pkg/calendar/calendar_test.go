package calendar

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/Alijeyrad/simorq_booking/config"
	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/pkg/crypto"
)

var window = domain.TimeInterval{
	Start: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
}

func sealedToken(t *testing.T, box *crypto.Box, kind domain.CalendarKind) string {
	t.Helper()
	raw, _ := json.Marshal(&oauth2.Token{
		AccessToken: "access",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	})
	enc, err := box.Seal(raw, string(kind))
	if err != nil {
		t.Fatalf("encrypt token: %v", err)
	}
	return enc
}

func graphServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer access" {
			t.Errorf("Authorization = %q", got)
		}
		if !strings.HasSuffix(r.URL.Path, "/me/calendarView") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("page") == "" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"value": []map[string]any{
					{"id": "a", "showAs": "busy", "start": map[string]string{"dateTime": "2024-01-10T09:00:00.0000000", "timeZone": "UTC"}, "end": map[string]string{"dateTime": "2024-01-10T10:00:00.0000000", "timeZone": "UTC"}},
					{"id": "free", "showAs": "free", "start": map[string]string{"dateTime": "2024-01-10T11:00:00.0000000", "timeZone": "UTC"}, "end": map[string]string{"dateTime": "2024-01-10T12:00:00.0000000", "timeZone": "UTC"}},
				},
				"@odata.nextLink": "http://" + r.Host + r.URL.Path + "?page=2",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{
				{"id": "b", "showAs": "tentative", "start": map[string]string{"dateTime": "2024-01-10T07:00:00", "timeZone": "UTC"}, "end": map[string]string{"dateTime": "2024-01-10T08:00:00", "timeZone": "UTC"}},
				{"id": "skip-me", "showAs": "busy", "start": map[string]string{"dateTime": "2024-01-10T14:00:00", "timeZone": "UTC"}, "end": map[string]string{"dateTime": "2024-01-10T15:00:00", "timeZone": "UTC"}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBusyPeriodsFromOutlook(t *testing.T) {
	box, _ := crypto.NewBox(make([]byte, 32))
	srv := graphServer(t)

	cfg := DefaultConfig()
	cfg.Outlook = OAuthClient{Enabled: true, ClientID: "id", Tenant: "common"}
	cfg.Tokens = box
	src := New(cfg, nil, WithGraphURL(srv.URL))

	provider := &domain.Provider{ID: 3, Calendars: []*domain.CalendarLink{
		{ID: 1, ProviderID: 3, Kind: domain.CalendarOutlook, Token: sealedToken(t, box, domain.CalendarOutlook)},
		// Google is not configured, so this link is ignored.
		{ID: 2, ProviderID: 3, Kind: domain.CalendarGoogle, Token: "unused"},
	}}

	busy, err := src.BusyPeriods(context.Background(), provider, window, []string{"skip-me"})
	if err != nil {
		t.Fatalf("BusyPeriods: %v", err)
	}
	want := []domain.TimeInterval{
		{Start: window.Start.Add(7 * time.Hour), End: window.Start.Add(8 * time.Hour)},
		{Start: window.Start.Add(9 * time.Hour), End: window.Start.Add(10 * time.Hour)},
	}
	if len(busy) != len(want) {
		t.Fatalf("busy = %v, want %v", busy, want)
	}
	for i := range want {
		if !busy[i].Start.Equal(want[i].Start) || !busy[i].End.Equal(want[i].End) {
			t.Errorf("busy[%d] = %v, want %v", i, busy[i], want[i])
		}
	}
}

func TestBusyPeriodsSkipsBrokenCalendars(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Outlook = OAuthClient{Enabled: true}
	cfg.Tokens, _ = crypto.NewBox(make([]byte, 32))
	src := New(cfg, nil, WithGraphURL("http://127.0.0.1:0"))

	provider := &domain.Provider{ID: 3, Calendars: []*domain.CalendarLink{
		{ID: 1, Kind: domain.CalendarOutlook, Token: "not encrypted"},
	}}
	busy, err := src.BusyPeriods(context.Background(), provider, window, nil)
	if err != nil || len(busy) != 0 {
		t.Errorf("busy = %v, err = %v", busy, err)
	}
}

func TestFromCentralConfigRejectsBadKey(t *testing.T) {
	cfg := DefaultConfig()
	_, err := FromCentralConfig(centralConfig(true), "abcd")
	if err == nil {
		t.Error("short key accepted")
	}

	got, err := FromCentralConfig(centralConfig(true), hex.EncodeToString(make([]byte, 32)))
	if err != nil {
		t.Fatalf("FromCentralConfig: %v", err)
	}
	if got.Tokens == nil || got.BusyCacheTTL != cfg.BusyCacheTTL {
		t.Errorf("config = %+v", got)
	}
}

func TestGraphTime(t *testing.T) {
	tests := []struct {
		in      graphDateTime
		want    time.Time
		wantErr bool
	}{
		{in: graphDateTime{DateTime: "2024-01-10T09:30:00.0000000", TimeZone: "UTC"}, want: time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)},
		{in: graphDateTime{DateTime: "2024-01-10T09:30:00", TimeZone: "Asia/Tehran"}, want: time.Date(2024, 1, 10, 6, 0, 0, 0, time.UTC)},
		{in: graphDateTime{DateTime: "yesterday"}, wantErr: true},
	}
	for _, tc := range tests {
		got, err := graphTime(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("graphTime(%+v) err = %v", tc.in, err)
			continue
		}
		if !tc.wantErr && !got.Equal(tc.want) {
			t.Errorf("graphTime(%+v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func centralConfig(outlook bool) config.CalendarConfig {
	return config.CalendarConfig{
		Outlook: config.OAuthClientConfig{Enabled: outlook, ClientID: "id", Tenant: "common"},
	}
}
