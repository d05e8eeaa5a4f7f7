package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
)

// graphTimeLayout is the layout of Graph dateTimeTimeZone values.
const graphTimeLayout = "2006-01-02T15:04:05.9999999"

type outlookFetcher struct {
	baseURL string
}

type graphEvent struct {
	ID     string        `json:"id"`
	ShowAs string        `json:"showAs"`
	Start  graphDateTime `json:"start"`
	End    graphDateTime `json:"end"`
	Cancel bool          `json:"isCancelled"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphPage struct {
	Value    []graphEvent `json:"value"`
	NextLink string       `json:"@odata.nextLink"`
}

func (f outlookFetcher) fetch(ctx context.Context, client *http.Client, calendarID string, window domain.TimeInterval) ([]busyEvent, error) {
	path := "/me/calendarView"
	if calendarID != "" {
		path = "/me/calendars/" + url.PathEscape(calendarID) + "/calendarView"
	}
	q := url.Values{}
	q.Set("startDateTime", window.Start.UTC().Format(time.RFC3339))
	q.Set("endDateTime", window.End.UTC().Format(time.RFC3339))
	q.Set("$select", "id,showAs,start,end,isCancelled")
	next := f.baseURL + path + "?" + q.Encode()

	var out []busyEvent
	for next != "" {
		page, err := getGraphPage(ctx, client, next)
		if err != nil {
			return nil, err
		}
		for _, e := range page.Value {
			if e.Cancel || e.ShowAs == "free" {
				continue
			}
			start, err := graphTime(e.Start)
			if err != nil {
				return nil, err
			}
			end, err := graphTime(e.End)
			if err != nil {
				return nil, err
			}
			out = append(out, busyEvent{ID: e.ID, Start: start, End: end})
		}
		next = page.NextLink
	}
	return out, nil
}

func getGraphPage(ctx context.Context, client *http.Client, u string) (*graphPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("graph calendarView: status %d: %s", resp.StatusCode, body)
	}
	var page graphPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode graph calendarView: %w", err)
	}
	return &page, nil
}

func graphTime(v graphDateTime) (time.Time, error) {
	loc := time.UTC
	if v.TimeZone != "" && v.TimeZone != "UTC" {
		l, err := time.LoadLocation(v.TimeZone)
		if err != nil {
			return time.Time{}, fmt.Errorf("graph time zone %q: %w", v.TimeZone, err)
		}
		loc = l
	}
	t, err := time.ParseInLocation(graphTimeLayout, v.DateTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("graph time %q: %w", v.DateTime, err)
	}
	return t.UTC(), nil
}
