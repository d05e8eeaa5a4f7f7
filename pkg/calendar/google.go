package calendar

import (
	"context"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
)

type googleFetcher struct{}

func (googleFetcher) fetch(ctx context.Context, client *http.Client, calendarID string, window domain.TimeInterval) ([]busyEvent, error) {
	srv, err := gcal.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, err
	}

	var out []busyEvent
	call := srv.Events.List(calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(window.Start.Format(time.RFC3339)).
		TimeMax(window.End.Format(time.RFC3339)).
		MaxResults(250)

	err = call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			// Transparent events are shown as free.
			if item.Status == "cancelled" || item.Transparency == "transparent" {
				continue
			}
			start, ok := googleTime(item.Start)
			if !ok {
				continue
			}
			end, ok := googleTime(item.End)
			if !ok {
				continue
			}
			out = append(out, busyEvent{ID: item.Id, Start: start, End: end})
		}
		return nil
	})
	return out, err
}

// googleTime reads a timed or all-day boundary.
func googleTime(t *gcal.EventDateTime) (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	if t.DateTime != "" {
		v, err := time.Parse(time.RFC3339, t.DateTime)
		return v.UTC(), err == nil
	}
	if t.Date != "" {
		v, err := time.Parse(time.DateOnly, t.Date)
		return v, err == nil
	}
	return time.Time{}, false
}
