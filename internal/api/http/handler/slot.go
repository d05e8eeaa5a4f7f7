package handler

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_booking/internal/command"
	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/service/availability"
	"github.com/Alijeyrad/simorq_booking/internal/settings"
)

type SlotHandler struct {
	cmd      command.Handler
	settings settings.Store
}

func NewSlotHandler(cmd command.Handler, store settings.Store) *SlotHandler {
	return &SlotHandler{cmd: cmd, settings: store}
}

// GET /api/v1/slots
func (h *SlotHandler) List(c fiber.Ctx) error {
	var q struct {
		ServiceID            int64  `query:"serviceId"`
		LocationID           int64  `query:"locationId"`
		Start                string `query:"start"`
		End                  string `query:"end"`
		ProviderIDs          string `query:"providerIds"`
		Persons              int    `query:"persons"`
		ExcludeAppointmentID int64  `query:"excludeAppointmentId"`
		Extras               string `query:"extras"`
	}
	if err := c.Bind().Query(&q); err != nil || q.ServiceID == 0 {
		return badRequest(c, "serviceId is required")
	}

	s, err := h.settings.Load(c.Context())
	if err != nil {
		return commandError(c, err)
	}
	start, err := parseDay(q.Start, s.Location, false)
	if err != nil {
		return badRequest(c, "invalid start")
	}
	end, err := parseDay(q.End, s.Location, true)
	if err != nil || !end.After(start) {
		return badRequest(c, "invalid end")
	}
	providers, err := parseIDs(q.ProviderIDs)
	if err != nil {
		return badRequest(c, "invalid providerIds")
	}

	req := availability.FreeSlotsRequest{
		ServiceID:   q.ServiceID,
		Start:       start,
		End:         end,
		ProviderIDs: providers,
		Persons:     max(q.Persons, 1),
		FrontEnd:    true,
	}
	if q.LocationID != 0 {
		req.LocationID = &q.LocationID
	}
	if q.ExcludeAppointmentID != 0 {
		req.ExcludeAppointmentID = &q.ExcludeAppointmentID
	}
	if q.Extras != "" {
		var extras []domain.SelectedExtra
		if err := json.Unmarshal([]byte(q.Extras), &extras); err != nil {
			return badRequest(c, "invalid extras")
		}
		req.Extras = extras
	}

	res, err := h.cmd.GetTimeSlots(c.Context(), req)
	if err != nil {
		return commandError(c, err)
	}
	return result(c, res, fiber.StatusOK)
}

// parseDay accepts RFC 3339 or a bare date in loc. A bare end date covers
// the whole day.
func parseDay(s string, loc *time.Location, end bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, err
	}
	if end {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

func parseIDs(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
