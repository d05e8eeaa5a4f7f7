package email

import (
	"time"

	ics "github.com/arran4/golang-ical"
)

const icsProductID = "-//simorq//booking//EN"

// invite renders a single-event iCalendar file. Times are written in UTC so
// the file needs no VTIMEZONE block.
func invite(uid, summary, description string, start, end, stamp time.Time, cancel bool) []byte {
	cal := ics.NewCalendar()
	cal.SetProductId(icsProductID)
	method, status := ics.MethodRequest, ics.ObjectStatusConfirmed
	if cancel {
		method, status = ics.MethodCancel, ics.ObjectStatusCancelled
	}
	cal.SetMethod(method)

	ev := cal.AddEvent(uid)
	ev.SetDtStampTime(stamp)
	ev.SetStartAt(start)
	ev.SetEndAt(end)
	ev.SetSummary(summary)
	if description != "" {
		ev.SetDescription(description)
	}
	ev.SetStatus(status)
	return []byte(cal.Serialize())
}
