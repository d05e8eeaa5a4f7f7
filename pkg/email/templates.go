package email

import (
	"fmt"
	"html"
	"time"
)

// Template names a booking email.
type Template string

const (
	TemplateBookingAdded         Template = "bookingAdded"
	TemplateBookingCanceled      Template = "bookingCanceled"
	TemplateBookingRescheduled   Template = "bookingRescheduled"
	TemplateBookingStatusUpdated Template = "bookingStatusUpdated"
	TemplateReminder             Template = "nextDayReminder"
)

// BookingEmailData contains what every booking email shows.
type BookingEmailData struct {
	To           string
	CustomerName string
	EntityName   string
	ProviderName string
	Status       string
	Start        time.Time
	// End and UID attach a calendar invite to the added, rescheduled and
	// canceled templates when both are set.
	End      time.Time
	UID      string
	Location *time.Location
	AppName  string
	// Stamp is the invite's DTSTAMP; zero means time.Now.
	Stamp time.Time
}

type templateText struct {
	subject string
	lead    string
	invite  bool
}

var templates = map[Template]templateText{
	TemplateBookingAdded:         {subject: "Your booking for %s", lead: "Thanks for booking %s.", invite: true},
	TemplateBookingCanceled:      {subject: "Booking canceled: %s", lead: "Your booking for %s was canceled.", invite: true},
	TemplateBookingRescheduled:   {subject: "Booking rescheduled: %s", lead: "Your booking for %s has a new time.", invite: true},
	TemplateBookingStatusUpdated: {subject: "Booking update: %s", lead: "The status of your booking for %s changed."},
	TemplateReminder:             {subject: "Reminder: %s is coming up", lead: "This is a reminder of your booking for %s."},
}

// BuildBookingEmail renders one of the booking templates.
func BuildBookingEmail(tpl Template, data BookingEmailData) (Message, error) {
	text, ok := templates[tpl]
	if !ok {
		return Message{}, fmt.Errorf("%w: unknown template %q", ErrInvalidMessage, tpl)
	}

	appName := data.AppName
	if appName == "" {
		appName = defaultAppName
	}
	name := data.CustomerName
	if name == "" {
		name = "there"
	}
	loc := data.Location
	if loc == nil {
		loc = time.UTC
	}
	when := data.Start.In(loc).Format("Monday, 2 January 2006 at 15:04 MST")

	details := fmt.Sprintf("When: %s", when)
	if data.ProviderName != "" {
		details += fmt.Sprintf("\nWith: %s", data.ProviderName)
	}
	if data.Status != "" {
		details += fmt.Sprintf("\nStatus: %s", data.Status)
	}

	lead := fmt.Sprintf(text.lead, data.EntityName)
	textBody := fmt.Sprintf(`Hi %s,

%s

%s

Thanks,
The %s Team`, name, lead, details, appName)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #2563eb;">Hi %s,</h2>
    <p>%s</p>
    <pre style="font-family: inherit; background: #f3f4f6; padding: 12px; border-radius: 6px;">%s</pre>
    <p>Thanks,<br>The %s Team</p>
</body>
</html>`, html.EscapeString(name), html.EscapeString(lead), html.EscapeString(details), html.EscapeString(appName))

	msg := Message{
		To:       []string{data.To},
		Subject:  fmt.Sprintf(text.subject, data.EntityName),
		TextBody: textBody,
		HTMLBody: htmlBody,
	}
	if text.invite && data.UID != "" && data.End.After(data.Start) {
		stamp := data.Stamp
		if stamp.IsZero() {
			stamp = time.Now()
		}
		msg.Attachments = append(msg.Attachments, Attachment{
			Name:        "invite.ics",
			ContentType: "text/calendar; charset=UTF-8",
			Data: invite(data.UID, data.EntityName, data.ProviderName,
				data.Start, data.End, stamp, tpl == TemplateBookingCanceled),
		})
	}
	return msg, nil
}
