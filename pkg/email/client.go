package email

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/Alijeyrad/simorq_booking/config"
)

const defaultAppName = "Booking"

type Message struct {
	To          []string
	CC          []string
	BCC         []string
	ReplyTo     string
	Subject     string
	TextBody    string
	HTMLBody    string
	Headers     map[string]string
	Attachments []Attachment
}

// Attachment is an in-memory file, e.g. a calendar invite.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type Client struct {
	cfg Config
}

func NewFromCentral(cfg config.EmailConfig) (*Client, error) {
	return New(FromCentralConfig(cfg))
}

func New(cfg Config) (*Client, error) {
	if cfg.Enabled && (cfg.Host == "" || strings.TrimSpace(cfg.From) == "") {
		return nil, fmt.Errorf("email: host and from are required when enabled")
	}
	return &Client{cfg: cfg}, nil
}

// AppName is the name booking templates are signed with.
func (c *Client) AppName() string { return c.cfg.AppName }

// Send delivers m over SMTP. The dial honours the earlier of ctx's deadline
// and the configured timeout; a send that outlives it is abandoned.
func (c *Client) Send(ctx context.Context, m Message) error {
	if !c.cfg.Enabled {
		return ErrDisabled
	}
	if m.ReplyTo == "" {
		m.ReplyTo = c.cfg.ReplyTo
	}
	msg, err := buildMessage(c.cfg.From, m)
	if err != nil {
		return err
	}

	d := gomail.NewDialer(c.cfg.Host, c.cfg.Port, c.cfg.Username, c.cfg.Password)
	d.SSL = c.cfg.SSL

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSend, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrSend, ctx.Err())
	}
}

func buildMessage(from string, m Message) (*gomail.Message, error) {
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, fmt.Errorf("%w: no sender", ErrInvalidMessage)
	}
	to := cleanAddrs(m.To)
	if len(to) == 0 && len(m.CC) == 0 && len(m.BCC) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrInvalidMessage)
	}
	subj := strings.TrimSpace(m.Subject)
	if subj == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidMessage)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("Subject", subj)
	for header, addrs := range map[string][]string{"To": to, "Cc": cleanAddrs(m.CC), "Bcc": cleanAddrs(m.BCC)} {
		if len(addrs) > 0 {
			msg.SetHeader(header, addrs...)
		}
	}
	if r := strings.TrimSpace(m.ReplyTo); r != "" {
		msg.SetHeader("Reply-To", r)
	}
	for k, v := range m.Headers {
		if k, v = strings.TrimSpace(k), strings.TrimSpace(v); k != "" && v != "" {
			msg.SetHeader(k, v)
		}
	}

	text, htmlBody := strings.TrimSpace(m.TextBody) != "", strings.TrimSpace(m.HTMLBody) != ""
	switch {
	case text && htmlBody:
		msg.SetBody("text/plain", m.TextBody)
		msg.AddAlternative("text/html", m.HTMLBody)
	case htmlBody:
		msg.SetBody("text/html", m.HTMLBody)
	case text:
		msg.SetBody("text/plain", m.TextBody)
	default:
		return nil, fmt.Errorf("%w: no body", ErrInvalidMessage)
	}

	for _, a := range m.Attachments {
		data := a.Data
		msg.Attach(a.Name,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}),
		)
	}
	return msg, nil
}

func cleanAddrs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
