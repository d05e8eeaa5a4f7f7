package sms

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/arsmn/go-smsir/smsir"
	"github.com/nyaruka/phonenumbers"

	"github.com/Alijeyrad/simorq_booking/config"
)

// Client provides SMS sending functionality via sms.ir.
type Client struct {
	client     *smsir.Client
	enabled    bool
	templateID string
}

// NewFromConfig creates a new SMS client from the application configuration.
// If SMS is disabled, returns a client that no-ops on all operations.
func NewFromConfig(cfg config.SMSConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{enabled: false}, nil
	}

	if cfg.SMSIR.APIKey == "" {
		return nil, fmt.Errorf("sms.ir API key required when SMS enabled")
	}

	client := smsir.NewClient().WithAuthentication(cfg.SMSIR.APIKey, cfg.SMSIR.SecretKey)

	return &Client{
		client:     client,
		enabled:    true,
		templateID: cfg.SMSIR.TemplateID,
	}, nil
}

// SendTemplate sends an sms.ir ultra-fast template message. An empty
// templateID falls back to the configured default. If SMS is disabled,
// this is a no-op and returns nil.
//
// Every key in params must exist as a parameter of the template.
func (c *Client) SendTemplate(ctx context.Context, phoneNumber, templateID string, params map[string]string) error {
	if !c.enabled {
		return nil
	}

	if templateID == "" {
		templateID = c.templateID
	}
	if templateID == "" {
		return fmt.Errorf("template ID is required")
	}
	mobile, err := nationalMobile(phoneNumber)
	if err != nil {
		return err
	}

	req := &smsir.UltraFastSendRequest{
		Mobile:     mobile,
		TemplateID: templateID,
		Parameters: templateParameters(params),
	}

	if _, err := c.client.Verification.UltraFastSend(ctx, req); err != nil {
		return fmt.Errorf("sms.ir send failed: %w", err)
	}

	return nil
}

// templateParameters orders params by key so requests are stable.
func templateParameters(params map[string]string) []smsir.UltraFastParameter {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]smsir.UltraFastParameter, 0, len(keys))
	for _, k := range keys {
		out = append(out, smsir.UltraFastParameter{Key: k, Value: params[k]})
	}
	return out
}

// nationalMobile turns a stored phone number into the 09xxxxxxxxx form
// sms.ir expects. Numbers outside Iran are rejected.
func nationalMobile(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", fmt.Errorf("phone number is required")
	}
	num, err := phonenumbers.Parse(phone, "IR")
	if err != nil {
		return "", fmt.Errorf("phone %q: %w", phone, err)
	}
	if num.GetCountryCode() != 98 {
		return "", fmt.Errorf("phone %q: sms.ir only delivers to Iranian numbers", phone)
	}
	national := phonenumbers.Format(num, phonenumbers.NATIONAL)
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, national), nil
}

// IsEnabled returns whether SMS sending is enabled.
func (c *Client) IsEnabled() bool {
	return c.enabled
}
