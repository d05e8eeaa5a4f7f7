package email

import (
	"time"

	"github.com/Alijeyrad/simorq_booking/config"
)

type Config struct {
	Enabled bool
	From    string
	ReplyTo string
	AppName string

	Host     string
	Port     int
	Username string
	Password string
	// SSL dials implicit TLS (port 465). Otherwise gomail upgrades with
	// STARTTLS when the server offers it.
	SSL     bool
	Timeout time.Duration
}

func FromCentralConfig(c config.EmailConfig) Config {
	cfg := Config{
		Enabled:  c.Enabled,
		From:     c.From,
		ReplyTo:  c.ReplyTo,
		AppName:  c.AppName,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		SSL:      c.SMTP.UseTLS,
		Timeout:  time.Duration(c.SMTP.TimeoutSeconds) * time.Second,
	}
	if cfg.AppName == "" {
		cfg.AppName = defaultAppName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg
}
