// Package repo is the relational storage layer. Queries are built with
// ent's dialect/sql builders and run against any ent dialect.Driver, so the
// same code serves Postgres in production and SQLite in tests.
package repo

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
)

// config is shared by the client and every sub-client. driver is either
// the root driver or an open transaction.
type config struct {
	driver  dialect.ExecQuerier
	dialect string
}

// Client is the entry point to storage.
type Client struct {
	config
	drv dialect.Driver

	User         *UserClient
	Service      *ServiceClient
	Provider     *ProviderClient
	Appointment  *AppointmentClient
	Booking      *BookingClient
	Payment      *PaymentClient
	Event        *EventClient
	Coupon       *CouponClient
	CustomField  *CustomFieldClient
	Setting      *SettingClient
	Notification *NotificationClient
}

// Option configures the client.
type Option func(*Client)

// Driver sets the driver of the client.
func Driver(drv dialect.Driver) Option {
	return func(c *Client) {
		c.drv = drv
		c.config = config{driver: drv, dialect: drv.Dialect()}
	}
}

// NewClient creates a client. Driver is required.
func NewClient(opts ...Option) *Client {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}
	c.init()
	return c
}

func (c *Client) init() {
	c.User = &UserClient{config: c.config}
	c.Service = &ServiceClient{config: c.config}
	c.Provider = &ProviderClient{config: c.config}
	c.Appointment = &AppointmentClient{config: c.config}
	c.Booking = &BookingClient{config: c.config}
	c.Payment = &PaymentClient{config: c.config}
	c.Event = &EventClient{config: c.config}
	c.Coupon = &CouponClient{config: c.config}
	c.CustomField = &CustomFieldClient{config: c.config}
	c.Setting = &SettingClient{config: c.config}
	c.Notification = &NotificationClient{config: c.config}
}

// Dialect returns the SQL dialect name of the underlying driver.
func (c *Client) Dialect() string { return c.dialect }

// Close closes the database connection. It is a no-op for transactional
// clients.
func (c *Client) Close() error {
	if c.drv == nil {
		return nil
	}
	return c.drv.Close()
}

// Tx starts a transaction.
func (c *Client) Tx(ctx context.Context) (*Tx, error) {
	if c.drv == nil {
		return nil, ErrTxStarted
	}
	tx, err := c.drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting a transaction: %w", err)
	}
	txc := &Client{config: config{driver: tx, dialect: c.dialect}}
	txc.init()
	return &Tx{Client: txc, tx: tx}, nil
}

// Use returns the transactional client carried by ctx, or c itself.
func (c *Client) Use(ctx context.Context) *Client {
	if tx := TxFromContext(ctx); tx != nil {
		return tx.Client
	}
	return c
}

// Tx is a transactional client. Sub-clients run their statements inside
// the transaction.
type Tx struct {
	*Client
	tx dialect.Tx
}

func (tx *Tx) Commit() error {
	return tx.tx.Commit()
}

func (tx *Tx) Rollback() error {
	return tx.tx.Rollback()
}

type txCtxKey struct{}

// NewTxContext returns a new context with the given transaction.
func NewTxContext(ctx context.Context, tx *Tx) context.Context {
	return context.WithValue(ctx, txCtxKey{}, tx)
}

// TxFromContext returns the transaction stored in ctx, if any.
func TxFromContext(ctx context.Context) *Tx {
	tx, _ := ctx.Value(txCtxKey{}).(*Tx)
	return tx
}

// WithTx runs fn inside a transaction. If ctx already carries one, fn
// joins it and the outer caller owns commit and rollback.
func WithTx(ctx context.Context, client *Client, fn func(ctx context.Context, tx *Tx) error) error {
	if tx := TxFromContext(ctx); tx != nil {
		return fn(ctx, tx)
	}

	tx, err := client.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()

	if err := fn(NewTxContext(ctx, tx), tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
