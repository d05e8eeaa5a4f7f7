package repo

import (
	"context"
	"database/sql"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
)

const (
	UserTypeCustomer = "customer"
	UserTypeProvider = "provider"
)

var customerColumns = []string{"id", "first_name", "last_name", "email", "phone", "birthday", "note"}

// UserClient reads and writes customers in the users table.
type UserClient struct {
	config
}

func scanCustomer(rows *entsql.Rows) (*domain.Customer, error) {
	var (
		c        domain.Customer
		birthday sql.NullTime
	)
	if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &birthday, &c.Note); err != nil {
		return nil, err
	}
	c.Birthday = timePtr(birthday)
	return &c, nil
}

func (c *UserClient) findCustomer(ctx context.Context, op string, pred *entsql.Predicate) (*domain.Customer, error) {
	sel := c.builder().Select(customerColumns...).From(c.table("users")).
		Where(entsql.And(entsql.EQ("type", UserTypeCustomer), pred)).
		OrderBy("id").
		Limit(1)

	var out *domain.Customer
	err := c.query(ctx, op, sel, func(rows *entsql.Rows) error {
		cust, err := scanCustomer(rows)
		out = cust
		return err
	})
	return out, err
}

// GetCustomer returns a NotFoundError when no customer has the id.
func (c *UserClient) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	cust, err := c.findCustomer(ctx, "get customer", entsql.EQ("id", id))
	if err != nil {
		return nil, err
	}
	if cust == nil {
		return nil, notFound("customer", id)
	}
	return cust, nil
}

// FindCustomerByEmail returns nil when nothing matches.
func (c *UserClient) FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	if email == "" {
		return nil, nil
	}
	return c.findCustomer(ctx, "find customer by email", entsql.EQ("email", email))
}

// FindCustomerByPhone returns nil when nothing matches.
func (c *UserClient) FindCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	if phone == "" {
		return nil, nil
	}
	return c.findCustomer(ctx, "find customer by phone", entsql.EQ("phone", phone))
}

// CreateCustomer inserts the customer and sets its id.
func (c *UserClient) CreateCustomer(ctx context.Context, cust *domain.Customer) error {
	id, err := c.insert(ctx, "create customer", c.builder().Insert("users").
		Columns("type", "status", "first_name", "last_name", "email", "phone", "birthday", "note", "created").
		Values(UserTypeCustomer, "visible", cust.FirstName, cust.LastName, cust.Email, cust.Phone,
			nullTime(cust.Birthday), cust.Note, time.Now().UTC()))
	if err != nil {
		return err
	}
	cust.ID = id
	return nil
}

// SetCustomerEmail fills the email of a customer stored without one.
func (c *UserClient) SetCustomerEmail(ctx context.Context, id int64, email string) error {
	_, err := c.exec(ctx, "set customer email", c.builder().Update("users").
		Set("email", email).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("type", UserTypeCustomer), entsql.EQ("email", ""))))
	return err
}
