package reservation

import (
	"context"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
)

// NormalizePhone formats a phone number as E.164, reading numbers without a
// country code in region. Numbers that do not parse are returned trimmed.
func NormalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	num, err := phonenumbers.Parse(raw, strings.ToUpper(region))
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// resolveCustomer returns the booking's customer: the one named by id, a
// stored one matching the email, a stored one matching the phone when
// neither side has a different email, or a new one. created reports a new
// row was inserted.
func (s *reservationService) resolveCustomer(ctx context.Context, db *repo.Client, in BookingInput, save bool) (cust *domain.Customer, created bool, err error) {
	if in.CustomerID != 0 {
		cust, err = db.User.GetCustomer(ctx, in.CustomerID)
		if err != nil {
			return nil, false, fmt.Errorf("load customer: %w", err)
		}
		return cust, false, nil
	}

	email := strings.ToLower(strings.TrimSpace(in.Customer.Email))
	phone := NormalizePhone(in.Customer.Phone, s.phoneRegion)

	if cust, err = db.User.FindCustomerByEmail(ctx, email); err != nil {
		return nil, false, err
	}
	if cust != nil {
		return cust, false, nil
	}

	// People sharing a phone are still different customers when their
	// emails differ.
	byPhone, err := db.User.FindCustomerByPhone(ctx, phone)
	if err != nil {
		return nil, false, err
	}
	if byPhone != nil && (email == "" || byPhone.Email == "") {
		if email != "" {
			if save {
				if err := db.User.SetCustomerEmail(ctx, byPhone.ID, email); err != nil {
					return nil, false, err
				}
			}
			byPhone.Email = email
		}
		return byPhone, false, nil
	}

	cust = &domain.Customer{
		FirstName: strings.TrimSpace(in.Customer.FirstName),
		LastName:  strings.TrimSpace(in.Customer.LastName),
		Email:     email,
		Phone:     phone,
	}
	if !save {
		return cust, false, nil
	}
	if err := db.User.CreateCustomer(ctx, cust); err != nil {
		return nil, false, newBookingError(KindEmail, err)
	}
	return cust, true, nil
}
