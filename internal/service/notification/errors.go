package notification

import "errors"

var (
	ErrUnknownEntity = errors.New("unknown notification entity type")
	ErrNoRecipient   = errors.New("customer has no email address")
)
