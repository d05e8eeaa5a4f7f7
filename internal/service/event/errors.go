package event

import "errors"

var (
	ErrNotFound      = errors.New("event not found")
	ErrInvalidEvent  = errors.New("event needs at least one valid period")
	ErrCascadeFailed = errors.New("event cascade delete failed")
)
