package repo

import (
	"errors"
	"fmt"
)

var (
	ErrQueryExecution = errors.New("query execution failed")
	ErrTxStarted      = errors.New("cannot start a transaction within a transaction")
)

// NotFoundError returns when trying to fetch a specific entity and it was
// not found in the database.
type NotFoundError struct {
	label string
	id    int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("repo: %s %d not found", e.label, e.id)
}

// IsNotFound returns a boolean indicating whether the error is a not found
// error.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e)
}

func notFound(label string, id int64) error {
	return &NotFoundError{label: label, id: id}
}

func queryErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrQueryExecution, err)
}
