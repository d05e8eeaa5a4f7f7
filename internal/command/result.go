package command

import (
	"errors"

	"github.com/Alijeyrad/simorq_booking/internal/service/reservation"
)

type Code string

const (
	CodeSuccess Code = "success"
	CodeError   Code = "error"
)

// Data keys callers branch on, besides the reservation.Kind values.
const (
	KeyReauthorize = "reauthorize"
	KeyRescheduled = "rescheduled"
	KeyAdded       = "added"
	KeyDeleted     = "deleted"
)

// Result is the outcome of a command. Expected failures are results with
// CodeError and a flag in Data; unexpected ones are returned as errors.
type Result struct {
	Code    Code           `json:"result"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

func Success(message string, data map[string]any) *Result {
	if data == nil {
		data = map[string]any{}
	}
	return &Result{Code: CodeSuccess, Message: message, Data: data}
}

func Failure(message string, data map[string]any) *Result {
	if data == nil {
		data = map[string]any{}
	}
	return &Result{Code: CodeError, Message: message, Data: data}
}

func (r *Result) IsSuccess() bool { return r.Code == CodeSuccess }

// Flag reports whether Data[key] is set to true.
func (r *Result) Flag(key string) bool {
	v, ok := r.Data[key].(bool)
	return ok && v
}

// failureFrom turns an expected failure into a Result. ok is false for
// anything else, which the caller returns as an error.
func failureFrom(err error) (res *Result, ok bool) {
	var be *reservation.BookingError
	switch {
	case errors.As(err, &be):
		return Failure(be.Message, map[string]any{string(be.Kind): true}), true
	case errors.Is(err, reservation.ErrAccessDenied):
		return Failure("Access denied", map[string]any{KeyReauthorize: true}), true
	}
	return nil, false
}
