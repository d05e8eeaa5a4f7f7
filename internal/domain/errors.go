package domain

import "errors"

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidInterval    = errors.New("interval end must be after start")
	ErrUnknownCycle       = errors.New("unknown recurring cycle")
	ErrTooManyOccurrences = errors.New("recurring chain exceeds the maximum number of occurrences")
)
