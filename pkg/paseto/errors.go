package pasetotoken

import "errors"

var (
	ErrConfig       = errors.New("paseto: bad config")
	ErrInvalidToken = errors.New("paseto: invalid token")
	// ErrTokenType is returned for a valid token of a type the caller does
	// not accept, e.g. a cabinet token on a staff route.
	ErrTokenType = errors.New("paseto: token type not accepted")
)
