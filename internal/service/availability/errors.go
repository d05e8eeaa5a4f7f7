package availability

import "errors"

var ErrInvalidService = errors.New("service duration must be positive")
