package orders

import "errors"

// Order intake failures. Handlers map them to HTTP status codes.
var (
	ErrMalformedInput    = errors.New("malformed input")
	ErrEmptyCart         = errors.New("empty cart")
	ErrUnknownConsultant = errors.New("unknown consultant")
)
