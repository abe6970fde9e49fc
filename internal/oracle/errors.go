package oracle

import "errors"

var (
	ErrNonexistentRequest = errors.New("oracle: nonexistent request")
	ErrNoConsumer         = errors.New("oracle: no consumer bound")
	ErrClosed             = errors.New("oracle: coordinator closed")
	ErrInvalidRequest     = errors.New("oracle: invalid request")
)
