package errors

import "errors"

var (
	ErrCancelled = errors.New("booking is cancelled")

	ErrInvalidToken = errors.New("invalid cancel token format")
)
