package repository

import "errors"

var (
	ErrInvalid     = errors.New("invalid input")
	ErrUnsupported = errors.New("unsupported audit driver")
)
