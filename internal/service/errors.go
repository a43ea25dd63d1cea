package service

import "errors"

// Sentinel errors returned by the pedido service. Handlers map these to
// HTTP statuses and structured error codes with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrInvalidID       = errors.New("invalid pedido id")
	ErrNotFound        = errors.New("pedido not found")
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrForbidden       = errors.New("pedido belongs to another user")
	ErrImageStore      = errors.New("image store failure")
	ErrPersistence     = errors.New("persistence failure")
)
