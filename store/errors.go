package store

import "errors"

var (
	ErrNotFound        = errors.New("record not found")
	ErrPending         = errors.New("record is still being created")
	ErrExists          = errors.New("record already exists")
	ErrReadOnlyField   = errors.New("field is read-only")
	ErrUnauthenticated = errors.New("not signed in")
	ErrNotRemovable    = errors.New("only pending enhancements can be removed")
	ErrInvalidOrder    = errors.New("new order must be a permutation of the current images")
	errEmptyResponse   = errors.New("backing store returned no rows")
)
