package storage

import "errors"

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ErrInvalidRange is returned when a requested byte range falls outside the
// object.
var ErrInvalidRange = errors.New("invalid byte range")
