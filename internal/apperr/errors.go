// Package apperr defines the error kinds shared by the document model.
// Operations wrap these with context; callers match them with errors.Is.
package apperr

import "errors"

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrOutOfRange        = errors.New("out of range")
	ErrAlreadyExists     = errors.New("already exists")
	ErrNotFound          = errors.New("not found")
	ErrUnimplemented     = errors.New("unimplemented")
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrMalformedInput    = errors.New("malformed input")
	ErrMissingDependency = errors.New("missing dependency")
	ErrIO                = errors.New("io failure")
)
