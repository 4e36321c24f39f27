package kverrors

import "errors"

var (
	ErrInvalidArgument = errors.New("stripecache: invalid argument")
	ErrOutOfMemory     = errors.New("stripecache: out of memory")
	ErrClosed          = errors.New("stripecache: closed")
	ErrValueNotInteger = errors.New("stripecache: value is not an integer or out of range")
)
