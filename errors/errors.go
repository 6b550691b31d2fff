package errors

import "errors"

var (
	// ErrPeerClosed reports an orderly remote close during an
	// in-progress read.
	ErrPeerClosed = errors.New("remote process closed session prematurely")

	ErrNotConnected = errors.New("session is not connected")

	ErrBadTag      = errors.New("variant tag out of range")
	ErrBadLength   = errors.New("fixed array length mismatch")
	ErrDuplicateID = errors.New("rpc id already registered")
	ErrZeroID      = errors.New("rpc id must be nonzero")

	ErrPoolClosed = errors.New("session pool is closed")
)

func New(text string) error {
	return errors.New(text)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
