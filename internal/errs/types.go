package errs

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// StorageError is a local persistence failure. It is fatal to the current operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError. Nil and ErrNotFound pass through unchanged.
func Storage(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// RemoteError is a failure talking to the remote store. Network marks connectivity-class failures.
type RemoteError struct {
	Op      string
	Network bool
	Err     error
}

func (e *RemoteError) Error() string { return fmt.Sprintf("remote: %s: %v", e.Op, e.Err) }

func (e *RemoteError) Unwrap() error { return e.Err }

// IsNetwork reports whether err is a connectivity-class failure.
func IsNetwork(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoNetwork) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var re *RemoteError
	if errors.As(err, &re) && re.Network {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// Validation returns an error wrapping ErrValidation with the formatted message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
