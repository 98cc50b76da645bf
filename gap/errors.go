package gap

import (
	"errors"
	"fmt"

	"github.com/srg/classicgap/internal/device"
	"github.com/srg/classicgap/internal/hci"
)

// ErrorKind classifies controller failures.
type ErrorKind string

const (
	KindNotReady          ErrorKind = "not_ready"
	KindLibraryError      ErrorKind = "library_error"
	KindDeviceNotFound    ErrorKind = "device_not_found"
	KindMalformedPasskey  ErrorKind = "malformed_passkey"
	KindAlreadyRegistered ErrorKind = "already_registered"
)

// Error is returned by every controller operation that can fail.
type Error struct {
	Kind ErrorKind
	// Code is the raw HCI status of a LibraryError.
	Code    hci.Status
	Address device.Address
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Kind)
	if e.Kind == KindLibraryError {
		msg = fmt.Sprintf("%s (code 0x%02X)", msg, uint8(e.Code))
	}
	if !e.Address.IsZero() {
		msg = fmt.Sprintf("%s: %s", msg, e.Address)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is allows errors.Is to compare Error values by Kind
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Predefined sentinel errors, one per kind
var (
	ErrNotReady          = &Error{Kind: KindNotReady}
	ErrLibrary           = &Error{Kind: KindLibraryError}
	ErrDeviceNotFound    = &Error{Kind: KindDeviceNotFound}
	ErrMalformedPasskey  = &Error{Kind: KindMalformedPasskey}
	ErrAlreadyRegistered = &Error{Kind: KindAlreadyRegistered}
)

// libraryError wraps a transport rejection. The HCI status is kept when the
// transport reported one.
func libraryError(addr device.Address, err error) *Error {
	code := hci.StatusUnspecifiedError
	var st hci.Status
	if errors.As(err, &st) {
		code = st
	}
	return &Error{Kind: KindLibraryError, Code: code, Address: addr, Err: err}
}

// ErrorCode returns the HCI status carried by a LibraryError anywhere in
// err's chain.
func ErrorCode(err error) (hci.Status, bool) {
	var gerr *Error
	if errors.As(err, &gerr) && gerr.Kind == KindLibraryError {
		return gerr.Code, true
	}
	return 0, false
}
