package protocol

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownFault matches a DeviceError whose error register carries bits
// that have no named fault.
var ErrUnknownFault = errors.New("unknown device fault")

// EncodingError indicates a command that cannot be built: an unknown name,
// wrong argument count, or an argument of the wrong type or range.
type EncodingError struct {
	// Command is the command name that failed to encode
	Command string

	// Reason describes the mismatch
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %q: %s", e.Command, e.Reason)
}

// FramingError indicates a frame without proper start/end markers or with
// markers out of order. It signals protocol desync.
type FramingError struct {
	Reason string
	Frame  []byte
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("framing: %s (frame %q)", e.Reason, e.Frame)
}

// MalformedFieldError indicates a field whose content does not match the
// kind expected at its position.
type MalformedFieldError struct {
	// Command is the command whose response held the field (may be empty)
	Command string

	// Index is the field position, 1-based after the command name
	Index int

	// Token is the raw field content
	Token string

	Reason string
}

func (e *MalformedFieldError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("malformed field %q: %s", e.Token, e.Reason)
	}
	return fmt.Sprintf("malformed field %d of %q response %q: %s", e.Index, e.Command, e.Token, e.Reason)
}

// UnknownCodeError indicates an enumerated field holding a code with no
// variant. It signals a protocol version mismatch.
type UnknownCodeError struct {
	Command string
	Index   int

	// Kind names the code table, e.g. "action target"
	Kind string

	Code int
}

func (e *UnknownCodeError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("unknown %s code %d", e.Kind, e.Code)
	}
	return fmt.Sprintf("unknown %s code %d in field %d of %q response", e.Kind, e.Code, e.Index, e.Command)
}

// TimeoutError indicates that no complete frame arrived in time.
// The session stays open; the caller decides whether to retry.
type TimeoutError struct {
	Command string

	// After is how long the engine waited
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no response within %s", e.Command, e.After)
}

// Timeout reports true, matching the net.Error convention.
func (e *TimeoutError) Timeout() bool { return true }

// TransportError wraps a hard I/O failure of the underlying transport.
type TransportError struct {
	Command string

	// Op is "write" or "read"
	Op string

	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport %s: %v", e.Command, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DeviceError is a fault reported by the instrument in a response's error
// field. It keeps the full error register so every set fault is recoverable.
type DeviceError struct {
	// Command is the command that failed
	Command string

	// Errors is the complete error register from the response
	Errors ErrorStatus

	// Warnings is the warning register from the same response, if present
	Warnings WarningStatus
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s failed: %s (0x%04X)", e.Command, e.Errors.String(), uint32(e.Errors))
}

// Is matches any named fault that is set in the register, and
// ErrUnknownFault when unnamed bits are set.
func (e *DeviceError) Is(target error) bool {
	switch t := target.(type) {
	case ErrorStatus:
		return t != 0 && e.Errors&t == t
	}
	if target == ErrUnknownFault {
		return e.Errors.Unrecognized() != 0
	}
	return false
}

// Faults returns one value per set error bit.
func (e *DeviceError) Faults() []ErrorStatus { return e.Errors.Faults() }

// Kind returns the most specific classification: the single named fault
// when exactly one is set, ErrUnknownFault when only unnamed bits are set,
// and the composite register otherwise.
func (e *DeviceError) Kind() error {
	known := e.Errors.Known()
	switch {
	case known == 0:
		return ErrUnknownFault
	case e.Errors.Unrecognized() == 0 && known&(known-1) == 0:
		return known
	default:
		return e.Errors
	}
}

// Classify turns a decoded error register into an error. A clear register
// yields nil; warnings never produce an error and are carried along for
// context.
func Classify(command string, errs ErrorStatus, warns WarningStatus) error {
	if errs == 0 {
		return nil
	}
	return &DeviceError{Command: command, Errors: errs, Warnings: warns}
}

// IsDeviceError returns true if err is or wraps a *DeviceError.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}

// IsTimeout returns true if err is or wraps a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsTransportError returns true if err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
