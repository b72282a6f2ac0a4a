// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
)

// Fault classes. Every error produced by the pipeline, the frame sources or
// the loop wraps exactly one of these, so callers branch with errors.Is.
var (
	// ErrDeviceFault means a frame source could not be opened or closed.
	ErrDeviceFault = errors.New("device fault")
	// ErrOverflow means a read could not keep pace with the input. It is
	// the only recoverable fault.
	ErrOverflow = errors.New("input overflow")
	// ErrMalformedBlock means a block did not have the configured length.
	ErrMalformedBlock = errors.New("malformed block")
	// ErrDegenerateSpectrum means normalization hit a zero or non-finite
	// maximum, which the silence gate should have made impossible.
	ErrDegenerateSpectrum = errors.New("degenerate spectrum")
)

// Fault attaches the name of the faulting component to one of the fault
// classes above.
type Fault struct {
	Component string // e.g. "SpectralAnalyzer", "DeviceSource".
	Err       error  // One of the Err* sentinels, possibly wrapping a cause.
	Detail    string
}

func (f *Fault) Error() string {
	if f.Detail == "" {
		return fmt.Sprintf("%s: %v", f.Component, f.Err)
	}
	return fmt.Sprintf("%s: %v: %s", f.Component, f.Err, f.Detail)
}

func (f *Fault) Unwrap() error { return f.Err }

// NewFault builds a Fault. cause may be nil; when set it is wrapped together
// with class so both remain visible to errors.Is.
func NewFault(component string, class, cause error, detail string) *Fault {
	err := class
	if cause != nil {
		err = fmt.Errorf("%w: %w", class, cause)
	}
	return &Fault{Component: component, Err: err, Detail: detail}
}

// IsRecoverable reports whether the loop may continue after err.
func IsRecoverable(err error) bool {
	return err != nil && errors.Is(err, ErrOverflow)
}

// FaultComponent returns the component named by the first Fault in err's
// chain, or "" if there is none.
func FaultComponent(err error) string {
	var f *Fault
	if errors.As(err, &f) {
		return f.Component
	}
	return ""
}
