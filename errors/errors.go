// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrRegistration is returned when this process cannot announce itself to the discovery backend.
	// It is fatal to startup and is never retried automatically.
	ErrRegistration = errors.New("registration failed")

	// ErrWatchFailed indicates that a discovery watch stream failed beyond its internal retry window.
	// The cluster restarts the watch after a backoff.
	ErrWatchFailed = errors.New("watch failed")

	// ErrNoMembersAvailable is returned when no candidate member can host the requested kind,
	// or when the lookup was cancelled before the first topology arrived.
	ErrNoMembersAvailable = errors.New("no members available")

	// ErrStaleOwner is returned by a transport when the resolved owner is no longer alive at delivery time.
	ErrStaleOwner = errors.New("stale owner")

	// ErrCriticalAddressChange indicates that this process's advertised address changed after registration.
	ErrCriticalAddressChange = errors.New("CRITICAL: member address changed after registration")

	// ErrNotRegistered is returned when a registry operation requires a prior registration.
	ErrNotRegistered = errors.New("member is not registered")

	// ErrAlreadyClosed is returned when an operation is attempted on a closed component.
	ErrAlreadyClosed = errors.New("already closed")

	// ErrInvalidConfig is returned when a configuration fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownBackend is returned when the configured discovery backend is not supported.
	ErrUnknownBackend = errors.New("unknown discovery backend")

	// ErrClusterNotStarted is returned when routing is attempted before the member started.
	ErrClusterNotStarted = errors.New("cluster member is not started")

	// ErrClusterShutdown is returned when routing is attempted after shutdown.
	ErrClusterShutdown = errors.New("cluster member is shut down")

	// ErrTransportNotSet is returned when a message is routed without a configured transport.
	ErrTransportNotSet = errors.New("transport is not set")

	// ErrInvalidIdentity is returned when an identity or kind is empty.
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrStatusEncoding is returned when a status value cannot be encoded or decoded.
	ErrStatusEncoding = errors.New("status value codec failure")
)

// NewErrWatchFailed wraps a base error with ErrWatchFailed
func NewErrWatchFailed(err error) error {
	return errors.Join(ErrWatchFailed, err)
}

// NewErrInvalidConfig wraps a base error with ErrInvalidConfig
func NewErrInvalidConfig(err error) error {
	return errors.Join(ErrInvalidConfig, err)
}

// NewErrUnknownBackend formats an ErrUnknownBackend for the given backend name.
func NewErrUnknownBackend(backend string) error {
	return fmt.Errorf("backend=(%s) %w", backend, ErrUnknownBackend)
}

// NewErrNoMembersAvailable formats an ErrNoMembersAvailable for the given kind.
func NewErrNoMembersAvailable(kind string) error {
	return fmt.Errorf("kind=(%s) %w", kind, ErrNoMembersAvailable)
}

// NewErrStaleOwner formats an ErrStaleOwner for the given member and wraps the delivery failure.
func NewErrStaleOwner(memberID string, err error) error {
	if err == nil {
		return fmt.Errorf("member=(%s) %w", memberID, ErrStaleOwner)
	}
	return fmt.Errorf("member=(%s) %w: %w", memberID, ErrStaleOwner, err)
}

// NewErrCriticalAddressChange formats an ErrCriticalAddressChange with both addresses.
func NewErrCriticalAddressChange(previous, current string) error {
	return fmt.Errorf("previous=(%s) current=(%s) %w", previous, current, ErrCriticalAddressChange)
}

// NewErrStatusEncoding wraps a codec failure with ErrStatusEncoding
func NewErrStatusEncoding(err error) error {
	return errors.Join(ErrStatusEncoding, err)
}

// RegistrationError is returned when a member cannot register with its discovery backend.
// It unwraps to both ErrRegistration and the underlying cause.
type RegistrationError struct {
	backend string
	err     error
}

// enforce compilation error
var _ error = (*RegistrationError)(nil)

// NewRegistrationError returns an instance of RegistrationError
func NewRegistrationError(backend string, err error) *RegistrationError {
	return &RegistrationError{
		backend: backend,
		err:     err,
	}
}

// Backend returns the discovery backend that rejected the registration
func (e *RegistrationError) Backend() string {
	return e.backend
}

// Error implements the standard error interface
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("%s: backend=(%s): %v", ErrRegistration.Error(), e.backend, e.err)
}

func (e *RegistrationError) Unwrap() []error {
	return []error{ErrRegistration, e.err}
}
