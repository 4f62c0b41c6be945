package helpers

import (
	"errors"
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type TaskObserverError struct {
	Message string
	Cause   error
}

func (e *TaskObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *TaskObserverError) Unwrap() error {
	return e.Cause
}

// -----------------------------------------------------------------------------

// ValidationError is a client-side precondition failure. It is raised
// before any network call is made.
type ValidationError struct{ TaskObserverError }

// FetchError is a transport failure before any server response arrived.
type FetchError struct{ TaskObserverError }

// ChannelError is a push-channel connect or reconnect failure. It never
// propagates into application code paths; the channel surfaces it through
// its state observers instead.
type ChannelError struct{ TaskObserverError }

// RemoteError is a non-2xx REST response. Message carries the server's
// `detail` text verbatim when the body was parsable, otherwise a generic
// message with the numeric status.
type RemoteError struct {
	TaskObserverError
	Status int
}

// -----------------------------------------------------------------------------

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{TaskObserverError{Message: msg}}
}

func NewFetchError(msg string, cause error) *FetchError {
	return &FetchError{TaskObserverError{Message: msg, Cause: cause}}
}

func NewChannelError(msg string, cause error) *ChannelError {
	return &ChannelError{TaskObserverError{Message: msg, Cause: cause}}
}

func NewRemoteError(status int, detail string) *RemoteError {
	if detail == "" {
		detail = fmt.Sprintf("request failed with status %d", status)
	}
	return &RemoteError{TaskObserverError{Message: detail}, status}
}

// -----------------------------------------------------------------------------

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsFetch reports whether err is (or wraps) a FetchError.
func IsFetch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsRemote reports whether err is (or wraps) a RemoteError.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// IsChannel reports whether err is (or wraps) a ChannelError.
func IsChannel(err error) bool {
	var ce *ChannelError
	return errors.As(err, &ce)
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times
// with exponential backoff. Task list refreshes must NOT go through here:
// a failed refresh is surfaced once and the caller decides.
func RetryWithBackoff(operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		fmt.Printf("Warning: Attempt %d/%d failed for %s: %v. Retrying in %v\n", attempt+1, maxRetries, operation, lastErr, delay)
		time.Sleep(delay)
	}

	return lastErr
}
