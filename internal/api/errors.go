package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
)

// ErrorKind represents the category of error that occurred
type ErrorKind int

const (
	// KindTransport indicates the request failed or timed out before a response arrived
	KindTransport ErrorKind = iota
	// KindValidation indicates the action was blocked locally before any network call
	KindValidation
	// KindProtected indicates the backend refused to delete a protected resource
	KindProtected
	// KindChannel indicates an event channel failure (dial failure, malformed frame)
	KindChannel
	// KindNotFound indicates the requested resource does not exist
	KindNotFound
	// KindHTTP indicates any other non-2xx response
	KindHTTP
	// KindParse indicates a response body that could not be decoded
	KindParse
)

// TransportSubtype gives a more specific reason for a transport failure
type TransportSubtype int

const (
	TransportGeneral TransportSubtype = iota
	TransportTimeout
	TransportConnectionRefused
	TransportDNS
	TransportCanceled
)

// String returns a human-readable name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "Transport Error"
	case KindValidation:
		return "Validation Error"
	case KindProtected:
		return "Protected Resource"
	case KindChannel:
		return "Channel Error"
	case KindNotFound:
		return "Not Found"
	case KindHTTP:
		return "HTTP Error"
	case KindParse:
		return "Parse Error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// Error is the single error type produced by the client stack
type Error struct {
	Kind       ErrorKind        // Category of error
	Message    string           // Human-readable error message
	Op         string           // Operation, e.g. "GET /status"
	StatusCode int              // HTTP status code (if applicable)
	Err        error            // Underlying error (if any)
	Subtype    TransportSubtype // More specific transport failure
	RequestID  string           // X-Request-ID of the failed call
}

// Error implements the error interface
func (e *Error) Error() string {
	prefix := e.Kind.String()
	if e.Op != "" {
		prefix = fmt.Sprintf("%s (%s)", prefix, e.Op)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// ClassifyTransportError analyzes a failed round trip and returns a transport error
func ClassifyTransportError(op string, err error) *Error {
	if err == nil {
		return nil
	}

	e := &Error{
		Kind:    KindTransport,
		Message: "request failed",
		Op:      op,
		Err:     err,
		Subtype: TransportGeneral,
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err):
		e.Message = "request timed out"
		e.Subtype = TransportTimeout
	case errors.Is(err, context.Canceled):
		e.Message = "request canceled"
		e.Subtype = TransportCanceled
	case errors.As(err, &dnsErr):
		e.Message = fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name)
		e.Subtype = TransportDNS
	case errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED):
		e.Message = "backend refused connection"
		e.Subtype = TransportConnectionRefused
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		e.Message = "request timed out"
		e.Subtype = TransportTimeout
	}

	return e
}

// NewTransportError wraps a failed round trip
func NewTransportError(op string, err error) *Error {
	return ClassifyTransportError(op, err)
}

// NewValidationError creates an error for an action blocked before any network call
func NewValidationError(message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: message,
	}
}

// NewProtectedError creates an error for a delete the backend refused by policy
func NewProtectedError(op, name string, statusCode int) *Error {
	return &Error{
		Kind:       KindProtected,
		Message:    fmt.Sprintf("profile %q is protected and cannot be deleted", name),
		Op:         op,
		StatusCode: statusCode,
	}
}

// NewChannelError creates an event channel error
func NewChannelError(message string, err error) *Error {
	return &Error{
		Kind:    KindChannel,
		Message: message,
		Err:     err,
	}
}

// NewNotFoundError creates an error for a missing resource
func NewNotFoundError(op, message string) *Error {
	return &Error{
		Kind:       KindNotFound,
		Message:    message,
		Op:         op,
		StatusCode: 404,
	}
}

// NewHTTPError creates an error for an unexpected HTTP status
func NewHTTPError(op string, statusCode int, message string) *Error {
	return &Error{
		Kind:       KindHTTP,
		Message:    message,
		Op:         op,
		StatusCode: statusCode,
	}
}

// NewParseError creates an error for an undecodable response body
func NewParseError(op, message string, err error) *Error {
	return &Error{
		Kind:    KindParse,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func kindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func isKind(err error, kind ErrorKind) bool {
	k, ok := kindOf(err)
	return ok && k == kind
}

// IsTransportError checks if an error is a transport failure
func IsTransportError(err error) bool { return isKind(err, KindTransport) }

// IsValidationError checks if an error is a local validation failure
func IsValidationError(err error) bool { return isKind(err, KindValidation) }

// IsProtectedError checks if an error is a protected-resource rejection
func IsProtectedError(err error) bool { return isKind(err, KindProtected) }

// IsChannelError checks if an error came from the event channel
func IsChannelError(err error) bool { return isKind(err, KindChannel) }

// IsNotFoundError checks if an error is a missing resource
func IsNotFoundError(err error) bool { return isKind(err, KindNotFound) }

// IsHTTPError checks if an error is an unexpected HTTP status
func IsHTTPError(err error) bool { return isKind(err, KindHTTP) }

// IsParseError checks if an error is a decode failure
func IsParseError(err error) bool { return isKind(err, KindParse) }

// ShortMessage returns a concise, user-facing notice for an error
func ShortMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}

	switch e.Kind {
	case KindTransport:
		switch e.Subtype {
		case TransportTimeout:
			return "Backend not responding (timeout)"
		case TransportConnectionRefused:
			return "Backend refused connection - is it running?"
		case TransportDNS:
			return "Cannot resolve backend hostname"
		case TransportCanceled:
			return "Request canceled"
		default:
			return "Network error - check connection"
		}
	case KindProtected:
		return e.Message
	case KindValidation:
		return e.Message
	case KindChannel:
		return "Event channel problem - reconnecting"
	case KindNotFound:
		return e.Message
	case KindHTTP:
		return fmt.Sprintf("Backend error (HTTP %d)", e.StatusCode)
	case KindParse:
		return "Failed to parse backend response"
	default:
		return e.Message
	}
}
