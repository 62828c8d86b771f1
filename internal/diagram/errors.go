package diagram

import (
	"errors"
	"net/http"
)

// Class identifies a failure category that callers can branch on.
type Class string

const (
	ClassConfig            Class = "config_error"
	ClassAuth              Class = "auth_error"
	ClassRateLimit         Class = "rate_limit_error"
	ClassUnavailable       Class = "upstream_unavailable"
	ClassNetwork           Class = "network_error"
	ClassMalformedResponse Class = "malformed_response"
	ClassUpstream          Class = "upstream_error"
	ClassTimeout           Class = "timeout"
	ClassInvalidSyntax     Class = "invalid_syntax"
	ClassUnsupportedFormat Class = "unsupported_format"
	ClassRenderProcess     Class = "render_process_error"
	ClassRenderIO          Class = "render_io_error"
)

// Error is the single error type surfaced by the generator and the exporter.
// Message is a stable, client-safe summary; Err carries the raw cause.
type Error struct {
	Class   Class
	Message string
	Err     error
}

// Sentinels for errors.Is. They match any *Error of the same class.
var (
	ErrConfig            = &Error{Class: ClassConfig}
	ErrAuth              = &Error{Class: ClassAuth}
	ErrRateLimit         = &Error{Class: ClassRateLimit}
	ErrUnavailable       = &Error{Class: ClassUnavailable}
	ErrNetwork           = &Error{Class: ClassNetwork}
	ErrMalformedResponse = &Error{Class: ClassMalformedResponse}
	ErrUpstream          = &Error{Class: ClassUpstream}
	ErrTimeout           = &Error{Class: ClassTimeout}
	ErrInvalidSyntax     = &Error{Class: ClassInvalidSyntax}
	ErrUnsupportedFormat = &Error{Class: ClassUnsupportedFormat}
	ErrRenderProcess     = &Error{Class: ClassRenderProcess}
	ErrRenderIO          = &Error{Class: ClassRenderIO}
)

// NewError builds an *Error of class c.
func NewError(c Class, message string, cause error) *Error {
	return &Error{Class: c, Message: message, Err: cause}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Class.Summary()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same class.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Class == e.Class
}

// Status is the HTTP status code a transport should answer with.
func (c Class) Status() int {
	switch c {
	case ClassAuth:
		return http.StatusUnauthorized
	case ClassRateLimit:
		return http.StatusTooManyRequests
	case ClassUnavailable, ClassNetwork:
		return http.StatusServiceUnavailable
	case ClassMalformedResponse:
		return http.StatusBadGateway
	case ClassTimeout:
		return http.StatusGatewayTimeout
	case ClassInvalidSyntax, ClassUnsupportedFormat:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Summary is the stable human-readable text for the class.
func (c Class) Summary() string {
	switch c {
	case ClassConfig:
		return "Diagram generation is not configured"
	case ClassAuth:
		return "Invalid API key for the generation service"
	case ClassRateLimit:
		return "API rate limit exceeded. Please try again later."
	case ClassUnavailable:
		return "The generation model is loading. Please try again in a few moments."
	case ClassNetwork:
		return "Cannot connect to the generation service"
	case ClassMalformedResponse:
		return "The AI service returned an unusable response"
	case ClassTimeout:
		return "The request took too long"
	case ClassInvalidSyntax:
		return "The Mermaid code contains syntax errors and cannot be exported"
	case ClassUnsupportedFormat:
		return "Unsupported export format"
	case ClassRenderProcess, ClassRenderIO:
		return "Failed to export diagram"
	default:
		return "Failed to generate diagram"
	}
}

// ClassOf returns the class of err, or ClassUpstream when err is not an *Error.
func ClassOf(err error) Class {
	var de *Error
	if errors.As(err, &de) {
		return de.Class
	}
	return ClassUpstream
}

// PublicMessage is the text to show a client. Raw detail is included only
// when exposeDetail is set (non-production deployments).
func PublicMessage(err error, exposeDetail bool) string {
	if err == nil {
		return ""
	}
	if exposeDetail {
		return err.Error()
	}
	var de *Error
	if errors.As(err, &de) {
		if de.Message != "" {
			return de.Message
		}
		return de.Class.Summary()
	}
	return ClassUpstream.Summary()
}
