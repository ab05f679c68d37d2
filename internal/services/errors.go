package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFetch         = errors.New("fetch error")
	ErrTranscode     = errors.New("transcode error")
	ErrStore         = errors.New("store error")
	ErrNotify        = errors.New("notify error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// ErrorKind is a short machine-readable classification derived from a marker.
type ErrorKind string

const (
	KindFetch         ErrorKind = "fetch"
	KindTranscode     ErrorKind = "transcode"
	KindStore         ErrorKind = "store"
	KindNotify        ErrorKind = "notify"
	KindValidation    ErrorKind = "validation"
	KindConfiguration ErrorKind = "configuration"
	KindNotFound      ErrorKind = "not_found"
	KindTimeout       ErrorKind = "timeout"
	KindTransient     ErrorKind = "transient"
)

// ServiceError carries the stage context of a failure alongside its marker.
type ServiceError struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Cause     error
}

func (e *ServiceError) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	marker := ErrTransient
	if e.Marker != nil {
		marker = e.Marker
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", marker, detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", marker, detail)
}

// Unwrap exposes both the marker and the cause to errors.Is / errors.As.
func (e *ServiceError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Marker != nil {
		out = append(out, e.Marker)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// Wrap builds an error that includes stage context while tagging it with the
// provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &ServiceError{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// ErrorDetails is the flattened view of a wrapped failure.
type ErrorDetails struct {
	Kind      ErrorKind
	Stage     string
	Operation string
	Message   string
	Cause     error
}

// Details extracts the outermost ServiceError context from err. Errors that
// were never wrapped report KindTransient and their own text as the message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		return ErrorDetails{Kind: kindOf(err), Message: strings.TrimSpace(err.Error()), Cause: err}
	}
	message := svcErr.Message
	if svcErr.Cause != nil {
		cause := strings.TrimSpace(svcErr.Cause.Error())
		if message == "" {
			message = cause
		} else if cause != "" {
			message = message + ": " + cause
		}
	}
	return ErrorDetails{
		Kind:      kindOf(svcErr.Marker),
		Stage:     svcErr.Stage,
		Operation: svcErr.Operation,
		Message:   message,
		Cause:     svcErr.Cause,
	}
}

// UserMessage renders a failure for the person who requested the job. It leads
// with the failed operation and keeps the underlying cause text intact so
// status codes and process diagnostics survive.
func UserMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	details := Details(err)
	parts := make([]string, 0, 2)
	if details.Operation != "" {
		parts = append(parts, details.Operation)
	}
	if details.Message != "" {
		parts = append(parts, details.Message)
	}
	if len(parts) == 0 {
		return strings.TrimSpace(err.Error())
	}
	return strings.Join(parts, ": ")
}

func kindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindTransient
	case errors.Is(err, ErrFetch):
		return KindFetch
	case errors.Is(err, ErrTranscode):
		return KindTranscode
	case errors.Is(err, ErrStore):
		return KindStore
	case errors.Is(err, ErrNotify):
		return KindNotify
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	default:
		return KindTransient
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
