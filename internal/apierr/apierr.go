package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInvalid        = "ZOD_INVALID"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeContentRefused = "CONTENT_REFUSED"
	CodeParseFailed    = "PARSE_FAILED"
	CodeDBFailed       = "DB_FAILED"
	CodeUnknown        = "UNKNOWN"
)

type Error struct {
	Status  int
	Code    string
	Err     error
	Details any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Invalid(err error, details any) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeInvalid, Err: err, Details: details}
}

func Unauthorized(err error) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, err)
}

func ContentRefused(err error) *Error {
	return New(http.StatusBadRequest, CodeContentRefused, err)
}

func ParseFailed(err error) *Error {
	status := http.StatusInternalServerError
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusRequestTimeout
	}
	return New(status, CodeParseFailed, err)
}

func DBFailed(err error) *Error {
	return New(http.StatusInternalServerError, CodeDBFailed, err)
}

// FromError returns err as an *Error, wrapping foreign errors as UNKNOWN.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return New(http.StatusInternalServerError, CodeUnknown, err)
}
