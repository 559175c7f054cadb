// ABOUTME: Engine error type carrying a Kind, an optional detail and a wrapped cause
// ABOUTME: Classify turns any error into the code, message and data of an error response

package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/harper/rpc-engine/internal/value"
)

// Error is an engine failure. Detail is free text reported as the response data.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Message()
	if e.Detail != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error of the given kind.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap creates an Error of the given kind around a cause.
func Wrap(kind Kind, err error, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func NewParseError(detail string) *Error         { return New(KindParseError, detail) }
func NewInvalidRequestError(detail string) *Error { return New(KindBadRequest, detail) }
func NewInvalidParamsError(detail string) *Error  { return New(KindBadParams, detail) }
func NewInternalError(detail string) *Error       { return New(KindInternalError, detail) }
func NewUnknownError(detail string) *Error        { return New(KindUnknown, detail) }

// NewMethodNotFoundError reports an unregistered method. The method name is
// not echoed back as data.
func NewMethodNotFoundError() *Error { return New(KindBadMethod, "") }

func NewMethodAlreadyBoundError(detail string) *Error {
	return New(KindMethodAlreadyBound, detail)
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Kind == kind
}

// AppError is an application-defined failure returned by a method handler.
// Its code, message and data are reported unchanged.
type AppError struct {
	Code    int
	Message string
	Data    value.Value
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// NewAppError creates an AppError without data.
func NewAppError(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Classify maps any error to the code, message and data of an error response.
// Foreign errors are Unknown with their text preserved as data.
func Classify(err error) (code int, message string, data value.Value) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code, appErr.Message, appErr.Data
	}

	var e *Error
	if stderrors.As(err, &e) {
		code, message = e.Kind.Code(), e.Kind.Message()
		if e.Detail != "" {
			data = value.String(e.Detail)
		}
		if e.Kind == KindUnknown && e.Err != nil {
			code = CodeUnknownNative
			if !data.HasValue() {
				data = value.String(e.Err.Error())
			}
		}
		return code, message, data
	}

	if err == nil {
		return CodeUnknown, KindUnknown.Message(), value.Null()
	}
	return CodeUnknownNative, KindUnknown.Message(), value.String(err.Error())
}
