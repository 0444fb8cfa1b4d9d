package model

import (
	"fmt"
	"net/http"
)

// ErrorKind 操作失败类别
type ErrorKind string

const (
	KindBadRequest            ErrorKind = "BadRequest"
	KindUnauthenticated       ErrorKind = "Unauthenticated"
	KindForbidden             ErrorKind = "Forbidden"
	KindNotFound              ErrorKind = "NotFound"
	KindConflict              ErrorKind = "Conflict"
	KindBootstrapFailed       ErrorKind = "BootstrapFailed"
	KindCascadeFailure        ErrorKind = "CascadeFailure"
	KindExternalCommandFailed ErrorKind = "ExternalCommandFailed"
	KindStoreUnavailable      ErrorKind = "StoreUnavailable"
	KindInternal              ErrorKind = "Internal"
)

// APIError 带类别标签的操作错误，所有service层操作以此返回失败
type APIError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// HTTPStatus 错误类别对应的HTTP状态码
func (e *APIError) HTTPStatus() int {
	switch e.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthenticated, KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind ErrorKind, format string, args ...interface{}) *APIError {
	return &APIError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError 附加底层错误
func WrapError(kind ErrorKind, err error, format string, args ...interface{}) *APIError {
	return &APIError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func ErrBadRequest(format string, args ...interface{}) *APIError {
	return newError(KindBadRequest, format, args...)
}

func ErrUnauthenticated() *APIError {
	return newError(KindUnauthenticated, "Not authorized")
}

func ErrForbidden() *APIError {
	return newError(KindForbidden, "Not authorized")
}

func ErrNotFound(format string, args ...interface{}) *APIError {
	return newError(KindNotFound, format, args...)
}

func ErrConflict(format string, args ...interface{}) *APIError {
	return newError(KindConflict, format, args...)
}

func ErrBootstrapFailed(format string, args ...interface{}) *APIError {
	return newError(KindBootstrapFailed, format, args...)
}

func ErrCascadeFailure(format string, args ...interface{}) *APIError {
	return newError(KindCascadeFailure, format, args...)
}

func ErrExternalCommand(format string, args ...interface{}) *APIError {
	return newError(KindExternalCommandFailed, format, args...)
}

func ErrInternal(err error, format string, args ...interface{}) *APIError {
	return &APIError{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

func ErrStore(err error, format string, args ...interface{}) *APIError {
	return &APIError{Kind: KindStoreUnavailable, Message: fmt.Sprintf(format, args...), Err: err}
}
