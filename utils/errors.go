package utils

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

type ErrorKind string

const (
	KindNotFound        ErrorKind = "not_found"
	KindValidation      ErrorKind = "validation_failed"
	KindInvalidArgument ErrorKind = "invalid_argument"
	KindConflict        ErrorKind = "conflict"
	KindInternal        ErrorKind = "internal"
)

// AppError is a request-scoped failure that maps onto an HTTP response.
type AppError struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "; %s: %s", k, e.Fields[k])
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AppError) Unwrap() error { return e.Err }

func NotFound(format string, args ...any) *AppError {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidArgument(format string, args ...any) *AppError {
	return &AppError{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func Conflict(err error, format string, args ...any) *AppError {
	return &AppError{Kind: KindConflict, Message: fmt.Sprintf(format, args...), Err: err}
}

// ValidationFailed builds an error from per-field messages. An empty map yields nil.
func ValidationFailed(fields map[string]string) *AppError {
	if len(fields) == 0 {
		return nil
	}
	return &AppError{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

func FieldError(field, message string) *AppError {
	return ValidationFailed(map[string]string{field: message})
}

// KindOf reports the kind of err, or KindInternal for anything that is not an AppError.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func StatusFor(kind ErrorKind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
