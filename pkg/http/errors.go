package http

import (
	"fmt"
	"net/http"
	"strings"
)

// AppError is an error the envelope can render: a stable code, an optional
// field and params for clients, and the HTTP status it maps to.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Field: field, Message: message, Status: status}
}

// StatusError derives the code from the status text, e.g. 404 -> ERR_NOT_FOUND.
func StatusError(status int, message string) *AppError {
	code := strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	if code == "" {
		code = "UNKNOWN"
	}
	return NewAppError("ERR_"+code, "", message, status)
}

func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = map[string]interface{}{}
	}
	e.Params[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func NotFoundError(message string) *AppError {
	return StatusError(http.StatusNotFound, message)
}

func BadRequestError(message string) *AppError {
	return StatusError(http.StatusBadRequest, message)
}

// InternalError hides the cause from clients; it stays reachable through Unwrap.
func InternalError(message string) *AppError {
	return StatusError(http.StatusInternalServerError, message)
}
