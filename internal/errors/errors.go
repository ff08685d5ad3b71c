package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error is the application error carrying an HTTP status alongside a
// human-readable message.
type Error struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// New creates an Error with the given HTTP status and message.
func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a cause to a new Error.
func Wrap(code int, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// InvalidArg reports a bad request parameter.
func InvalidArg(name string) *Error {
	return New(http.StatusBadRequest, fmt.Sprintf("invalid argument: %s", name))
}

// NotFound reports a missing resource.
func NotFound(what string) *Error {
	return New(http.StatusNotFound, fmt.Sprintf("%s not found", what))
}

// Internal wraps an unexpected failure.
func Internal(cause error) *Error {
	return Wrap(http.StatusInternalServerError, "internal error", cause)
}

// Err writes err as a JSON response, honoring the embedded status code
// when err is an *Error and falling back to 500 otherwise.
func Err(c *gin.Context, err error) {
	var appErr *Error
	if errors.As(err, &appErr) {
		c.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
