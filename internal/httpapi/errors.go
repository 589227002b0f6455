package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error is an HTTP-status-carrying error rendered as {"error": Message}
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	ErrNoFile          = NewError(http.StatusBadRequest, "No file uploaded")
	ErrTooLarge        = NewError(http.StatusRequestEntityTooLarge, "File too large")
	ErrTooManyRequests = NewError(http.StatusTooManyRequests, "Too many requests")
)

// abortWithError writes err as JSON and stops the handler chain. Errors that
// are not *Error become 500.
func abortWithError(c *gin.Context, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = NewError(http.StatusInternalServerError, err.Error())
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(e.Code, gin.H{"error": e.Message})
}
