package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steemit/postboard/internal/posts"
)

// Error is the body of every failed REST response
type Error struct {
	Code    int                `json:"statusCode"`
	Status  string             `json:"error"`
	Message string             `json:"message"`
	Details []posts.FieldError `json:"details,omitempty"`
}

// NewError creates a new API error
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Status:  http.StatusText(code),
		Message: message,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

// FromError translates a service error into an API error. Storage failures
// are reported without their cause.
func FromError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var nf *posts.NotFoundError
	if errors.As(err, &nf) {
		return NewError(http.StatusNotFound, nf.Error())
	}

	var ve *posts.ValidationError
	if errors.As(err, &ve) {
		e := NewError(http.StatusBadRequest, "Validation failed")
		e.Details = ve.Fields
		return e
	}

	return NewError(http.StatusInternalServerError, "Internal server error")
}

// abortWithError writes err as the response and records it on the context
func abortWithError(c *gin.Context, err error) {
	apiErr := FromError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(apiErr.Code, apiErr)
}
