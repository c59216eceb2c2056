package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/fitaccounts/internal/common"
	"github.com/gin-gonic/gin"
)

// Envelope wraps every JSON response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// invalidLoginMessage is shared by "no such account" and "wrong password".
const invalidLoginMessage = "invalid login or password"

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: msg})
}

// classify maps a service error to a status code, a client-facing message and
// a short outcome label for metrics.
func classify(err error) (int, string, string) {
	var verr *common.ValidationError
	var conflict *common.ConflictError

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error(), "invalid"
	case errors.As(err, &conflict):
		return http.StatusConflict, conflict.Error(), "conflict"
	case errors.Is(err, common.ErrUnsupportedIdentifier):
		return http.StatusBadRequest, "unsupported identifier, use email or phone", "invalid"
	case errors.Is(err, common.ErrAccountNotFound), errors.Is(err, common.ErrInvalidCredential):
		return http.StatusUnauthorized, invalidLoginMessage, "rejected"
	case errors.Is(err, common.ErrMethodMismatch):
		return http.StatusUnauthorized, "password login is not available for this account", "method_mismatch"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out", "timeout"
	default:
		return http.StatusInternalServerError, "internal error", "error"
	}
}

// fail writes the classified error and returns the outcome label.
func fail(c *gin.Context, err error) string {
	status, msg, outcome := classify(err)
	_ = c.Error(err)
	abort(c, status, msg)
	return outcome
}
