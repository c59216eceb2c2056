package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/fitaccounts/internal/common"
	"github.com/dmitrijs2005/fitaccounts/internal/logging"
	"github.com/dmitrijs2005/fitaccounts/internal/server/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const accountIDKey = "account_id"

// RequestLogger writes one structured line per request.
func RequestLogger(l logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if len(c.Errors) > 0 {
			args = append(args, "error", c.Errors.Last().Err)
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			l.Error(c.Request.Context(), "request", args...)
			return
		}
		l.Info(c.Request.Context(), "request", args...)
	}
}

// Timeout bounds the request context; handlers pass it down to the store.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// BearerAuth requires "Authorization: Bearer <token>" and stores the token
// subject under accountIDKey.
func BearerAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.AuthorizationHeaderName)
		token, ok := strings.CutPrefix(header, common.BearerPrefix)
		if !ok || token == "" {
			abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		accountID, err := auth.GetAccountIDFromToken(token, secret)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, common.ErrTokenExpired) {
				msg = "token expired"
			}
			abort(c, http.StatusUnauthorized, msg)
			return
		}

		c.Set(accountIDKey, accountID)
		c.Next()
	}
}

// requireOwner rejects callers acting on someone else's account. Ids are
// compared in canonical UUID form.
func requireOwner(c *gin.Context, accountID string) bool {
	if id, err := uuid.Parse(accountID); err == nil {
		accountID = id.String()
	}
	if c.GetString(accountIDKey) != accountID {
		abort(c, http.StatusForbidden, "access denied")
		return false
	}
	return true
}
