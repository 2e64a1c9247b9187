// Package response writes the JSON envelope every API endpoint shares.
package response

import (
	"errors"
	"net/http"
	"time"

	"wildlife-governance/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CtxRequestID is the gin context key holding the request id.
const CtxRequestID = "request_id"

// Envelope is the body of every response. Exactly one of Data or ErrorCode is set.
type Envelope struct {
	Data      any    `json:"data,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// PageData wraps a list result with offset pagination.
type PageData[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

func OK(c *gin.Context, data any) {
	write(c, http.StatusOK, Envelope{Data: data})
}

func Created(c *gin.Context, data any) {
	write(c, http.StatusCreated, Envelope{Data: data})
}

// Page sends one page of items. A nil slice is sent as [].
func Page[T any](c *gin.Context, items []T, total int64, limit, offset int) {
	if items == nil {
		items = []T{}
	}
	OK(c, PageData[T]{Items: items, Total: total, Limit: limit, Offset: offset})
}

// Error sends err as an error envelope. Errors outside apperror become
// SYS_001. The full error, internal cause included, is attached to the gin
// context for the request logger and never reaches the client.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.InternalError(err)
	}
	if err != nil {
		_ = c.Error(err)
	}
	write(c, appErr.HTTPStatus, Envelope{ErrorCode: appErr.Code, Message: appErr.Message})
}

func write(c *gin.Context, status int, env Envelope) {
	env.RequestID = RequestID(c)
	env.Timestamp = time.Now().UTC().Format(time.RFC3339)
	c.JSON(status, env)
}

// RequestID returns the id set by the request-id middleware, or a fresh one.
func RequestID(c *gin.Context) string {
	if id := c.GetString(CtxRequestID); id != "" {
		return id
	}
	return uuid.NewString()
}
