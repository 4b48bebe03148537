package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"go.uber.org/zap"

	"carpool/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MessageResponse represents a successful lifecycle operation.
type MessageResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	RemainingCredits *int   `json:"remaining_credits,omitempty"`
}

const internalErrorMessage = "Internal server error"

// respondError sends an error response with the appropriate HTTP status code.
// Dependency failures are logged and hidden from the client.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	code := mapErrorToHTTPStatus(err)
	message := err.Error()

	if code == http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		if txn := nrgin.Transaction(c); txn != nil {
			txn.NoticeError(err)
		}
		message = internalErrorMessage
	}

	c.JSON(code, ErrorResponse{Success: false, Message: message})
}

// respondBadRequest sends a 400 for a malformed request.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Message: message})
}

// respondResult sends the outcome of a lifecycle operation.
func respondResult(c *gin.Context, result *service.Result) {
	c.JSON(http.StatusOK, MessageResponse{
		Success:          true,
		Message:          result.Message,
		RemainingCredits: result.RemainingCredits,
	})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Validation errors - Bad Request
	case service.IsInvalid(err):
		return http.StatusBadRequest

	// Wrong actor
	case errors.Is(err, service.ErrNotDriver):
		return http.StatusForbidden

	// Not found errors
	case service.IsNotFound(err):
		return http.StatusNotFound

	// Business rule violations
	case service.IsRejected(err):
		return http.StatusConflict

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}

// annotate attaches request attributes to the current New Relic transaction.
func annotate(c *gin.Context, attrs map[string]string) {
	txn := nrgin.Transaction(c)
	if txn == nil {
		return
	}
	for k, v := range attrs {
		if v != "" {
			txn.AddAttribute(k, v)
		}
	}
}
