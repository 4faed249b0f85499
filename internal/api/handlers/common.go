package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vestra-platform/vestra_service/internal/domain/entities"
	domainerrors "github.com/vestra-platform/vestra_service/internal/domain/errors"
)

// getOwnerID extracts the acting owner from the request context
func getOwnerID(c *gin.Context) (uuid.UUID, error) {
	val, exists := c.Get("owner_id")
	if !exists {
		return uuid.Nil, fmt.Errorf("owner ID not found in context")
	}

	switch v := val.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		return uuid.Parse(v)
	default:
		return uuid.Nil, fmt.Errorf("invalid owner ID type in context")
	}
}

// getRequestID extracts request ID from context
func getRequestID(c *gin.Context) string {
	return c.GetString("request_id")
}

// respondError sends a standardized error response
func respondError(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.JSON(status, entities.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// respondBadRequest sends a bad request error
func respondBadRequest(c *gin.Context, message string, details ...map[string]interface{}) {
	var det map[string]interface{}
	if len(details) > 0 {
		det = details[0]
	}
	respondError(c, http.StatusBadRequest, "INVALID_REQUEST", message, det)
}

// respondInternalError sends an internal server error
func respondInternalError(c *gin.Context, message string) {
	respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", message, nil)
}

// respondNotFound sends a not found error
func respondNotFound(c *gin.Context, message string) {
	respondError(c, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// respondDomainError maps a domain error to the right HTTP status,
// falling back to 500 for anything unclassified
func respondDomainError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case domainerrors.IsInvalidInput(err), domainerrors.IsUnknownCurrency(err):
		status = http.StatusBadRequest
	case domainerrors.IsNotFound(err), domainerrors.IsPlanNotFound(err):
		status = http.StatusNotFound
	case domainerrors.IsInsufficientFunds(err):
		status = http.StatusUnprocessableEntity
	case domainerrors.IsAlreadyProcessed(err):
		status = http.StatusConflict
	}

	respondError(c, status, domainerrors.GetErrorCode(err), err.Error(), domainerrors.GetErrorDetails(err))
}
