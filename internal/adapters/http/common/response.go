// Package common holds the shared HTTP types: the response envelope, error
// codes, and the domain-error to status-code mapper. Separate package so
// handlers and middleware can both use it without an import cycle.
package common

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	domainerrors "github.com/ficore-africa/vas-backend/internal/domain/errors"
)

// APIResponse is the envelope of every response.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Meta      *APIMeta    `json:"meta,omitempty"`
	RequestID string      `json:"request_id"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIMeta carries pagination info.
type APIMeta struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	Total      int `json:"total,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
}

// APIError is the error body. Alternatives is filled when a data purchase
// fails and other plan families remain available on the network.
type APIError struct {
	Code         string                 `json:"code"`
	Message      string                 `json:"message"`
	Details      map[string]interface{} `json:"details,omitempty"`
	Fields       []FieldError           `json:"fields,omitempty"`
	Alternatives []string               `json:"alternatives,omitempty"`
	RetryAfter   int                    `json:"retry_after,omitempty"`
}

// FieldError is one field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeTooManyRequests  = "TOO_MANY_REQUESTS"
	ErrCodeBusinessRule     = "BUSINESS_RULE_VIOLATION"
	ErrCodeDuplicateRequest = "DUPLICATE_REQUEST"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeConcurrency      = "CONCURRENCY_ERROR"
	ErrCodePinLocked        = "PIN_LOCKED"
	ErrCodePinInvalid       = "PIN_INVALID"
	ErrCodeInsufficient     = "INSUFFICIENT_FUNDS"
	ErrCodeProvider         = "PROVIDER_ERROR"
)

const RequestIDKey = "X-Request-ID"

// GetRequestID returns the request id stored by the middleware.
func GetRequestID(c *gin.Context) string {
	if id, exists := c.Get(RequestIDKey); exists {
		return id.(string)
	}
	return ""
}

// SetRequestID stores the request id and echoes it in the response header.
func SetRequestID(c *gin.Context, id string) {
	c.Set(RequestIDKey, id)
	c.Header(RequestIDKey, id)
}

// Success sends a successful response.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success:   true,
		Data:      data,
		RequestID: GetRequestID(c),
		Timestamp: time.Now().UTC(),
	})
}

// SuccessWithMeta sends a successful response with pagination meta.
func SuccessWithMeta(c *gin.Context, statusCode int, data interface{}, meta *APIMeta) {
	c.JSON(statusCode, APIResponse{
		Success:   true,
		Data:      data,
		Meta:      meta,
		RequestID: GetRequestID(c),
		Timestamp: time.Now().UTC(),
	})
}

// Error sends an error response.
func Error(c *gin.Context, statusCode int, apiError *APIError) {
	c.JSON(statusCode, APIResponse{
		Success:   false,
		Error:     apiError,
		RequestID: GetRequestID(c),
		Timestamp: time.Now().UTC(),
	})
}

// ValidationErrorResponse sends a 400 with field errors.
func ValidationErrorResponse(c *gin.Context, fields []FieldError) {
	Error(c, http.StatusBadRequest, &APIError{
		Code:    ErrCodeValidation,
		Message: "Request validation failed",
		Fields:  fields,
	})
}

// NotFoundResponse sends a 404.
func NotFoundResponse(c *gin.Context, resource string) {
	Error(c, http.StatusNotFound, &APIError{
		Code:    ErrCodeNotFound,
		Message: resource + " not found",
	})
}

// BadRequestResponse sends a 400.
func BadRequestResponse(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, &APIError{
		Code:    ErrCodeBadRequest,
		Message: message,
	})
}

// UnauthorizedResponse sends a 401.
func UnauthorizedResponse(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, &APIError{
		Code:    ErrCodeUnauthorized,
		Message: message,
	})
}

// ForbiddenResponse sends a 403.
func ForbiddenResponse(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, &APIError{
		Code:    ErrCodeForbidden,
		Message: message,
	})
}

// InternalErrorResponse sends a 500.
func InternalErrorResponse(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, &APIError{
		Code:    ErrCodeInternal,
		Message: message,
	})
}

// HandleDomainError maps a use-case error to an HTTP response.
func HandleDomainError(c *gin.Context, err error) {
	if domainerrors.IsValidationError(err) {
		var valErrs domainerrors.ValidationErrors
		if errors.As(err, &valErrs) {
			fields := make([]FieldError, 0, len(valErrs))
			for _, v := range valErrs {
				fields = append(fields, FieldError{Field: v.Field, Message: v.Message, Code: "invalid"})
			}
			ValidationErrorResponse(c, fields)
			return
		}
		var valErr domainerrors.ValidationError
		if errors.As(err, &valErr) {
			ValidationErrorResponse(c, []FieldError{
				{Field: valErr.Field, Message: valErr.Message, Code: "invalid"},
			})
			return
		}
		BadRequestResponse(c, err.Error())
		return
	}

	// PIN failures carry specific codes so clients can drive the lockout UX.
	switch {
	case errors.Is(err, domainerrors.ErrPinLocked):
		Error(c, http.StatusLocked, &APIError{
			Code:    ErrCodePinLocked,
			Message: "Spending PIN is locked, try again later",
		})
		return
	case errors.Is(err, domainerrors.ErrPinInvalid):
		Error(c, http.StatusUnauthorized, &APIError{
			Code:    ErrCodePinInvalid,
			Message: "Incorrect spending PIN",
		})
		return
	case errors.Is(err, domainerrors.ErrPinNotSet),
		errors.Is(err, domainerrors.ErrPinAlreadySet),
		errors.Is(err, domainerrors.ErrPinTooWeak),
		errors.Is(err, domainerrors.ErrPinBadFormat):
		Error(c, http.StatusUnprocessableEntity, &APIError{
			Code:    ErrCodeBusinessRule,
			Message: err.Error(),
		})
		return
	}

	switch {
	case errors.Is(err, domainerrors.ErrInsufficientFunds):
		Error(c, http.StatusUnprocessableEntity, &APIError{
			Code:    ErrCodeInsufficient,
			Message: "Insufficient wallet balance",
		})
		return
	case errors.Is(err, domainerrors.ErrRecentDuplicate),
		errors.Is(err, domainerrors.ErrPurchaseInFlight),
		errors.Is(err, domainerrors.ErrDuplicateRequest):
		Error(c, http.StatusConflict, &APIError{
			Code:    ErrCodeDuplicateRequest,
			Message: err.Error(),
		})
		return
	case errors.Is(err, domainerrors.ErrWebhookSignatureInvalid):
		UnauthorizedResponse(c, "Signature verification failed")
		return
	}

	if pe, ok := domainerrors.IsProviderError(err); ok {
		status := http.StatusBadGateway
		if pe.Kind == domainerrors.ProviderUnavailable {
			status = http.StatusServiceUnavailable
		}
		Error(c, status, &APIError{
			Code:         string(pe.Kind),
			Message:      pe.Reason,
			Alternatives: pe.Alternatives,
		})
		return
	}

	if domainerrors.IsBusinessRuleViolation(err) {
		var brv *domainerrors.BusinessRuleViolation
		if errors.As(err, &brv) {
			Error(c, http.StatusUnprocessableEntity, &APIError{
				Code:    ErrCodeBusinessRule,
				Message: brv.Message,
				Details: map[string]interface{}{
					"rule":    brv.Rule,
					"context": brv.Context,
				},
			})
			return
		}
	}

	if domainerrors.IsConcurrencyError(err) {
		Error(c, http.StatusConflict, &APIError{
			Code:    ErrCodeConcurrency,
			Message: "Resource was modified by another request, please retry",
			Details: map[string]interface{}{"retryable": true},
		})
		return
	}

	if domainerrors.IsNotFound(err) {
		NotFoundResponse(c, "Resource")
		return
	}

	var domainErr *domainerrors.DomainError
	if errors.As(err, &domainErr) {
		statusCode := http.StatusBadRequest
		switch domainErr.Code {
		case "USER_NOT_FOUND", "WALLET_NOT_FOUND":
			statusCode = http.StatusNotFound
		case "WALLET_ALREADY_EXISTS":
			statusCode = http.StatusConflict
		}
		Error(c, statusCode, &APIError{
			Code:    domainErr.Code,
			Message: domainErr.Message,
		})
		return
	}

	InternalErrorResponse(c, "An unexpected error occurred")
}
