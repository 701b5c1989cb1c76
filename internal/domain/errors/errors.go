// Package errors defines domain-specific error types.
// Using typed errors (instead of strings) allows clients to handle specific cases.
//
// Pattern: Sentinel Errors + Custom Error Types
package errors

import (
	"errors"
	"fmt"
)

// Common sentinel errors for domain validation
var (
	// Entity errors
	ErrEntityNotFound      = errors.New("entity not found")
	ErrEntityAlreadyExists = errors.New("entity already exists")

	// Wallet errors
	ErrWalletNotFound     = errors.New("wallet not found")
	ErrWalletSuspended    = errors.New("wallet is suspended")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientHold   = errors.New("insufficient reserved amount")
	ErrWalletAlreadySetup = errors.New("wallet already exists for user")

	// PIN errors
	ErrPinNotSet     = errors.New("spending PIN has not been set")
	ErrPinAlreadySet = errors.New("spending PIN is already set")
	ErrPinInvalid    = errors.New("invalid spending PIN")
	ErrPinLocked     = errors.New("spending PIN is locked")
	ErrPinTooWeak    = errors.New("spending PIN is too predictable")
	ErrPinBadFormat  = errors.New("spending PIN must be exactly 4 digits")

	// Transaction errors
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransactionTerminal = errors.New("transaction is in a terminal state")
	ErrDuplicateRequest    = errors.New("duplicate request reference")
	ErrRecentDuplicate     = errors.New("identical purchase completed moments ago")
	ErrPurchaseInFlight    = errors.New("identical purchase is already in progress")

	// Reservation errors
	ErrReservationNotFound = errors.New("reservation not found")
	ErrReservationResolved = errors.New("reservation already resolved")

	// Webhook errors
	ErrWebhookSignatureInvalid = errors.New("webhook signature mismatch")
	ErrWebhookUserUnresolved   = errors.New("webhook could not be matched to a user")

	// Routing errors
	ErrUnknownNetwork  = errors.New("unknown network")
	ErrUnknownPlanType = errors.New("unknown plan type")
	ErrUnmappablePlan  = errors.New("plan code cannot be translated for target provider")
)

// DomainError wraps an error with a machine-readable code and context.
type DomainError struct {
	Code    string // Machine-readable error code (e.g., "INSUFFICIENT_FUNDS")
	Message string // Human-readable message
	Err     error  // Underlying error (for error chains)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error.
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// ValidationError represents a validation failure with field-level detail.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %d error(s)", len(e))
}

// Add appends a validation error.
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// BusinessRuleViolation represents a violation of a business rule,
// as opposed to a data-format problem.
type BusinessRuleViolation struct {
	Rule    string
	Message string
	Context map[string]interface{}
}

// Error implements the error interface.
func (e BusinessRuleViolation) Error() string {
	return fmt.Sprintf("business rule violation [%s]: %s", e.Rule, e.Message)
}

// NewBusinessRuleViolation creates a new business rule violation error.
func NewBusinessRuleViolation(rule, message string, context map[string]interface{}) *BusinessRuleViolation {
	return &BusinessRuleViolation{Rule: rule, Message: message, Context: context}
}

// ConcurrencyError is returned when an optimistic-locking write loses the
// race. Callers retry the whole read-modify-write cycle, bounded to 3.
type ConcurrencyError struct {
	EntityType string
	EntityID   string
	Message    string
}

// Error implements the error interface.
func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrency error on %s [%s]: %s", e.EntityType, e.EntityID, e.Message)
}

// NewConcurrencyError creates a new concurrency error.
func NewConcurrencyError(entityType, entityID, message string) *ConcurrencyError {
	return &ConcurrencyError{EntityType: entityType, EntityID: entityID, Message: message}
}

// ProviderErrorKind classifies failures from the VAS providers.
type ProviderErrorKind string

const (
	// ProviderUnreachable covers connection errors and the 12-second deadline.
	ProviderUnreachable ProviderErrorKind = "PROVIDER_UNREACHABLE"
	// ProviderRejected covers 4xx responses without success markers.
	ProviderRejected ProviderErrorKind = "PROVIDER_REJECTED"
	// ProviderFailed covers 5xx responses.
	ProviderFailed ProviderErrorKind = "PROVIDER_ERROR"
	// ProviderUnavailable is the typed routing error surfaced when the chosen
	// data provider fails and no fallback is permitted.
	ProviderUnavailable ProviderErrorKind = "PROVIDER_UNAVAILABLE"
)

// ProviderError carries the provider, the failure class, and the parsed
// reason. Alternatives lists the other plan types available for the network
// when a data purchase fails; the user picks a different family, the system
// never silently substitutes one.
type ProviderError struct {
	Provider     string
	Kind         ProviderErrorKind
	Reason       string
	Alternatives []string
	Err          error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Reason, e.Provider)
	}
	return fmt.Sprintf("%s (%s)", e.Kind, e.Provider)
}

// Unwrap implements error unwrapping.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a provider error.
func NewProviderError(provider string, kind ProviderErrorKind, reason string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Reason: reason, Err: err}
}

// Helper functions for common error checking

// IsNotFound checks if an error is an "entity not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound) ||
		errors.Is(err, ErrWalletNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrReservationNotFound)
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var valErr ValidationError
	var valErrs ValidationErrors
	return errors.As(err, &valErr) || errors.As(err, &valErrs)
}

// IsBusinessRuleViolation checks if an error is a business rule violation.
func IsBusinessRuleViolation(err error) bool {
	var brv *BusinessRuleViolation
	return errors.As(err, &brv)
}

// IsConcurrencyError checks if an error is an optimistic-locking conflict.
func IsConcurrencyError(err error) bool {
	var ce *ConcurrencyError
	return errors.As(err, &ce)
}

// IsProviderError extracts a *ProviderError if present.
func IsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
