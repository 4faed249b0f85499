// Package errors provides standardized error types for the domain layer.
// These errors enable consistent categorization across services and map
// cleanly onto API responses.
package errors

import (
	"errors"
	"fmt"
)

// Standard error categories
var (
	// ErrInvalidInput indicates a malformed or out-of-range request.
	// Rejected before any mutation is attempted.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrPlanNotFound indicates no plan matched the given identifier.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrUnknownCurrency indicates a currency outside the rate table.
	ErrUnknownCurrency = errors.New("unknown currency")

	// ErrInsufficientFunds is an expected business outcome, not a system
	// failure. The creation workflow absorbs it into a PENDING result.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTransactionFailed indicates a storage-level failure during a
	// multi-step mutation. The creation workflow rolls back before
	// surfacing it.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrAlreadyProcessed is the idempotency short-circuit. It signals a
	// no-op, not a failure.
	ErrAlreadyProcessed = errors.New("already processed")

	// ErrDataIntegrity flags detected partial or duplicate state during
	// the cycle. Logged for reconciliation; never halts the batch.
	ErrDataIntegrity = errors.New("data integrity warning")

	// ErrInternal indicates an internal error.
	ErrInternal = errors.New("internal error")
)

// DomainError carries a machine-readable code and contextual details on
// top of a sentinel category.
type DomainError struct {
	Err     error
	Code    string
	Message string
	Details map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

// Unwrap returns the underlying sentinel.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target category.
func (e *DomainError) Is(target error) bool {
	if e.Err != nil {
		return errors.Is(e.Err, target)
	}
	return false
}

// WithDetails attaches details to the error.
func (e *DomainError) WithDetails(details map[string]interface{}) *DomainError {
	e.Details = details
	return e
}

// InvalidInputError creates a caller-fault validation error.
func InvalidInputError(message string) *DomainError {
	return &DomainError{Err: ErrInvalidInput, Code: "INVALID_INPUT", Message: message}
}

// AmountOutOfRangeError reports a request outside a plan's inclusive
// amount range.
func AmountOutOfRangeError(amountUSD, min, max string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidInput,
		Code:    "AMOUNT_OUT_OF_RANGE",
		Message: fmt.Sprintf("amount %s USD is outside plan range [%s, %s]", amountUSD, min, max),
		Details: map[string]interface{}{
			"amount_usd": amountUSD,
			"min_amount": min,
			"max_amount": max,
		},
	}
}

// PlanNotFoundError creates a plan resolution failure.
func PlanNotFoundError(identifier string) *DomainError {
	return &DomainError{
		Err:     ErrPlanNotFound,
		Code:    "PLAN_NOT_FOUND",
		Message: fmt.Sprintf("no plan matches %q", identifier),
	}
}

// UnknownCurrencyError creates a rate-table miss.
func UnknownCurrencyError(currency string) *DomainError {
	return &DomainError{
		Err:     ErrUnknownCurrency,
		Code:    "UNKNOWN_CURRENCY",
		Message: fmt.Sprintf("currency %q is not supported", currency),
	}
}

// InsufficientFundsError reports a balance shortfall.
func InsufficientFundsError(available, requested string) *DomainError {
	return &DomainError{
		Err:     ErrInsufficientFunds,
		Code:    "INSUFFICIENT_FUNDS",
		Message: "insufficient funds",
		Details: map[string]interface{}{
			"available": available,
			"requested": requested,
		},
	}
}

// TransactionFailedError wraps a storage failure, retaining the cause
// for diagnostics.
func TransactionFailedError(step string, cause error) *DomainError {
	return &DomainError{
		Err:     ErrTransactionFailed,
		Code:    "TRANSACTION_FAILED",
		Message: fmt.Sprintf("transaction failed at %s: %v", step, cause),
		Details: map[string]interface{}{"step": step, "cause": cause.Error()},
	}
}

// NotFoundError creates a not found error for a resource.
func NotFoundError(resource string) *DomainError {
	return &DomainError{
		Err:     ErrNotFound,
		Code:    fmt.Sprintf("%s_NOT_FOUND", resource),
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// IsInvalidInput checks if an error is a validation error.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsPlanNotFound checks if an error is a plan resolution failure.
func IsPlanNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound)
}

// IsUnknownCurrency checks if an error is a rate-table miss.
func IsUnknownCurrency(err error) bool {
	return errors.Is(err, ErrUnknownCurrency)
}

// IsInsufficientFunds checks if an error is a balance shortfall.
func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

// IsAlreadyProcessed checks if an error is the idempotency no-op signal.
func IsAlreadyProcessed(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed)
}

// IsTransactionFailed checks if an error is a rolled-back mutation failure.
func IsTransactionFailed(err error) bool {
	return errors.Is(err, ErrTransactionFailed)
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// GetErrorCode extracts the machine-readable code from a domain error.
func GetErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "UNKNOWN_ERROR"
}

// GetErrorDetails extracts details from a domain error.
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
