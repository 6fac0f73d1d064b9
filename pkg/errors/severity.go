// Package errors provides severity-aware error types.
package errors

import "fmt"

// Severity indicates error impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// BudgetError is a structured error with context.
type BudgetError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	Category    string   `json:"category,omitempty"`
	Recoverable bool     `json:"recoverable"`
	Err         error    `json:"-"`
}

func (e *BudgetError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("[%s] %s: %s (category: %s)", e.Severity, e.Code, e.Message, e.Category)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
}

func (e *BudgetError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrCodePlannerUnavailable = "PLANNER_UNAVAILABLE"
	ErrCodeUnknownCategory    = "UNKNOWN_CATEGORY"
	ErrCodePersistenceFailed  = "PERSISTENCE_FAILED"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
)

// NewUnknownCategoryError creates an error for an unrecognized category tag.
// Its message is the exact text reported back to ingestion callers.
func NewUnknownCategoryError(tag string) *BudgetError {
	return &BudgetError{
		Code:        ErrCodeUnknownCategory,
		Message:     fmt.Sprintf("unknown category: %s", tag),
		Severity:    SeverityWarning,
		Category:    tag,
		Recoverable: true,
	}
}

// NewPersistenceError wraps a ledger failure for a category.
func NewPersistenceError(category string, err error) *BudgetError {
	return &BudgetError{
		Code:        ErrCodePersistenceFailed,
		Message:     err.Error(),
		Severity:    SeverityError,
		Category:    category,
		Recoverable: true,
		Err:         err,
	}
}

// NewInvalidRequestError creates an error for a request that fails validation.
func NewInvalidRequestError(message string) *BudgetError {
	return &BudgetError{
		Code:        ErrCodeInvalidRequest,
		Message:     message,
		Severity:    SeverityError,
		Recoverable: false,
	}
}
