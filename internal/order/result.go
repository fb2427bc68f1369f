// Package order holds the order domain: line items, the working order
// state, the mutation service with its limits, the ingredient-level
// customization validator, and the result taxonomy every command reports
// through.
package order

// Status is the outcome class of one executed command.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusError          Status = "error"
	StatusWarning        Status = "warning"
	StatusPartialSuccess Status = "partial_success"
)

// ErrorCategory groups error codes by how they are handled.
type ErrorCategory string

const (
	// CategoryValidation covers malformed parser output; surfaced verbatim.
	CategoryValidation ErrorCategory = "VALIDATION"
	// CategoryBusiness covers rule violations; converted to apologies.
	CategoryBusiness ErrorCategory = "BUSINESS"
	// CategorySystem covers infrastructure failures; generic apology, STOP.
	CategorySystem ErrorCategory = "SYSTEM"
)

// ErrorCode identifies one failure mode within a category.
type ErrorCode string

const (
	// VALIDATION codes.
	CodeInvalidInputFormat   ErrorCode = "INVALID_INPUT_FORMAT"
	CodeMissingRequiredField ErrorCode = "MISSING_REQUIRED_FIELD"
	CodeInvalidQuantity      ErrorCode = "INVALID_QUANTITY"

	// BUSINESS codes.
	CodeItemUnavailable          ErrorCode = "ITEM_UNAVAILABLE"
	CodeItemNotFound             ErrorCode = "ITEM_NOT_FOUND"
	CodeSizeNotAvailable         ErrorCode = "SIZE_NOT_AVAILABLE"
	CodeOptionRequiredMissing    ErrorCode = "OPTION_REQUIRED_MISSING"
	CodeModifierRemoveNotPresent ErrorCode = "MODIFIER_REMOVE_NOT_PRESENT"
	CodeModifierAddNotAllowed    ErrorCode = "MODIFIER_ADD_NOT_ALLOWED"
	CodeModifierConflict         ErrorCode = "MODIFIER_CONFLICT"
	CodeQuantityExceedsLimit     ErrorCode = "QUANTITY_EXCEEDS_LIMIT"
	CodeInventoryShortage        ErrorCode = "INVENTORY_SHORTAGE"

	// SYSTEM codes.
	CodeDatabaseError        ErrorCode = "DATABASE_ERROR"
	CodeExternalServiceError ErrorCode = "EXTERNAL_SERVICE_ERROR"
	CodeInternalError        ErrorCode = "INTERNAL_ERROR"
)

// ResponseType marks results that need special aggregation handling.
const (
	// ResponseClarification marks a successful result that carries a pending
	// clarification question rather than an order change.
	ResponseClarification = "clarification_needed"
)

// Result is the uniform outcome of one executed command. Commands never
// raise; every failure mode is encoded here.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message"`

	// Data carries command-specific payload (e.g., the clarification
	// question, suggested options, the repeated order summary).
	Data map[string]any `json:"data,omitempty"`

	// ErrorCategory and ErrorCode are set on error results. System errors
	// may omit the code.
	ErrorCategory ErrorCategory `json:"error_category,omitempty"`
	ErrorCode     ErrorCode     `json:"error_code,omitempty"`

	// ResponseType marks non-standard successes (see ResponseClarification).
	ResponseType string `json:"response_type,omitempty"`

	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Succeeded reports whether the result counts as a success for batch
// accounting. Warnings count as successes.
func (r *Result) Succeeded() bool {
	switch r.Status {
	case StatusSuccess, StatusWarning, StatusPartialSuccess:
		return true
	}
	return false
}

// Success builds a success result.
func Success(message string) *Result {
	return &Result{Status: StatusSuccess, Message: message}
}

// Warning builds a warning result; counted as success with a caveat.
func Warning(message string) *Result {
	return &Result{Status: StatusWarning, Message: message, Warnings: []string{message}}
}

// Failure builds an error result with a category and code.
func Failure(category ErrorCategory, code ErrorCode, message string) *Result {
	return &Result{
		Status:        StatusError,
		Message:       message,
		ErrorCategory: category,
		ErrorCode:     code,
		Errors:        []string{message},
	}
}

// SystemFailure builds a SYSTEM error result.
func SystemFailure(code ErrorCode, message string) *Result {
	return Failure(CategorySystem, code, message)
}
