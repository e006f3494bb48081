// Package errors provides structured error handling for the catalog indexing engine.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Catalog access errors
//   - 3XX: Credential errors
//   - 4XX: Validation errors
//   - 5XX: Index and internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryCatalog indicates failures reading catalog state.
	CategoryCatalog Category = "CATALOG"
	// CategoryCredential indicates failures obtaining a privileged catalog session.
	CategoryCredential Category = "CREDENTIAL"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates search index and unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Catalog errors (200-299)
	ErrCodeItemNotFound       = "ERR_201_ITEM_NOT_FOUND"
	ErrCodeCatalogPermission  = "ERR_202_CATALOG_PERMISSION"
	ErrCodeCatalogUnavailable = "ERR_203_CATALOG_UNAVAILABLE"

	// Credential errors (300-399)
	ErrCodeNoCredential    = "ERR_301_NO_CREDENTIAL"
	ErrCodeCredentialFetch = "ERR_302_CREDENTIAL_FETCH"
	ErrCodeLeaseInvalid    = "ERR_303_LEASE_INVALID"

	// Validation errors (400-499)
	ErrCodeInvalidEvent = "ERR_401_INVALID_EVENT"
	ErrCodeInvalidState = "ERR_402_INVALID_STATE"
	ErrCodeInvalidInput = "ERR_403_INVALID_INPUT"

	// Index and internal errors (500-599)
	ErrCodeInternal   = "ERR_501_INTERNAL"
	ErrCodeIndexWrite = "ERR_502_INDEX_WRITE"
	ErrCodeIndexQuery = "ERR_503_INDEX_QUERY"
	ErrCodeMapping    = "ERR_504_MAPPING"
	ErrCodeIndexLock  = "ERR_505_INDEX_LOCKED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryCatalog
	case '3':
		return CategoryCredential
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeNoCredential, ErrCodeIndexLock:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode reports whether a later attempt of the same operation can succeed.
// A missing service credential is permanent; a failed fetch is not.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeCredentialFetch, ErrCodeLeaseInvalid, ErrCodeCatalogUnavailable:
		return true
	default:
		return false
	}
}
