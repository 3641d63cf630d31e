package api

// Error codes for standardized API responses
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeInternalServer   = "INTERNAL_SERVER_ERROR"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
)

// Standard error messages
const (
	MsgNotFound            = "Resource not found"
	MsgInternalServerError = "An internal server error occurred"
)
