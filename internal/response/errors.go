package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrEmailNotVerified   ErrCode = "EMAIL_NOT_VERIFIED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden   ErrCode = "FORBIDDEN"
	ErrNotEnrolled ErrCode = "NOT_ENROLLED"
	ErrWrongRole   ErrCode = "WRONG_ROLE"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrInvalidState     ErrCode = "INVALID_STATE"
	ErrAlreadyCompleted ErrCode = "ALREADY_COMPLETED"
	ErrLimitReached     ErrCode = "LIMIT_REACHED"
	ErrNoQuestions      ErrCode = "NO_QUESTIONS"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrSessionInvalidated:
		return "Your session has expired. Please log in again."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrEmailNotVerified:
		return "Please verify your email address before logging in."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrNotEnrolled:
		return "You are not enrolled in this exam."
	case ErrWrongRole:
		return "This resource is restricted to another role."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	case ErrInvalidState:
		return "This operation is not allowed in the attempt's current state."
	case ErrAlreadyCompleted:
		return "You have already completed this exam."
	case ErrLimitReached:
		return "Maximum attempts reached for this exam."
	case ErrNoQuestions:
		return "This exam has no questions. Please contact the administrator."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
