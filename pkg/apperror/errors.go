package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches two AppErrors by code so errors.Is works against the constructors below.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "" if none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Generic input (GOV) ----

func ErrInvalidAmount() *AppError {
	return New("GOV_001", "Amount must be positive", http.StatusBadRequest)
}

// Validation returns a GOV_002 request validation error.
func Validation(message string) *AppError {
	return New("GOV_002", message, http.StatusBadRequest)
}

// ---- Donation exchange (EXC) ----

func ErrDonationOutOfBounds(min, max int64) *AppError {
	return New("EXC_001", fmt.Sprintf("Donation must be between %d and %d", min, max), http.StatusUnprocessableEntity)
}

func ErrMintFailed(err error) *AppError {
	return Wrap("EXC_002", "Token mint failed", http.StatusInternalServerError, err)
}

func ErrInvalidExchangeConfig(reason string) *AppError {
	return New("EXC_003", "Invalid exchange configuration: "+reason, http.StatusBadRequest)
}

// ---- Project registry (PRJ) ----

func ErrDuplicateExternalID() *AppError {
	return New("PRJ_001", "A project with this external id already exists", http.StatusConflict)
}

func ErrProjectNotFound() *AppError {
	return New("PRJ_002", "Project not found", http.StatusNotFound)
}

func ErrInvalidState(reason string) *AppError {
	return New("PRJ_003", "Operation not allowed in current project state: "+reason, http.StatusConflict)
}

func ErrAlreadyValidated() *AppError {
	return New("PRJ_004", "Validator has already validated this project", http.StatusConflict)
}

func ErrVotingStillOpen() *AppError {
	return New("PRJ_005", "Voting window is still open", http.StatusConflict)
}

func ErrAutoValidationDisabled() *AppError {
	return New("PRJ_006", "Auto-validation is disabled", http.StatusConflict)
}

func ErrAutoValidationNotDue() *AppError {
	return New("PRJ_007", "Project has not waited long enough for auto-validation", http.StatusConflict)
}

// ---- Voting (VOT) ----

func ErrVotingNotStarted() *AppError {
	return New("VOT_001", "Voting has not started for this project", http.StatusConflict)
}

func ErrVotingEnded() *AppError {
	return New("VOT_002", "Voting has ended for this project", http.StatusConflict)
}

func ErrAlreadyVoted() *AppError {
	return New("VOT_003", "Account has already voted on this project", http.StatusConflict)
}

func ErrInsufficientVotingPower(min int64) *AppError {
	return New("VOT_004", fmt.Sprintf("At least %d tokens are required to vote", min), http.StatusForbidden)
}

// ---- Authentication & authorization (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New("AUTH_002", "Username or account already registered", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrMemberSuspended() *AppError {
	return New("AUTH_004", "Member account is suspended", http.StatusForbidden)
}

func ErrUnauthorized(action string) *AppError {
	return New("AUTH_005", "Caller is not allowed to "+action, http.StatusForbidden)
}

func ErrMemberNotFound() *AppError {
	return New("AUTH_006", "Member not found", http.StatusNotFound)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// ErrLedgerCorrupted signals a broken supply invariant. Callers must treat it as fatal.
func ErrLedgerCorrupted(err error) *AppError {
	return Wrap("SYS_002", "Ledger invariant violated", http.StatusInternalServerError, err)
}
