package common

import (
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-fieldsales/internal/ledger"
	"github.com/noah-isme/backend-fieldsales/internal/pricing"
	"github.com/noah-isme/backend-fieldsales/internal/refdata"
)

// Error codes returned in the error envelope.
const (
	CodeBadRequest     = "BAD_REQUEST"
	CodeValidation     = "VALIDATION_FAILED"
	CodeLookup         = "LOOKUP_FAILED"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeAlreadyExists  = "ALREADY_EXISTS"
	CodeStoreDown      = "STORE_UNAVAILABLE"
	CodeInternal       = "INTERNAL"
	CodeIdempotentCall = "IDEMPOTENT_REPLAY"
)

// Sentinels wrapped by service errors so the HTTP layer can classify them.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	// ErrTransition rejects a status change the record's current state forbids.
	ErrTransition = errors.New("invalid status transition")
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// Classify maps service errors onto the API error codes. Unknown errors
// become INTERNAL with a generic message.
func Classify(err error) *AppError {
	var app *AppError
	if errors.As(err, &app) {
		return app
	}
	var invalid validator.ValidationErrors
	switch {
	case errors.As(err, &invalid):
		return &AppError{Code: CodeValidation, Message: "invalid payload", HTTPStatus: http.StatusUnprocessableEntity, Err: err, Details: fieldErrors(invalid)}
	case errors.Is(err, ErrValidation), errors.Is(err, pricing.ErrInvalidQuantity), errors.Is(err, pricing.ErrNoItems),
		errors.Is(err, refdata.ErrIncompleteOutlet):
		return NewAppError(CodeValidation, err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, refdata.ErrNotFound):
		return NewAppError(CodeLookup, err.Error(), http.StatusNotFound, err)
	case errors.Is(err, ErrNotFound), errors.Is(err, ledger.ErrNoBackup), errors.Is(err, ledger.ErrTableNotFound):
		return NewAppError(CodeNotFound, err.Error(), http.StatusNotFound, err)
	case errors.Is(err, ErrAlreadyExists):
		return NewAppError(CodeAlreadyExists, err.Error(), http.StatusConflict, err)
	case errors.Is(err, ErrTransition):
		return NewAppError(CodeConflict, err.Error(), http.StatusConflict, err)
	case errors.Is(err, ledger.ErrConflict):
		return NewAppError(CodeConflict, "the record was changed concurrently, retry", http.StatusConflict, err)
	case errors.Is(err, ledger.ErrTransient):
		return NewAppError(CodeStoreDown, "ledger store unavailable", http.StatusServiceUnavailable, err)
	default:
		return NewAppError(CodeInternal, "internal error", http.StatusInternalServerError, err)
	}
}

// WriteError renders err with the canonical envelope.
func WriteError(w http.ResponseWriter, err error) {
	app := Classify(err)
	JSONError(w, app.HTTPStatus, app.Code, app.Message, app.Details)
}

func fieldErrors(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
