package core

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"psyche/internal/types"
)

// Validator wraps go-playground/validator and translates validation failures
// into the structured AppError shape handlers return to clients.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		validate: validator.New(),
		logger:   logger,
	}
}

// ValidateStruct validates a request struct against its `validate` tags.
// On failure it returns a 400-mapped AppError whose details list each failed
// field and the rule it violated.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		// Programming error: the value passed was not a struct.
		v.logger.Error("validator received a non-struct value", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "invalid validation target", err)
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return types.NewAppError(types.ErrCodeValidationFailed, "request validation failed", err)
	}

	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fe.Tag()
	}

	code := types.ErrCodeValidationFailed
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			code = types.ErrCodeValidationMissingField
		case "email":
			code = types.ErrCodeValidationInvalidEmail
		}
	}

	return types.NewAppErrorWithDetails(code, "request validation failed", err, details)
}
