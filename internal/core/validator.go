package core

import (
	"log/slog"

	"github.com/go-playground/validator/v10"

	"beneplan/internal/types"
)

// Validator wraps go-playground/validator with the domain tags used by the
// checkout DTOs:
//
//	taxid   - Brazilian CPF with valid check digits, masked or bare
//	brphone - Brazilian mobile phone, 2-digit area code + 9-digit number
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers the domain tags.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New()
	// Registration only fails for empty tag names; both tags are literals.
	_ = v.RegisterValidation("taxid", func(fl validator.FieldLevel) bool {
		return types.ValidTaxID(types.NormalizeTaxID(fl.Field().String()))
	})
	_ = v.RegisterValidation("brphone", func(fl validator.FieldLevel) bool {
		_, _, ok := types.SplitPhone(types.NormalizePhone(fl.Field().String()))
		return ok
	})

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates dst against its struct tags. Failures map to a
// single AppError with a per-field detail map.
func (v *Validator) ValidateStruct(dst interface{}) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
	}

	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = "failed rule: " + fe.Tag()
	}
	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationMissingField,
		"request failed validation",
		err,
		details,
	)
}
