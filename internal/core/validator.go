package core

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"clinicremind/internal/types"
)

// Validator wraps go-playground/validator and maps failures to AppErrors.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	return &Validator{v: v}
}

// Struct validates s. The first failing field is reported; a timezone failure
// carries ErrCodeValidationTimezone, a cross-field time failure
// ErrCodeValidationTimeRange, anything else ErrCodeValidationMissingField.
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return types.NewAppError(types.ErrCodeValidationMissingField, "invalid request", err)
	}

	fe := verrs[0]
	code := types.ErrCodeValidationMissingField
	switch fe.Tag() {
	case "timezone":
		code = types.ErrCodeValidationTimezone
	case "gtfield", "ltfield":
		code = types.ErrCodeValidationTimeRange
	}
	return types.NewAppError(code, "field "+fe.Field()+" failed "+fe.Tag()+" validation", err).
		WithDetails(map[string]any{"field": fe.Field(), "rule": fe.Tag()})
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}
