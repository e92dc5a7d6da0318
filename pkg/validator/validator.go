package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationErrors maps field names to human-readable messages.
type ValidationErrors map[string]string

func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validate checks a struct against its `validate` tags.
func Validate(s any) ValidationErrors {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return ValidationErrors{"_": err.Error()}
	}

	errs := make(ValidationErrors, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs[strings.ToLower(fe.Field())] = message(fe)
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Must be a valid email address"
	case "min":
		return "Must be at least " + fe.Param() + " characters"
	case "max":
		return "Must be at most " + fe.Param() + " characters"
	case "alphanum":
		return "Must contain only letters and numbers"
	case "uuid":
		return "Must be a valid ID"
	default:
		return "Invalid value"
	}
}
