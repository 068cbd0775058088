package utils

import (
	"errors"
	"fmt"
	"strings"

	pkgerrors "flowboard/pkg/errors"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return v
}

// ValidateStruct validates a struct based on its validation tags. Failures
// come back as a single ValidationError with one detail per field.
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return pkgerrors.NewValidationError(err.Error()).WithCode(pkgerrors.CodeInvalidInput)
	}

	messages := make([]string, 0, len(validationErrors))
	appErr := pkgerrors.NewValidationError("").WithCode(pkgerrors.CodeInvalidInput)
	for _, e := range validationErrors {
		msg := formatFieldError(e)
		messages = append(messages, msg)
		appErr = appErr.WithDetail(strings.ToLower(e.Field()), msg)
	}
	appErr.Message = strings.Join(messages, "; ")
	return appErr
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid id", field)
	case "notblank":
		return fmt.Sprintf("%s cannot be blank", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
