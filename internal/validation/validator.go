// Package validation checks struct input against go-playground validate tags.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wye/wye-server/internal/model"
)

// Validator wraps a configured validator.Validate
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator reporting fields by their `field` tag name
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("field")
		if name == "" {
			return strings.ToLower(fld.Name[:1]) + fld.Name[1:]
		}
		return name
	})

	return &Validator{validate: v}
}

// Struct validates i and returns a *model.ValidationError listing every failing field
func (v *Validator) Struct(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	result := &model.ValidationError{}
	for _, fe := range validationErrs {
		result.Fields = append(result.Fields, model.FieldError{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}
	return result
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation for %s", fe.Tag())
	}
}
