package webserver

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/mdouchement/chunkd/internal/webserver/service"
	"github.com/pkg/errors"
)

// A formValidator validates the bound forms against their `validate` tags.
type formValidator struct {
	validate *validator.Validate
}

// NewValidator returns an echo.Validator reporting the form field names.
func NewValidator() echo.Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &formValidator{validate: v}
}

// Validate implements echo.Validator.
// Missing fields take precedence over malformed ones.
func (v *formValidator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate")
	}

	var missing, invalid []string
	for _, ferr := range verrs {
		if ferr.Tag() == "required" {
			missing = append(missing, ferr.Field())
			continue
		}
		invalid = append(invalid, ferr.Field())
	}

	if len(missing) > 0 {
		return service.NewMissingFieldsError(missing...)
	}
	return service.NewInvalidFieldsError(invalid...)
}
