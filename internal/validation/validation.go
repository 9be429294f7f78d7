// Package validation holds the shared struct validator and turns its errors
// into client-facing messages. Fields are reported by their JSON names.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// Struct validates v against its `validate` tags.
func Struct(v any) error {
	return validate.Struct(v)
}

// Message turns validator errors into a short readable message. Other errors
// are returned as-is.
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field '%s' is required", e.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("field '%s' must be a valid email address", e.Field()))
		case "http_url":
			msgs = append(msgs, fmt.Sprintf("field '%s' must be an absolute http or https URL", e.Field()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("field '%s' must be at least %s characters", e.Field(), e.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field '%s' must be at most %s characters", e.Field(), e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field '%s' failed on the '%s' tag", e.Field(), e.Tag()))
		}
	}
	return strings.Join(msgs, ", ")
}
