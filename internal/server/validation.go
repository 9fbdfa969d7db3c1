package server

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"paintrack/backend/internal/painlog"
)

var registerValidationOnce sync.Once

// registerValidation teaches gin's validator to report JSON field names and
// to check functional impact labels.
func registerValidation() {
	registerValidationOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		engine.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return field.Name
			}
			return name
		})
		_ = engine.RegisterValidation("impact", func(fl validator.FieldLevel) bool {
			_, valid := painlog.NormalizeImpact(fl.Field().String())
			return valid
		})
	})
}

// validationDetail renders a bind error the way clients read it, one clause
// per failing field.
func validationDetail(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "Invalid request payload"
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		messages = append(messages, formatFieldError(fieldErr))
	}
	return strings.Join(messages, "; ")
}

func formatFieldError(e validator.FieldError) string {
	field := e.Field()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "timezone":
		return fmt.Sprintf("%s must be an IANA timezone name", field)
	case "impact":
		return fmt.Sprintf("%s must be one of: none, limited, stopped, bed_bound", field)
	case "dive":
		return fmt.Sprintf("%s contains invalid values", field)
	}
	return fmt.Sprintf("%s is invalid", field)
}
