package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/fathima-sithara/placement-service/internal/models"
	"github.com/fathima-sithara/placement-service/internal/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json or query names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return ""
	})
	return v
}

// ValidationError represents a single field failure.
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationFailure is returned when a request body fails struct validation.
type ValidationFailure struct {
	Fields []ValidationError
}

func (v *ValidationFailure) Error() string {
	if len(v.Fields) == 0 {
		return services.ErrValidation.Error()
	}
	return fmt.Sprintf("%s: %s", services.ErrValidation, v.Fields[0].Message)
}

func (v *ValidationFailure) Unwrap() error {
	if v.hasRequired() {
		return services.ErrMissingRequiredField
	}
	return services.ErrValidation
}

func (v *ValidationFailure) hasRequired() bool {
	for _, f := range v.Fields {
		if f.Tag == "required" {
			return true
		}
	}
	return false
}

// FormatValidationErrors converts validator.ValidationErrors into a slice of ValidationError.
func FormatValidationErrors(err error) []ValidationError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make([]ValidationError, len(ve))
	for i, fe := range ve {
		field := fe.Namespace()
		if dot := strings.Index(field, "."); dot >= 0 {
			field = field[dot+1:]
		}
		out[i] = ValidationError{Field: field, Tag: fe.Tag()}
		switch fe.Tag() {
		case "required":
			out[i].Message = fmt.Sprintf("%s is required", field)
		case "email":
			out[i].Message = fmt.Sprintf("%s must be a valid email address", field)
		case "min":
			out[i].Message = fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
		case "max":
			out[i].Message = fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
		case "len":
			out[i].Message = fmt.Sprintf("%s must be exactly %s characters long", field, fe.Param())
		case "numeric":
			out[i].Message = fmt.Sprintf("%s must contain digits only", field)
		case "oneof":
			out[i].Message = fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
		default:
			out[i].Message = fmt.Sprintf("%s failed on the '%s' rule", field, fe.Tag())
		}
	}
	return out
}

// ParseBody decodes the JSON body into dst and validates its struct tags. String
// fields validated as emails are normalized first.
func ParseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", services.ErrValidation)
	}
	normalizeEmails(dst)
	if err := validate.Struct(dst); err != nil {
		if fields := FormatValidationErrors(err); fields != nil {
			return &ValidationFailure{Fields: fields}
		}
		return fmt.Errorf("%w: %v", services.ErrValidation, err)
	}
	return nil
}

// ParseQuery decodes query parameters into dst and validates its struct tags.
func ParseQuery(c *fiber.Ctx, dst interface{}) error {
	if err := c.QueryParser(dst); err != nil {
		return fmt.Errorf("%w: malformed query parameters", services.ErrValidation)
	}
	if err := validate.Struct(dst); err != nil {
		if fields := FormatValidationErrors(err); fields != nil {
			return &ValidationFailure{Fields: fields}
		}
		return fmt.Errorf("%w: %v", services.ErrValidation, err)
	}
	return nil
}

func normalizeEmails(dst interface{}) {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return
	}
	v = v.Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := v.Field(i)
		if f.Kind() != reflect.String || !f.CanSet() {
			continue
		}
		for _, rule := range strings.Split(t.Field(i).Tag.Get("validate"), ",") {
			if rule == "email" {
				f.SetString(models.NormalizeEmail(f.String()))
				break
			}
		}
	}
}
