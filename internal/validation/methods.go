// Package validation checks request payloads before they reach the services.
// Struct rules come from `validate` tags; a few parkpay specific tags are
// registered on the shared validator.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"parkpay/internal/models"

	"github.com/go-playground/validator/v10"
)

var (
	currencyRegex  = regexp.MustCompile(`^[A-Z]{3}$`)
	referenceRegex = regexp.MustCompile(`^[A-Za-z0-9._:\-]+$`)

	validate = newValidate()
)

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return currencyRegex.MatchString(fl.Field().String())
	})
	// reference is a caller-chosen idempotency key; ledger_reference names an
	// existing entry and may be a derived one.
	_ = v.RegisterValidation("reference", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || (wellFormedReference(s) && !models.IsReservedReference(s))
	})
	_ = v.RegisterValidation("ledger_reference", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || wellFormedReference(s)
	})
	return v
}

func wellFormedReference(s string) bool {
	return len(s) <= MaxReferenceLength && referenceRegex.MatchString(s)
}

// Validator collects field errors
type Validator struct {
	Errors map[string]string
}

// New creates a new validator
func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid checks if there are any validation errors
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError records the first error seen for a field
func (v *Validator) AddError(field, message string) {
	if _, exists := v.Errors[field]; !exists {
		v.Errors[field] = message
	}
}

// Check adds an error if the condition is false
func (v *Validator) Check(ok bool, field, message string) {
	if !ok {
		v.AddError(field, message)
	}
}

// Struct runs the tag rules of s and records every failing field.
func (v *Validator) Struct(s interface{}) {
	err := validate.Struct(s)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.AddError("body", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		v.AddError(fe.Field(), message(fe))
	}
}

// Error returns the collected errors as one error, or nil.
func (v *Validator) Error() error {
	if v.Valid() {
		return nil
	}
	return &Error{Fields: v.Errors}
}

// Error is returned for payloads that failed validation.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+" "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Struct validates s with a fresh Validator.
func Struct(s interface{}) error {
	v := New()
	v.Struct(s)
	return v.Error()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "currency":
		return "must be a three letter ISO code"
	case "reference":
		if ref, _ := fe.Value().(string); models.IsReservedReference(ref) {
			return "uses a reserved prefix or suffix"
		}
		return fmt.Sprintf("must be at most %d characters of letters, digits, '.', '_', ':' or '-'", MaxReferenceLength)
	case "ledger_reference":
		return fmt.Sprintf("must be at most %d characters of letters, digits, '.', '_', ':' or '-'", MaxReferenceLength)
	default:
		return "is invalid"
	}
}
