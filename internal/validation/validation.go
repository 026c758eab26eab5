// Package validation configures the struct-tag validator shared by the HTTP
// handlers and the services, and renders its failures as client messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	validators "github.com/go-playground/validator/v10/non-standard/validators"
)

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9]{9,15}$`)
	pinPattern   = regexp.MustCompile(`^[0-9]{4,10}$`)
)

// New returns a validator that names fields by their json tag and knows the
// ledger's custom rules:
//
//	notblank   non-empty after trimming whitespace
//	phone      9 to 15 digits with an optional leading +
//	pin        4 to 10 digits
//	maxbytes   byte length at most the parameter
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	mustRegister(v, "notblank", validators.NotBlank)
	mustRegister(v, "phone", matches(phonePattern))
	mustRegister(v, "pin", matches(pinPattern))
	mustRegister(v, "maxbytes", maxBytes)
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

func maxBytes(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= n
}

// Message renders the first rule err reports as "field: reason". Errors that
// did not come from the validator are returned as is.
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	return fe.Field() + ": " + reason(fe)
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "this field is required"
	case "max":
		return fmt.Sprintf("ensure this field has no more than %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("ensure this field has at least %s characters", fe.Param())
	case "maxbytes":
		return fmt.Sprintf("ensure this field has no more than %s bytes", fe.Param())
	case "phone":
		return "must be 9 to 15 digits"
	case "pin":
		return "must be 4 to 10 digits"
	case "email":
		return "enter a valid email address"
	}
	return "is invalid"
}
