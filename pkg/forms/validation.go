package forms

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Validator validates a field value.
type Validator interface {
	// Validate checks if the value is valid.
	Validate(value any) error

	// Message returns the user-facing error message.
	Message() string
}

// Check runs validators against value in order and records the first failing
// validator's message under field. It reports whether the value passed.
func Check(errs ErrorMap, field string, value any, validators ...Validator) bool {
	for _, v := range validators {
		if v == nil {
			continue
		}
		if err := v.Validate(value); err != nil {
			errs.Set(field, v.Message())
			return false
		}
	}
	return true
}

// Lengther is implemented by collections that know their size.
type Lengther interface {
	Len() int
}

// RequiredValidator validates that a field is not empty. Strings are trimmed
// before the check.
type RequiredValidator struct{}

func (v RequiredValidator) Validate(value any) error {
	if isEmpty(value) {
		return errors.New("required")
	}
	return nil
}

func (v RequiredValidator) Message() string {
	return "This field is required"
}

// EmailValidator validates email shape. Empty values pass; pair it with
// Required when the field is mandatory.
type EmailValidator struct{}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func (v EmailValidator) Validate(value any) error {
	str, ok := value.(string)
	if !ok {
		return errors.New("invalid email")
	}
	str = strings.TrimSpace(str)
	if str == "" {
		return nil
	}
	if !emailRegex.MatchString(str) {
		return errors.New("invalid email")
	}
	return nil
}

func (v EmailValidator) Message() string {
	return "Please enter a valid email address"
}

// MinIntValidator validates that a textual value parses as an integer not
// below Min.
type MinIntValidator struct {
	Min int
}

func (v MinIntValidator) Validate(value any) error {
	var n int
	switch val := value.(type) {
	case int:
		n = val
	case int64:
		n = int(val)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("not an integer: %w", err)
		}
		n = parsed
	default:
		return errors.New("not an integer")
	}
	if n < v.Min {
		return fmt.Errorf("must be at least %d", v.Min)
	}
	return nil
}

func (v MinIntValidator) Message() string {
	return fmt.Sprintf("Must be at least %d", v.Min)
}

// MinItemsValidator validates that a collection holds at least Min entries.
type MinItemsValidator struct {
	Min int
}

func (v MinItemsValidator) Validate(value any) error {
	if n := lengthOf(value); n < v.Min {
		return fmt.Errorf("has %d items, want at least %d", n, v.Min)
	}
	return nil
}

func (v MinItemsValidator) Message() string {
	return fmt.Sprintf("Select at least %d", v.Min)
}

// OneOfValidator validates that a string is one of the allowed values.
type OneOfValidator struct {
	Values []string
}

func (v OneOfValidator) Validate(value any) error {
	str, _ := value.(string)
	for _, allowed := range v.Values {
		if str == allowed {
			return nil
		}
	}
	return errors.New("invalid option")
}

func (v OneOfValidator) Message() string {
	return "Invalid selection"
}

// CustomValidator allows custom validation functions.
type CustomValidator struct {
	Fn  func(value any) error
	Msg string
}

func (v CustomValidator) Validate(value any) error {
	return v.Fn(value)
}

func (v CustomValidator) Message() string {
	return v.Msg
}

type messageOverride struct {
	Validator
	msg string
}

func (m messageOverride) Message() string {
	return m.msg
}

// WithMessage wraps v so that failures report msg.
func WithMessage(v Validator, msg string) Validator {
	return messageOverride{Validator: v, msg: msg}
}

func isEmpty(value any) bool {
	switch val := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []string:
		return len(val) == 0
	case []any:
		return len(val) == 0
	case Lengther:
		return val.Len() == 0
	case interface{ IsZero() bool }:
		return val.IsZero()
	}
	return false
}

func lengthOf(value any) int {
	switch val := value.(type) {
	case nil:
		return 0
	case []string:
		return len(val)
	case []any:
		return len(val)
	case Lengther:
		return val.Len()
	}
	return 0
}

// Required returns a required validator.
func Required() Validator {
	return RequiredValidator{}
}

// Email returns an email validator.
func Email() Validator {
	return EmailValidator{}
}

// MinInt returns an integer lower-bound validator.
func MinInt(n int) Validator {
	return MinIntValidator{Min: n}
}

// MinItems returns a collection size validator.
func MinItems(n int) Validator {
	return MinItemsValidator{Min: n}
}

// OneOf returns a one-of validator.
func OneOf(values ...string) Validator {
	return OneOfValidator{Values: values}
}

// Custom returns a custom validator.
func Custom(fn func(value any) error, msg string) Validator {
	return CustomValidator{Fn: fn, Msg: msg}
}
