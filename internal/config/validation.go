package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/blackwell-systems/bidctl/internal/bidding"
)

// Validator wraps validator.Validate with bidctl's custom tags.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator with the loglevel and action tags
// registered.
func NewValidator() *Validator {
	v := validator.New()
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("action", validateAction)
	return &Validator{validate: v}
}

// Validate checks cfg with the default validator.
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate runs the struct tags and then the rule-level checks.
func (v *Validator) Validate(cfg *Config) error {
	if err := v.validate.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(verrs)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	if _, err := cfg.BuildRules(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func validateLogLevel(fl validator.FieldLevel) bool {
	_, err := logrus.ParseLevel(fl.Field().String())
	return err == nil
}

func validateAction(fl validator.FieldLevel) bool {
	_, err := bidding.ParseAction(fl.Field().String())
	return err == nil
}

// formatValidationErrors turns validator output into one readable error.
func formatValidationErrors(verrs validator.ValidationErrors) error {
	var b strings.Builder
	for _, fe := range verrs {
		field := fe.Namespace()
		switch fe.Tag() {
		case "required":
			fmt.Fprintf(&b, "- Field '%s' is required\n", field)
		case "gt", "gte", "lt", "lte":
			fmt.Fprintf(&b, "- Field '%s' must be %s %s, got '%v'\n", field, fe.Tag(), fe.Param(), fe.Value())
		case "oneof":
			fmt.Fprintf(&b, "- Field '%s' must be one of: %s, got '%v'\n", field, fe.Param(), fe.Value())
		case "loglevel":
			fmt.Fprintf(&b, "- Field '%s' must be a log level (debug, info, warn, error), got '%v'\n", field, fe.Value())
		case "action":
			fmt.Fprintf(&b, "- Field '%s' must be one of: increase, decrease, pause, no_change, got '%v'\n", field, fe.Value())
		default:
			fmt.Fprintf(&b, "- Field '%s' failed validation: %s\n", field, fe.Tag())
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", b.String())
}
