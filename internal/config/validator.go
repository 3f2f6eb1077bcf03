package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers sessiond-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	// event_output: validates "stdout" or "file://<absolute-path>"
	if err := v.RegisterValidation("event_output", validateEventOutput); err != nil {
		return fmt.Errorf("failed to register event_output validator: %w", err)
	}
	return nil
}

// validateEventOutput validates the events output field.
// Valid values: "stdout" or "file://<absolute-path>"
func validateEventOutput(fl validator.FieldLevel) bool {
	output := fl.Field().String()

	// "stdout" is always valid
	if output == "stdout" {
		return true
	}

	// "file://<path>" requires an absolute path
	if strings.HasPrefix(output, "file://") {
		path := strings.TrimPrefix(output, "file://")
		return path != "" && filepath.IsAbs(path)
	}

	return false
}

// Validate validates the Config using struct tags and custom cross-field
// rules. Returns an error if validation fails, with actionable messages.
func (c *Config) Validate() error {
	// Create validator with required struct enabled
	v := validator.New(validator.WithRequiredStructEnabled())

	// Register custom validators
	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	// Run struct validation (tags)
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	// Cross-field validation: device thresholds must be ordered
	if err := c.validateDeviceThresholds(); err != nil {
		return err
	}

	// Cross-field validation: every duration string must parse
	if _, err := c.Durations(); err != nil {
		return err
	}

	return nil
}

// validateDeviceThresholds ensures the forced-reauth similarity cutoff
// sits at or below the flagging cutoff. A reauth cutoff above the flag
// cutoff would force reauth on devices never even flagged.
func (c *Config) validateDeviceThresholds() error {
	if c.Validation.DeviceReauthBelow > c.Validation.DeviceFlagBelow {
		return fmt.Errorf("validation: device_reauth_below (%v) must not exceed device_flag_below (%v)",
			c.Validation.DeviceReauthBelow, c.Validation.DeviceFlagBelow)
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			msg := formatSingleValidationError(e)
			messages = append(messages, msg)
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a
// single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "cidr":
		return fmt.Sprintf("%s must be a valid CIDR block", field)
	case "event_output":
		return fmt.Sprintf("%s must be 'stdout' or 'file://<absolute-path>'", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
