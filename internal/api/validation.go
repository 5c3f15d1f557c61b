package api

import (
	"fmt"
	"strings"
)

// ValidateBufferSize checks a buffer size against the sizes the backend accepts
func ValidateBufferSize(size int) error {
	for _, s := range BufferSizes {
		if s == size {
			return nil
		}
	}
	return NewValidationError(fmt.Sprintf("buffer size must be one of %v, got %d", BufferSizes, size))
}

// ValidateSampleRate checks a sample rate against the rates the backend accepts
func ValidateSampleRate(rate int) error {
	for _, r := range SampleRates {
		if r == rate {
			return nil
		}
	}
	return NewValidationError(fmt.Sprintf("sample rate must be one of %v, got %d", SampleRates, rate))
}

// ValidateDeviceIndex checks that a device index is not negative
func ValidateDeviceIndex(field string, index *int) error {
	if index != nil && *index < 0 {
		return NewValidationError(fmt.Sprintf("%s must be a non-negative device index, got %d", field, *index))
	}
	return nil
}

// ValidateConfig validates a complete configuration.
// Returns a slice of validation errors (empty if valid).
func ValidateConfig(c Config) []error {
	var errs []error

	if err := ValidateBufferSize(c.BufferSize); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateSampleRate(c.SampleRate); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateDeviceIndex("input device", c.InputDevice); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateDeviceIndex("output device", c.OutputDevice); err != nil {
		errs = append(errs, err)
	}
	if c.Enabled && !c.DevicesSelected() {
		errs = append(errs, ErrDevicesRequired)
	}

	return errs
}

// ValidateConfigEdit checks only the fields an edit sets, before it is merged
func ValidateConfigEdit(e ConfigEdit) error {
	if e.BufferSize != nil {
		if err := ValidateBufferSize(*e.BufferSize); err != nil {
			return err
		}
	}
	if e.SampleRate != nil {
		if err := ValidateSampleRate(*e.SampleRate); err != nil {
			return err
		}
	}
	if err := ValidateDeviceIndex("input device", e.InputDevice); err != nil {
		return err
	}
	return ValidateDeviceIndex("output device", e.OutputDevice)
}

// ValidateProfileName rejects empty or whitespace-only names
func ValidateProfileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewValidationError("profile name cannot be empty")
	}
	return nil
}

// ErrDevicesRequired is returned when processing is enabled without both devices
var ErrDevicesRequired = NewValidationError("select both an input and an output device before enabling")

// FirstError returns the first error of a validation result, or nil
func FirstError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}
