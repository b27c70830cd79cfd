// Package validation checks event envelopes before dispatch so malformed
// requests fail locally instead of burning a remote call.
package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"formcloud-bridge/internal/common/errors"
	"formcloud-bridge/internal/models"
)

// EnvelopeValidator validates event envelopes against their struct tags.
// It is safe for concurrent use.
type EnvelopeValidator struct {
	validate *validator.Validate
}

// NewEnvelopeValidator creates an envelope validator.
func NewEnvelopeValidator() *EnvelopeValidator {
	return &EnvelopeValidator{
		validate: validator.New(),
	}
}

// Validate checks the envelope and returns a validation error naming every
// failing field, or nil when the envelope is well formed.
func (v *EnvelopeValidator) Validate(envelope *models.EventEnvelope) error {
	err := v.validate.Struct(envelope)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.ValidationError(err.Error())
	}

	failures := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		failures = append(failures, fmt.Sprintf("%s failed %s", fieldErr.Field(), fieldErr.Tag()))
	}
	return errors.ValidationError("envelope validation failed: " + strings.Join(failures, "; "))
}
