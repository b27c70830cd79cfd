package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formcloud-bridge/internal/common/errors"
	"formcloud-bridge/internal/models"
)

func TestEnvelopeValidator(t *testing.T) {
	v := NewEnvelopeValidator()

	t.Run("complete envelope passes", func(t *testing.T) {
		err := v.Validate(&models.EventEnvelope{
			ContactKey:          "guid-1",
			EventDefinitionKey:  "event-key",
			EstablishContactKey: true,
			Data:                models.CanonicalEventPayload{"a": "b"},
		})
		assert.NoError(t, err)
	})

	t.Run("missing contact key fails", func(t *testing.T) {
		err := v.Validate(&models.EventEnvelope{
			EventDefinitionKey: "event-key",
			Data:               models.CanonicalEventPayload{"a": "b"},
		})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
		assert.Contains(t, err.Error(), "ContactKey")
	})

	t.Run("missing event definition key fails", func(t *testing.T) {
		err := v.Validate(&models.EventEnvelope{
			ContactKey: "guid-1",
			Data:       models.CanonicalEventPayload{"a": "b"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EventDefinitionKey")
	})

	t.Run("nil data fails", func(t *testing.T) {
		err := v.Validate(&models.EventEnvelope{
			ContactKey:         "guid-1",
			EventDefinitionKey: "event-key",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Data")
	})
}
