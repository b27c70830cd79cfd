package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formcloud-bridge/internal/common/errors"
	"formcloud-bridge/internal/models"
)

func newTestEngine() *Engine {
	return NewEngine("", []string{"pods_quantity_picklist", "number_of_pods_left"})
}

func normalize(t *testing.T, e *Engine, raw *models.RawSubmission) models.CanonicalEventPayload {
	t.Helper()
	data, guid, err := e.Normalize(raw, raw.Kind)
	require.NoError(t, err)
	require.NotEmpty(t, guid)
	return data
}

func TestNormalizeDateOfBirth(t *testing.T) {
	e := newTestEngine()

	t.Run("rebuilds ISO date as US format", func(t *testing.T) {
		data := normalize(t, e, &models.RawSubmission{
			Kind:   models.FormKindOther,
			Fields: map[string]interface{}{"date_of_birth": "1990-07-04"},
		})
		assert.Equal(t, "07/04/1990", data["date_of_birth"])
	})

	t.Run("truncates a long day segment", func(t *testing.T) {
		data := normalize(t, e, &models.RawSubmission{
			Kind:   models.FormKindOther,
			Fields: map[string]interface{}{"date_of_birth": "1990-07-04T00:00"},
		})
		assert.Equal(t, "07/04/1990", data["date_of_birth"])
	})

	t.Run("rejects a malformed date", func(t *testing.T) {
		_, _, err := e.Normalize(&models.RawSubmission{
			Kind:   models.FormKindOther,
			Fields: map[string]interface{}{"date_of_birth": "04/07/1990"},
		}, models.FormKindOther)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeTransformation))
	})

	t.Run("absent date is not an error", func(t *testing.T) {
		data := normalize(t, e, &models.RawSubmission{
			Kind:   models.FormKindOther,
			Fields: map[string]interface{}{"first_name": "Ada"},
		})
		_, present := data["date_of_birth"]
		assert.False(t, present)
	})
}

func TestNormalizePhonePrefix(t *testing.T) {
	t.Run("prefix is prepended", func(t *testing.T) {
		e := NewEngine("+1", nil)
		data := normalize(t, e, &models.RawSubmission{
			Kind:   models.FormKindOther,
			Fields: map[string]interface{}{"contact_phone_number": "5551234"},
		})
		assert.Equal(t, "+15551234", data["contact_phone_number"])
	})

	t.Run("empty prefix leaves the value alone", func(t *testing.T) {
		e := NewEngine("", nil)
		data := normalize(t, e, &models.RawSubmission{
			Kind:   models.FormKindOther,
			Fields: map[string]interface{}{"contact_phone_number": "5551234"},
		})
		assert.Equal(t, "5551234", data["contact_phone_number"])
	})
}

func TestNormalizeBooleanCoercion(t *testing.T) {
	e := newTestEngine()

	t.Run("ones and zeroes become TRUE and FALSE", func(t *testing.T) {
		data := normalize(t, e, &models.RawSubmission{
			Kind: models.FormKindOther,
			Fields: map[string]interface{}{
				"newsletter_opt_in": "1",
				"age_verification":  1,
				"marketing_opt_in":  float64(1),
				"warranty_update":   "0",
				"product_question":  0,
			},
		})
		assert.Equal(t, "TRUE", data["newsletter_opt_in"])
		assert.Equal(t, "TRUE", data["age_verification"])
		assert.Equal(t, "TRUE", data["marketing_opt_in"])
		assert.Equal(t, "FALSE", data["warranty_update"])
		assert.Equal(t, "FALSE", data["product_question"])
	})

	t.Run("exempt quantity fields pass through verbatim", func(t *testing.T) {
		data := normalize(t, e, &models.RawSubmission{
			Kind: models.FormKindOther,
			Fields: map[string]interface{}{
				"pods_quantity_picklist": "1",
				"number_of_pods_left":    "0",
			},
		})
		assert.Equal(t, "1", data["pods_quantity_picklist"])
		assert.Equal(t, "0", data["number_of_pods_left"])
	})

	t.Run("non boolean values are untouched", func(t *testing.T) {
		data := normalize(t, e, &models.RawSubmission{
			Kind: models.FormKindOther,
			Fields: map[string]interface{}{
				"first_name": "Ada",
				"quantity":   "10",
			},
		})
		assert.Equal(t, "Ada", data["first_name"])
		assert.Equal(t, "10", data["quantity"])
	})

	t.Run("coercion is idempotent", func(t *testing.T) {
		data := normalize(t, e, &models.RawSubmission{
			Kind:   models.FormKindOther,
			Fields: map[string]interface{}{"opt_in": "TRUE"},
		})
		assert.Equal(t, "TRUE", data["opt_in"])
	})
}

func TestNormalizeCampaignToken(t *testing.T) {
	e := newTestEngine()

	t.Run("ctoken from the page URL", func(t *testing.T) {
		data := normalize(t, e, &models.RawSubmission{
			Kind:           models.FormKindOther,
			RequestContext: "/en-gb/reorder?ctoken=spring24&utm=x",
			Fields:         map[string]interface{}{"first_name": "Ada"},
		})
		assert.Equal(t, "spring24", data["campaignid"])
	})

	t.Run("falls back to the campaignid field", func(t *testing.T) {
		data := normalize(t, e, &models.RawSubmission{
			Kind:           models.FormKindOther,
			RequestContext: "/en-gb/reorder",
			Fields:         map[string]interface{}{"campaignid": "fallback-id"},
		})
		assert.Equal(t, "fallback-id", data["campaignid"])
	})

	t.Run("url token wins over the field", func(t *testing.T) {
		data := normalize(t, e, &models.RawSubmission{
			Kind:           models.FormKindOther,
			RequestContext: "?ctoken=fromurl",
			Fields:         map[string]interface{}{"campaignid": "fromfield"},
		})
		assert.Equal(t, "fromurl", data["campaignid"])
	})

	t.Run("no token and no field leaves campaignid unset", func(t *testing.T) {
		data := normalize(t, e, &models.RawSubmission{
			Kind:   models.FormKindOther,
			Fields: map[string]interface{}{"first_name": "Ada"},
		})
		_, present := data["campaignid"]
		assert.False(t, present)
	})
}

func TestNormalizeGUID(t *testing.T) {
	e := newTestEngine()

	data1, guid1, err := e.Normalize(&models.RawSubmission{
		Kind:   models.FormKindOther,
		Fields: map[string]interface{}{"a": "b"},
	}, models.FormKindOther)
	require.NoError(t, err)
	_, guid2, err := e.Normalize(&models.RawSubmission{
		Kind:   models.FormKindOther,
		Fields: map[string]interface{}{"a": "b"},
	}, models.FormKindOther)
	require.NoError(t, err)

	assert.Equal(t, guid1, data1["guid"])
	assert.NotEqual(t, guid1, guid2)
}

func TestNormalizeSummaryGating(t *testing.T) {
	e := newTestEngine()

	t.Run("no summary without all_responses", func(t *testing.T) {
		data := normalize(t, e, &models.RawSubmission{
			Kind:   models.FormKindOther,
			Fields: map[string]interface{}{"first_name": "Ada"},
		})
		_, present := data["all_responses"]
		assert.False(t, present)
	})

	t.Run("summary sees normalized values", func(t *testing.T) {
		e := NewEngine("+1", []string{"pods_quantity_picklist"})
		data := normalize(t, e, &models.RawSubmission{
			Kind: models.FormKindOther,
			Fields: map[string]interface{}{
				"all_responses":        "contact_phone_number opt_in",
				"contact_phone_number": "5551234",
				"opt_in":               "1",
			},
		})
		summary, ok := data["all_responses"].(string)
		require.True(t, ok)
		assert.Equal(t, "\r\n+15551234\r\nTRUE\r\n", summary)
	})

	t.Run("does not mutate the raw submission", func(t *testing.T) {
		raw := &models.RawSubmission{
			Kind:   models.FormKindOther,
			Fields: map[string]interface{}{"opt_in": "1"},
		}
		normalize(t, e, raw)
		assert.Equal(t, "1", raw.Fields["opt_in"])
	})
}
