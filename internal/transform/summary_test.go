package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"formcloud-bridge/internal/models"
)

func TestContactSummary(t *testing.T) {
	declared := []string{
		"first_name", "last_name", "contact_phone_number", "email_address",
		"country", "warranty_update", "address_change", "physician_change",
		"insurance_change", "product_question", "general_inquiry",
		"message", "age_verification",
	}

	t.Run("full submission renders every block in order", func(t *testing.T) {
		values := map[string]interface{}{
			"first_name":           "Ada",
			"last_name":            "Lovelace",
			"contact_phone_number": "+15551234",
			"email_address":        "ada@example.com",
			"country":              "US",
			"warranty_update":      "TRUE",
			"address_change":       "FALSE",
			"physician_change":     "TRUE",
			"insurance_change":     "FALSE",
			"product_question":     "TRUE",
			"general_inquiry":      "TRUE",
			"message":              "Need a replacement unit.",
			"age_verification":     "TRUE",
		}

		got := contactSummary{}.Build(declared, values)

		want := "\r\nContact Name: Ada Lovelace\r\n" +
			"Contact Phone Number: +15551234\r\n" +
			"Contact Email Address: ada@example.com\r\n" +
			"Contact Country: US\r\n\r\n" +
			"Contact has questions regarding warranty\r\n" +
			"Contact has questions regarding a physician change\r\n" +
			"Contact has a product question\r\n" +
			"Contact has questions regarding general inquiry\r\n\r\n" +
			"Contact Wrote: \r\nNeed a replacement unit.\r\n" +
			"\r\nAge Verification: TRUE\r\n"
		assert.Equal(t, want, got)
	})

	t.Run("false topics emit no sentence", func(t *testing.T) {
		values := map[string]interface{}{
			"warranty_update":  "FALSE",
			"product_question": "FALSE",
		}
		got := contactSummary{}.Build(declared, values)
		assert.NotContains(t, got, "warranty")
		assert.NotContains(t, got, "product question")
	})

	t.Run("unverified age emits no confirmation", func(t *testing.T) {
		values := map[string]interface{}{
			"age_verification": "FALSE",
		}
		got := contactSummary{}.Build(declared, values)
		assert.NotContains(t, got, "Age Verification")
	})

	t.Run("undeclared fields are ignored", func(t *testing.T) {
		values := map[string]interface{}{
			"message": "hello",
		}
		got := contactSummary{}.Build([]string{"message"}, values)
		assert.Equal(t, "Contact Wrote: \r\nhello\r\n", got)
	})
}

func TestReorderSummary(t *testing.T) {
	t.Run("quantity picklist gets the fixed caption", func(t *testing.T) {
		got := reorderSummary{}.Build(
			[]string{"pods_quantity_picklist"},
			map[string]interface{}{"pods_quantity_picklist": "3"},
		)
		assert.Equal(t, "Number_of_10_Pack_Pods_Required: 3\r\n", got)
		assert.Equal(t, 1, strings.Count(got, "3"))
	})

	t.Run("section breaks precede contact time and age verification", func(t *testing.T) {
		got := reorderSummary{}.Build(
			[]string{"first_name", "preferred_contact_time", "age_verification"},
			map[string]interface{}{
				"first_name":             "Ada",
				"preferred_contact_time": "morning",
				"age_verification":       "TRUE",
			},
		)
		want := "first_name: Ada\r\n" +
			"\r\npreferred_contact_time: morning\r\n" +
			"\r\nage_verification: TRUE\r\n"
		assert.Equal(t, want, got)
	})

	t.Run("missing fields are skipped but breaks still apply", func(t *testing.T) {
		got := reorderSummary{}.Build(
			[]string{"first_name", "age_verification"},
			map[string]interface{}{"age_verification": "TRUE"},
		)
		assert.Equal(t, "\r\nage_verification: TRUE\r\n", got)
	})
}

func TestPlainSummary(t *testing.T) {
	got := plainSummary{}.Build(
		[]string{"a", "missing", "b"},
		map[string]interface{}{"a": "one", "b": float64(2)},
	)
	assert.Equal(t, "one\r\n2\r\n", got)
}

func TestBuilderFor(t *testing.T) {
	assert.IsType(t, contactSummary{}, BuilderFor(models.FormKindContact))
	assert.IsType(t, reorderSummary{}, BuilderFor(models.FormKindReorder))
	assert.IsType(t, plainSummary{}, BuilderFor(models.FormKindOther))
}
