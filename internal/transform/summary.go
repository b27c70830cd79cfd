package transform

import (
	"strings"

	"formcloud-bridge/internal/models"
)

// SummaryBuilder renders the composite all_responses block for one form
// kind. Builders receive the declared field names in listed order and the
// already-normalized working values.
type SummaryBuilder interface {
	Build(declared []string, values map[string]interface{}) string
}

// BuilderFor returns the summary strategy for a form kind.
func BuilderFor(kind models.FormKind) SummaryBuilder {
	switch kind {
	case models.FormKindReorder:
		return reorderSummary{}
	case models.FormKindContact:
		return contactSummary{}
	default:
		return plainSummary{}
	}
}

// reorderSummary labels each field with its machine name, relabels the
// quantity picklist under a fixed caption, and inserts section breaks
// ahead of the preferred contact time and age verification lines.
type reorderSummary struct{}

func (reorderSummary) Build(declared []string, values map[string]interface{}) string {
	var b strings.Builder
	for _, field := range declared {
		if field == FieldQuantity {
			// Relabeled caption; keep the field off the default label path
			// so it is not emitted twice
			if v, ok := values[FieldQuantity]; ok {
				b.WriteString("Number_of_10_Pack_Pods_Required: " + stringify(v) + crlf)
			}
			continue
		}

		if field == "preferred_contact_time" || field == "age_verification" {
			b.WriteString(crlf)
		}

		if v, ok := values[field]; ok {
			b.WriteString(field + ": " + stringify(v) + crlf)
		}
	}
	return b.String()
}

// contactSummary emits the fixed semantic blocks required for contact
// forms: name, phone, email, country, boolean topic sentences, the
// free-text message, and the age verification confirmation.
type contactSummary struct{}

func (contactSummary) Build(declared []string, values map[string]interface{}) string {
	var b strings.Builder
	for _, field := range declared {
		switch field {
		case "first_name":
			b.WriteString(crlf + "Contact Name: " + stringify(values["first_name"]) +
				" " + stringify(values["last_name"]) + crlf)
		case FieldPhone:
			b.WriteString("Contact Phone Number: " + stringify(values[FieldPhone]) + crlf)
		case "email_address":
			b.WriteString("Contact Email Address: " + stringify(values["email_address"]) + crlf)
		case "country":
			b.WriteString("Contact Country: " + stringify(values["country"]) + crlf + crlf)
		case "warranty_update":
			if isTrue(values, "warranty_update") {
				b.WriteString("Contact has questions regarding warranty" + crlf)
			}
		case "address_change":
			if isTrue(values, "address_change") {
				b.WriteString("Contact has questions regarding contact details" + crlf)
			}
		case "physician_change":
			if isTrue(values, "physician_change") {
				b.WriteString("Contact has questions regarding a physician change" + crlf)
			}
		case "insurance_change":
			if isTrue(values, "insurance_change") {
				b.WriteString("Contact has changes to insurance details" + crlf)
			}
		case "product_question":
			if isTrue(values, "product_question") {
				b.WriteString("Contact has a product question" + crlf)
			}
		case "general_inquiry":
			if isTrue(values, "general_inquiry") {
				b.WriteString("Contact has questions regarding general inquiry" + crlf + crlf)
			}
		case "message":
			if v, ok := values["message"]; ok {
				b.WriteString("Contact Wrote: " + crlf + stringify(v) + crlf)
			}
		case "age_verification":
			if isTrue(values, "age_verification") {
				b.WriteString(crlf + "Age Verification: TRUE" + crlf)
			}
		}
	}
	return b.String()
}

// plainSummary appends each declared field's value with no label, one per
// line. Missing fields are skipped.
type plainSummary struct{}

func (plainSummary) Build(declared []string, values map[string]interface{}) string {
	var b strings.Builder
	for _, field := range declared {
		if v, ok := values[field]; ok {
			b.WriteString(stringify(v) + crlf)
		}
	}
	return b.String()
}

// isTrue reports whether a coerced boolean field is present and TRUE.
func isTrue(values map[string]interface{}, field string) bool {
	v, ok := values[field]
	return ok && v == "TRUE"
}
