// Package transform normalizes raw form submissions into canonical event
// payloads. Normalization applies field-specific rules (phone prefixing,
// date-of-birth reformatting, boolean coercion), extracts the campaign
// token, synthesizes the composite all_responses summary, and attaches a
// fresh correlation identifier.
package transform

import (
	"fmt"
	"strconv"
	"strings"

	"formcloud-bridge/internal/common/errors"
	"formcloud-bridge/internal/common/utils"
	"formcloud-bridge/internal/models"
)

// Well-known field names shared with the form definitions.
const (
	FieldPhone        = "contact_phone_number"
	FieldDateOfBirth  = "date_of_birth"
	FieldAllResponses = "all_responses"
	FieldCampaignID   = "campaignid"
	FieldQuantity     = "pods_quantity_picklist"
)

const crlf = "\r\n"

// Engine applies the normalization rules to raw submissions.
// It is stateless and safe for concurrent use.
type Engine struct {
	phonePrefix string
	exempt      map[string]struct{}
}

// NewEngine creates a transformation engine.
//
// phonePrefix, when non-empty, is prepended to the phone field before any
// other rule sees it. exemptFields lists quantity-style numeric fields that
// must never be boolean-coerced.
func NewEngine(phonePrefix string, exemptFields []string) *Engine {
	exempt := make(map[string]struct{}, len(exemptFields))
	for _, f := range exemptFields {
		f = strings.TrimSpace(f)
		if f != "" {
			exempt[f] = struct{}{}
		}
	}
	return &Engine{
		phonePrefix: phonePrefix,
		exempt:      exempt,
	}
}

// Normalize maps a raw submission into a canonical event payload and returns
// the payload together with the generated correlation identifier.
//
// Missing optional fields are omitted; the only error condition is a
// malformed date_of_birth value, which is surfaced rather than silently
// truncated into a corrupted payload.
func (e *Engine) Normalize(raw *models.RawSubmission, kind models.FormKind) (models.CanonicalEventPayload, string, error) {
	// Working copy: summary building sees the mutated values
	values := make(map[string]interface{}, len(raw.Fields))
	for k, v := range raw.Fields {
		values[k] = v
	}

	// Phone prefixing runs before any other rule
	if e.phonePrefix != "" {
		if v, ok := values[FieldPhone]; ok {
			values[FieldPhone] = e.phonePrefix + stringify(v)
		}
	}

	// Date of birth: YYYY-MM-DD -> MM/DD/YYYY
	if v, ok := values[FieldDateOfBirth]; ok {
		rebuilt, err := reformatDate(stringify(v))
		if err != nil {
			return nil, "", err
		}
		values[FieldDateOfBirth] = rebuilt
	}

	// Boolean coercion into the payload; exempt fields pass through verbatim
	data := make(models.CanonicalEventPayload, len(values)+2)
	for key, value := range values {
		if _, isExempt := e.exempt[key]; isExempt {
			data[key] = value
			continue
		}
		switch {
		case isOne(value):
			data[key] = "TRUE"
			values[key] = "TRUE"
		case isZero(value):
			data[key] = "FALSE"
			values[key] = "FALSE"
		default:
			data[key] = value
		}
	}

	// Campaign token from the page URL, falling back to the form field
	if token, ok := campaignToken(raw.RequestContext, values); ok {
		data[FieldCampaignID] = token
	}

	// Composite summary, only when the form declares the fields to include
	if declared, ok := values[FieldAllResponses]; ok {
		fields := strings.Fields(stringify(declared))
		data[FieldAllResponses] = crlf + BuilderFor(kind).Build(fields, values)
	}

	guid := utils.NewCorrelationID()
	data["guid"] = guid

	return data, guid, nil
}

// reformatDate rebuilds a YYYY-MM-DD date as MM/DD/YYYY by splitting on "-".
// A value with the wrong segment count is a transformation error.
func reformatDate(value string) (string, error) {
	parts := strings.Split(value, "-")
	if len(parts) != 3 {
		return "", errors.TransformationError(FieldDateOfBirth,
			fmt.Sprintf("expected YYYY-MM-DD, got %q", value))
	}
	day := parts[2]
	if len(day) > 2 {
		day = day[:2]
	}
	return parts[1] + "/" + day + "/" + parts[0], nil
}

// campaignToken extracts the ctoken query value from the request context.
// An absent or empty token falls back to the submission's campaignid field.
func campaignToken(requestContext string, values map[string]interface{}) (string, bool) {
	// Match the parameter name case-insensitively but keep the value verbatim
	if idx := strings.Index(strings.ToLower(requestContext), "ctoken="); idx >= 0 {
		token := requestContext[idx+len("ctoken="):]
		if amp := strings.IndexByte(token, '&'); amp >= 0 {
			token = token[:amp]
		}
		if token != "" {
			return token, true
		}
	}
	if v, ok := values[FieldCampaignID]; ok {
		return stringify(v), true
	}
	return "", false
}

// isOne reports whether a submitted value is the boolean-like 1.
func isOne(v interface{}) bool {
	switch n := v.(type) {
	case string:
		return n == "1"
	case int:
		return n == 1
	case float64:
		return n == 1
	default:
		return false
	}
}

// isZero reports whether a submitted value is the boolean-like 0.
func isZero(v interface{}) bool {
	switch n := v.(type) {
	case string:
		return n == "0"
	case int:
		return n == 0
	case float64:
		return n == 0
	default:
		return false
	}
}

// stringify renders a submitted value for inclusion in text output.
func stringify(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case bool:
		if s {
			return "1"
		}
		return "0"
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
