// Package models defines the data types that flow through the submission
// pipeline: the inbound raw submission, the canonical event payload produced
// by normalization, the wire-level event envelope, and the caller-visible
// outcome of a dispatch.
package models

import "strings"

// FormKind classifies a submission for composite-summary formatting.
type FormKind string

const (
	// FormKindContact is a contact/inquiry form with fixed semantic blocks
	FormKindContact FormKind = "contact"
	// FormKindReorder is a reorder form with labeled fields and section breaks
	FormKindReorder FormKind = "reorder"
	// FormKindOther is any other form; summary values are emitted unlabeled
	FormKindOther FormKind = "other"
)

// ParseFormKind maps a form-kind string to a FormKind, defaulting to
// FormKindOther for unrecognized values.
func ParseFormKind(s string) FormKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "contact":
		return FormKindContact
	case "reorder":
		return FormKindReorder
	default:
		return FormKindOther
	}
}

// KindForForm derives the form kind from a form identifier, matching the
// substring convention used by the form definitions ("pek_reorder_ca",
// "contact_us", ...).
func KindForForm(formID string) FormKind {
	id := strings.ToLower(formID)
	switch {
	case strings.Contains(id, "reorder"):
		return FormKindReorder
	case strings.Contains(id, "contact"):
		return FormKindContact
	default:
		return FormKindOther
	}
}

// RawSubmission is a single form submission as delivered by the hosting
// form system. It is immutable once received; the transformation engine
// works on copies.
type RawSubmission struct {
	// FormID identifies the submitting form
	FormID string `json:"form_id"`
	// Kind classifies the form for summary formatting
	Kind FormKind `json:"form_kind"`
	// RequestContext is the page path/URL the submission originated from,
	// used for regional routing and campaign-token extraction
	RequestContext string `json:"request_context"`
	// Fields maps field names to submitted values (string or numeric)
	Fields map[string]interface{} `json:"fields"`
}

// Field returns the raw value for a field name, with presence.
func (s *RawSubmission) Field(name string) (interface{}, bool) {
	v, ok := s.Fields[name]
	return v, ok
}

// CanonicalEventPayload is the normalized field mapping sent as the data
// block of an event envelope.
type CanonicalEventPayload map[string]interface{}

// EventEnvelope is the wire-level request body for the interaction event API.
// It is created once per submission and sent once.
type EventEnvelope struct {
	ContactKey          string                `json:"contactKey" validate:"required"`
	EventDefinitionKey  string                `json:"eventDefinitionKey" validate:"required"`
	EstablishContactKey bool                  `json:"establishContactKey"`
	Data                CanonicalEventPayload `json:"data" validate:"required"`
}

// OutcomeStatus is the caller-visible classification of a handled submission.
type OutcomeStatus string

const (
	// OutcomeSuccess means the remote service returned an eventInstanceId
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeRemoteError means the remote service returned an errors field
	OutcomeRemoteError OutcomeStatus = "remote_error"
	// OutcomeNoResponse means no decodable response was obtained
	OutcomeNoResponse OutcomeStatus = "no_response"
	// OutcomeAmbiguous means a well-formed response carried neither errors
	// nor an eventInstanceId
	OutcomeAmbiguous OutcomeStatus = "ambiguous"
	// OutcomeDryRun means the dispatch was short-circuited by test mode
	OutcomeDryRun OutcomeStatus = "dry_run"
)

// Outcome reports the result of handling one submission.
type Outcome struct {
	Status          OutcomeStatus `json:"status"`
	EventInstanceID string        `json:"event_instance_id,omitempty"`
	// Errors carries the remote error payload when Status is remote_error
	Errors interface{} `json:"errors,omitempty"`
	// Details carries diagnostic text (transport code/reason, auth failure)
	Details string `json:"details,omitempty"`
	// URL and Body are populated in dry-run mode for inspection
	URL  string `json:"url,omitempty"`
	Body string `json:"body,omitempty"`
}

// Credentials is the per-region endpoint and client credential tuple.
// Exactly one tuple is selected per dispatch and never mixed across regions.
type Credentials struct {
	AuthURL      string `json:"auth_url"`
	RestURL      string `json:"rest_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"-"`
}

// Identity returns the cache key for this credential tuple. Tokens are
// cached per client id and auth endpoint so regional credentials never
// share a token.
func (c Credentials) Identity() string {
	return c.ClientID + "@" + c.AuthURL
}

// Configured reports whether every field of the tuple is set.
func (c Credentials) Configured() bool {
	return c.AuthURL != "" && c.RestURL != "" && c.ClientID != "" && c.ClientSecret != ""
}

// Empty reports whether no field of the tuple is set.
func (c Credentials) Empty() bool {
	return c.AuthURL == "" && c.RestURL == "" && c.ClientID == "" && c.ClientSecret == ""
}
