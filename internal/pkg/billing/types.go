package billing

import "encoding/json"

// ProviderStripe is the only provider wired today; the ledger key space is
// (provider, event_id) so more can be added without migration.
const ProviderStripe = "stripe"

// Outcome is the business result of applying an event.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeIgnoredMissingCustomer
	OutcomeIgnoredUnknownCustomer
	OutcomeIgnoredUnhandledType
)

// Reason is the machine-readable ignore reason surfaced in responses.
func (o Outcome) Reason() string {
	switch o {
	case OutcomeIgnoredMissingCustomer:
		return "missing_customer"
	case OutcomeIgnoredUnknownCustomer:
		return "unknown_customer"
	case OutcomeIgnoredUnhandledType:
		return "unhandled_type"
	}
	return ""
}

// Applied reports whether the event mutated tenant state.
func (o Outcome) Applied() bool { return o == OutcomeApplied }

// EventInput is a verified, parsed webhook delivery entering the pipeline.
type EventInput struct {
	Provider  string
	EventID   string
	EventType string
	// Payload is the verbatim request body, retained for audit and replay.
	Payload string
	// Object is the raw data.object member; its shape is validated by the
	// reconciliation engine, not at the transport boundary.
	Object json.RawMessage
}

// Result is the pipeline outcome used to shape the HTTP response.
type Result struct {
	EventID   string
	Outcome   Outcome
	Duplicate bool
}
