package domain

import "time"

// EventType names a recorded pipeline occurrence.
type EventType string

const (
	// EventLLMRequest records a completed model dispatch.
	EventLLMRequest EventType = "llm_request"
	// EventRedactionApplied records that DLP masked at least one span.
	EventRedactionApplied EventType = "redaction_applied"
	// EventPIILeak records unredacted PII observed past the redaction stage.
	EventPIILeak EventType = "pii_leak"
	// EventToolDenied records an authorization denial.
	EventToolDenied EventType = "tool_denied"
	// EventPolicyViolation records any policy rule violation.
	EventPolicyViolation EventType = "policy_violation"
	// EventDocumentRejected records an ingestion screening rejection.
	EventDocumentRejected EventType = "document_rejected"
	// EventQueryBlocked records a retrieval query screening block.
	EventQueryBlocked EventType = "query_blocked"
)

// Event is an audit record appended to the external event log. Writes are
// fire-and-forget from the pipeline's perspective.
type Event struct {
	Type        EventType         `json:"type"`
	PrincipalID string            `json:"principal_id"`
	Actor       string            `json:"actor,omitempty"`
	TraceID     string            `json:"trace_id,omitempty"`
	At          time.Time         `json:"at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}
