package domain

import "time"

// DecisionKind classifies the consequential choice a pipeline stage made.
type DecisionKind string

const (
	// DecisionAllow permits the request to proceed unchanged.
	DecisionAllow DecisionKind = "allow"
	// DecisionDeny blocks the request.
	DecisionDeny DecisionKind = "deny"
	// DecisionAdvisoryDeny records a would-be denial under a dry-run policy
	// without blocking request progress.
	DecisionAdvisoryDeny DecisionKind = "advisory_deny"
	// DecisionAllowWithRedaction permits the request after masking content.
	DecisionAllowWithRedaction DecisionKind = "allow_with_redaction"
)

// Decision records a consequential choice made by a pipeline stage. It is
// immutable once emitted and owned by the external event log.
type Decision struct {
	TraceID     string       `json:"trace_id"`
	PrincipalID string       `json:"principal_id"`
	Kind        DecisionKind `json:"kind"`
	Stage       string       `json:"stage"`
	PolicyName  string       `json:"policy_name,omitempty"`
	Reason      string       `json:"reason"`
	At          time.Time    `json:"at"`
}

// Terminal reports whether the decision ended the request. Only advisory
// denials leave the request in flight.
func (d Decision) Terminal() bool {
	return d.Kind != DecisionAdvisoryDeny
}
