package domain

import "time"

// RuleKind discriminates the closed set of policy rule payloads.
type RuleKind string

const (
	// RuleDLP governs sensitive-data redaction.
	RuleDLP RuleKind = "dlp"
	// RuleToolAllowlist governs per-principal tool authorization.
	RuleToolAllowlist RuleKind = "tool_allowlist"
	// RuleRAGContext governs retrieval content screening.
	RuleRAGContext RuleKind = "rag_context"
)

// DLPRule configures the redaction policy payload.
type DLPRule struct {
	// Labels restricts redaction to the listed PII labels; empty means all.
	Labels []string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// ToolAllowlistRule configures the authorization policy payload. The
// allowlist itself is a property of the principal; the rule only carries
// enforcement metadata.
type ToolAllowlistRule struct {
	// DenyMessage overrides the default reason template when non-empty.
	DenyMessage string `json:"deny_message,omitempty" yaml:"deny_message,omitempty"`
}

// RAGContextRule configures the retrieval screening policy payload.
type RAGContextRule struct {
	// RejectionThreshold is the distinct-pattern count at which ingestion
	// rejects a document. Zero selects the default of 2.
	RejectionThreshold int `json:"rejection_threshold,omitempty" yaml:"rejection_threshold,omitempty"`
	// AllowedSources is the document source allowlist.
	AllowedSources []string `json:"allowed_sources,omitempty" yaml:"allowed_sources,omitempty"`
}

// RuleSpec is the discriminated rule payload carried by a Policy. Exactly
// one of the payload fields matching Kind is populated.
type RuleSpec struct {
	Kind          RuleKind           `json:"kind" yaml:"kind"`
	DLP           *DLPRule           `json:"dlp,omitempty" yaml:"dlp,omitempty"`
	ToolAllowlist *ToolAllowlistRule `json:"tool_allowlist,omitempty" yaml:"tool_allowlist,omitempty"`
	RAGContext    *RAGContextRule    `json:"rag_context,omitempty" yaml:"rag_context,omitempty"`
}

// Policy is a named control with run-time-toggleable state. It is mutated
// only through explicit enable/disable/dry-run operations on the store;
// the pipeline reads a snapshot once per request.
type Policy struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Enabled   bool      `json:"enabled" yaml:"enabled"`
	DryRun    bool      `json:"dry_run" yaml:"dry_run"`
	Rule      RuleSpec  `json:"rule" yaml:"rule"`
	Version   int64     `json:"version" yaml:"version"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// PolicySnapshot is the per-request view of policy state, fetched once at
// pipeline entry so concurrent toggles never produce torn reads within a
// single request's evaluation.
type PolicySnapshot struct {
	Policies map[RuleKind]Policy
}

// Lookup returns the governing policy for a rule kind. The second return
// is false when no policy of that kind exists in the snapshot.
func (s PolicySnapshot) Lookup(kind RuleKind) (Policy, bool) {
	p, ok := s.Policies[kind]
	return p, ok
}
