package domain

// DocumentVerdict is the outcome of ingestion screening.
type DocumentVerdict string

const (
	// VerdictAccepted marks a document safe to persist.
	VerdictAccepted DocumentVerdict = "accepted"
	// VerdictRejected marks a document that must not be persisted.
	VerdictRejected DocumentVerdict = "rejected"
)

// Document is a RAG ingestion unit. A rejected document is never persisted
// by the surrounding system; the matched pattern identifiers are kept for
// audit.
type Document struct {
	Content         string          `json:"content"`
	Source          string          `json:"source"`
	Verdict         DocumentVerdict `json:"verdict"`
	MatchedPatterns []string        `json:"matched_patterns,omitempty"`
	PatternCount    int             `json:"pattern_count"`
}
