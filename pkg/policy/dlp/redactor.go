// Package dlp implements the redaction engine: detected PII spans are
// replaced with label placeholders before text leaves the pipeline.
package dlp

import (
	"strings"

	"github.com/wardenai/warden-oss/pkg/pattern"
)

// Result summarises a redaction pass.
type Result struct {
	// Redacted is the text with every match span replaced by its
	// label placeholder.
	Redacted string
	// Labels lists the labels found, deduplicated, in order of first
	// occurrence.
	Labels []string
	// MatchCount is the number of spans replaced.
	MatchCount int
}

// Applied reports whether any span was replaced.
func (r Result) Applied() bool { return r.MatchCount > 0 }

// Redactor replaces PII spans with placeholder tokens. It is a pure
// transform: recording which labels were found is the caller's job.
type Redactor struct {
	catalog *pattern.Catalog
}

// NewRedactor constructs a redactor over the built-in PII catalogue.
func NewRedactor() *Redactor {
	return &Redactor{catalog: pattern.PII()}
}

// NewRedactorWithCatalog constructs a redactor over a custom catalogue
// (useful for tests).
func NewRedactorWithCatalog(catalog *pattern.Catalog) *Redactor {
	return &Redactor{catalog: catalog}
}

// Placeholder returns the replacement token for a label, e.g.
// "[EMAIL_REDACTED]" for EMAIL. Placeholders never match the PII patterns,
// which makes redaction idempotent.
func Placeholder(label string) string {
	return "[" + label + "_REDACTED]"
}

// Redact replaces every non-overlapping PII match in text with its label
// placeholder. Re-running redaction on already-redacted text is a no-op.
func (r *Redactor) Redact(text string) Result {
	matches := r.catalog.Find(text)
	if len(matches) == 0 {
		return Result{Redacted: text}
	}

	var out strings.Builder
	out.Grow(len(text))

	var labels []string
	seen := make(map[string]struct{}, 4)
	prev := 0
	for _, m := range matches {
		out.WriteString(text[prev:m.Start])
		out.WriteString(Placeholder(m.Label))
		prev = m.End

		if _, ok := seen[m.Label]; !ok {
			seen[m.Label] = struct{}{}
			labels = append(labels, m.Label)
		}
	}
	out.WriteString(text[prev:])

	return Result{
		Redacted:   out.String(),
		Labels:     labels,
		MatchCount: len(matches),
	}
}
