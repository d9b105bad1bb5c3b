// Package rag implements two-phase injection screening for retrieval
// content: ingestion screening of documents and conjunction screening of
// retrieval queries, plus the source allowlist and retrieval-time context
// checks.
package rag

import (
	"fmt"
	"sort"

	"github.com/wardenai/warden-oss/pkg/domain"
	"github.com/wardenai/warden-oss/pkg/pattern"
)

// DefaultRejectionThreshold is the distinct-pattern count at which
// ingestion screening rejects a document.
const DefaultRejectionThreshold = 2

// DefaultAllowedSources is the built-in document source allowlist.
var DefaultAllowedSources = []string{
	"internal_docs",
	"public_website",
	"verified_partners",
	"knowledge_base",
	"company_wiki",
}

// IngestionVerdict is the result of screening a document for ingestion.
type IngestionVerdict struct {
	Verdict         domain.DocumentVerdict
	MatchedPatterns []string
	PatternCount    int
	Reason          string
}

// Rejected reports whether the document must not be persisted.
func (v IngestionVerdict) Rejected() bool { return v.Verdict == domain.VerdictRejected }

// QueryVerdict is the result of screening a retrieval query.
type QueryVerdict struct {
	Blocked         bool
	MatchedPatterns []string
	Reason          string
}

// ContextVerdict is the result of screening retrieved chunks before they
// are assembled into a prompt.
type ContextVerdict struct {
	Safe            bool
	MatchedPatterns []string
}

// Screener evaluates documents and queries against the injection-phrase
// catalogue. Both verdict functions are pure and stateless.
type Screener struct {
	catalog   *pattern.Catalog
	threshold int
	sources   map[string]struct{}
}

// Option customises Screener construction.
type Option func(*Screener)

// WithThreshold overrides the distinct-pattern rejection threshold.
func WithThreshold(n int) Option {
	return func(s *Screener) {
		if n > 0 {
			s.threshold = n
		}
	}
}

// WithAllowedSources overrides the source allowlist.
func WithAllowedSources(sources []string) Option {
	return func(s *Screener) {
		s.sources = make(map[string]struct{}, len(sources))
		for _, src := range sources {
			s.sources[src] = struct{}{}
		}
	}
}

// WithCatalog overrides the injection catalogue (useful for tests).
func WithCatalog(c *pattern.Catalog) Option {
	return func(s *Screener) { s.catalog = c }
}

// NewScreener constructs a screener over the built-in injection catalogue,
// the default threshold and the default source allowlist.
func NewScreener(opts ...Option) *Screener {
	s := &Screener{
		catalog:   pattern.Injection(),
		threshold: DefaultRejectionThreshold,
	}
	WithAllowedSources(DefaultAllowedSources)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SourceAllowed is the membership test against the source allowlist. It is
// evaluated independently of phrase screening: a document can pass phrase
// screening yet still be rejected for an untrusted source.
func (s *Screener) SourceAllowed(source string) bool {
	_, ok := s.sources[source]
	return ok
}

// ScreenDocument scans content against the full injection catalogue and
// counts distinct pattern kinds matched (not total occurrences). The
// document is rejected when the count meets or exceeds the threshold, or
// when the declared source is not allowlisted.
func (s *Screener) ScreenDocument(content, source string) IngestionVerdict {
	if !s.SourceAllowed(source) {
		return IngestionVerdict{
			Verdict: domain.VerdictRejected,
			Reason:  fmt.Sprintf("source %q not in allowlist", source),
		}
	}

	kinds := distinctKinds(s.catalog.FindAll(content))
	verdict := IngestionVerdict{
		MatchedPatterns: kinds,
		PatternCount:    len(kinds),
	}

	if len(kinds) >= s.threshold {
		verdict.Verdict = domain.VerdictRejected
		verdict.Reason = fmt.Sprintf("rejected_suspicious_content (%d patterns, threshold %d)", len(kinds), s.threshold)
		return verdict
	}

	verdict.Verdict = domain.VerdictAccepted
	verdict.Reason = "accepted"
	return verdict
}

// ScreenQuery blocks a retrieval query only when an override-intent phrase
// co-occurs with a secrecy/confidentiality phrase. A single keyword alone
// never blocks, bounding false positives.
func (s *Screener) ScreenQuery(query string) QueryVerdict {
	matches := s.catalog.FindAll(query)
	kinds := distinctKinds(matches)

	override := firstOfFamily(matches, pattern.OverrideIntentKinds)
	secrecy := firstOfFamily(matches, pattern.SecrecyKinds)

	if override == "" || secrecy == "" {
		return QueryVerdict{MatchedPatterns: kinds}
	}

	return QueryVerdict{
		Blocked:         true,
		MatchedPatterns: kinds,
		Reason:          fmt.Sprintf("query combines override intent (%s) with secrecy probing (%s)", override, secrecy),
	}
}

// ScreenContext checks retrieved chunk text before prompt assembly. Unlike
// ingestion screening, any single match is unsafe: the content already
// cleared ingestion once, so a hit here indicates an indirect injection.
func (s *Screener) ScreenContext(chunks []string) ContextVerdict {
	seen := make(map[pattern.Kind]struct{})
	var kinds []string
	for _, chunk := range chunks {
		for _, m := range s.catalog.FindAll(chunk) {
			if _, ok := seen[m.Kind]; ok {
				continue
			}
			seen[m.Kind] = struct{}{}
			kinds = append(kinds, string(m.Kind))
		}
	}
	sort.Strings(kinds)
	return ContextVerdict{Safe: len(kinds) == 0, MatchedPatterns: kinds}
}

// TrustLevel classifies a source for provenance metadata.
func TrustLevel(source string) string {
	switch source {
	case "internal_docs", "knowledge_base", "company_wiki":
		return "internal"
	default:
		return "external"
	}
}

func distinctKinds(matches []pattern.Match) []string {
	seen := make(map[pattern.Kind]struct{}, len(matches))
	var kinds []string
	for _, m := range matches {
		if _, ok := seen[m.Kind]; ok {
			continue
		}
		seen[m.Kind] = struct{}{}
		kinds = append(kinds, string(m.Kind))
	}
	return kinds
}

func firstOfFamily(matches []pattern.Match, family []pattern.Kind) pattern.Kind {
	members := make(map[pattern.Kind]struct{}, len(family))
	for _, k := range family {
		members[k] = struct{}{}
	}
	for _, m := range matches {
		if _, ok := members[m.Kind]; ok {
			return m.Kind
		}
	}
	return ""
}
