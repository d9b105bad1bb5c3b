// Package pattern implements the shared detection catalogue for PII and
// injection-phrase matching. Every pattern is a tagged entry (kind, label,
// compiled expression, optional validator) in a fixed catalogue so that
// tie-breaking and checksum gating stay explicit and testable in isolation.
package pattern

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/wardenai/warden-oss/pkg/domain"
)

// Kind identifies a pattern family.
type Kind string

// PII pattern kinds.
const (
	KindEmail Kind = "email"
	KindPhone Kind = "phone"
	KindSSN   Kind = "ssn"
	KindCard  Kind = "card"
)

// Injection pattern kinds.
const (
	KindIgnoreInstruction      Kind = "ignore_instruction"
	KindDisregardAll           Kind = "disregard_all"
	KindSystemPromptExtraction Kind = "system_prompt_extraction"
	KindExfiltration           Kind = "exfiltration"
	KindSafetyBypass           Kind = "safety_bypass"
	KindPolicyBypass           Kind = "policy_bypass"
	KindRuleOverride           Kind = "rule_override"
	KindContextReset           Kind = "context_reset"
	KindSecrecyProbe           Kind = "secrecy_probe"
	KindScriptTag              Kind = "script_tag"
	KindSQLMutation            Kind = "sql_mutation"
	KindEventHandler           Kind = "event_handler"
)

// Spec declares a single pattern entry before compilation.
type Spec struct {
	Kind    Kind
	Label   string
	Pattern string
	// Validate, when set, gates candidate matches; candidates that fail
	// are silently discarded.
	Validate func(string) bool
}

// Match is a single detection: a labeled byte span plus the matched text.
type Match struct {
	Kind  Kind
	Label string
	Start int
	End   int
	Text  string
}

type compiled struct {
	kind     Kind
	label    string
	expr     *regexp.Regexp
	validate func(string) bool
}

// Catalog is an immutable set of compiled patterns. Construction is the
// only failure point; matching itself has no error mode.
type Catalog struct {
	patterns []compiled
	kinds    map[Kind]struct{}
}

// NewCatalog compiles the supplied specs. A malformed spec is a programmer
// error surfaced as a fatal ConfigError, never a runtime condition.
func NewCatalog(specs []Spec) (*Catalog, error) {
	if len(specs) == 0 {
		return nil, &domain.ConfigError{Section: "patterns", Err: fmt.Errorf("catalogue is empty")}
	}

	patterns := make([]compiled, 0, len(specs))
	kinds := make(map[Kind]struct{}, len(specs))
	for _, spec := range specs {
		if strings.TrimSpace(string(spec.Kind)) == "" {
			return nil, &domain.ConfigError{Section: "patterns", Err: fmt.Errorf("pattern kind is required")}
		}
		if strings.TrimSpace(spec.Label) == "" {
			return nil, &domain.ConfigError{Section: "patterns", Err: fmt.Errorf("label is required for pattern %s", spec.Kind)}
		}
		expr, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, &domain.ConfigError{Section: "patterns", Err: fmt.Errorf("invalid pattern for %s: %w", spec.Kind, err)}
		}
		patterns = append(patterns, compiled{
			kind:     spec.Kind,
			label:    spec.Label,
			expr:     expr,
			validate: spec.Validate,
		})
		kinds[spec.Kind] = struct{}{}
	}

	return &Catalog{patterns: patterns, kinds: kinds}, nil
}

// Kinds returns the sorted set of kinds present in the catalogue.
func (c *Catalog) Kinds() []Kind {
	out := make([]Kind, 0, len(c.kinds))
	for k := range c.kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Find returns the resolved matches for text, restricted to the supplied
// kinds (all kinds when none are given). Candidates are ordered
// leftmost-first; among candidates starting at the same byte the longest
// wins; overlapping losers are dropped. Candidates with a validator that
// fails are discarded before resolution. Use Find when matches become
// substitution spans; use FindAll when counting kinds.
func (c *Catalog) Find(text string, kinds ...Kind) []Match {
	return resolve(c.scan(text, kinds))
}

// FindAll returns every validated match for text without overlap
// resolution, ordered leftmost-first with the longest span first at the
// same start. Each pattern is scanned independently, so a kind is never
// hidden by another kind's overlapping span.
func (c *Catalog) FindAll(text string, kinds ...Kind) []Match {
	candidates := c.scan(text, kinds)
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Start != candidates[j].Start {
			return candidates[i].Start < candidates[j].Start
		}
		return candidates[i].End > candidates[j].End
	})
	return candidates
}

func (c *Catalog) scan(text string, kinds []Kind) []Match {
	var wanted map[Kind]struct{}
	if len(kinds) > 0 {
		wanted = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			wanted[k] = struct{}{}
		}
	}

	var candidates []Match
	for _, p := range c.patterns {
		if wanted != nil {
			if _, ok := wanted[p.kind]; !ok {
				continue
			}
		}
		for _, span := range p.expr.FindAllStringIndex(text, -1) {
			matched := text[span[0]:span[1]]
			if p.validate != nil && !p.validate(matched) {
				continue
			}
			candidates = append(candidates, Match{
				Kind:  p.kind,
				Label: p.label,
				Start: span[0],
				End:   span[1],
				Text:  matched,
			})
		}
	}
	return candidates
}

// resolve applies the leftmost-first, longest-at-same-start tie-break and
// drops candidates overlapping an earlier winner.
func resolve(candidates []Match) []Match {
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Start != candidates[j].Start {
			return candidates[i].Start < candidates[j].Start
		}
		return candidates[i].End > candidates[j].End
	})

	resolved := candidates[:0]
	lastEnd := -1
	for _, m := range candidates {
		if m.Start < lastEnd {
			continue
		}
		resolved = append(resolved, m)
		lastEnd = m.End
	}
	return resolved
}
