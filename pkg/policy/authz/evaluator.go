// Package authz implements tool-allowlist authorization: deny-by-default
// membership decisions over a principal's allowlist, with dry-run
// downgrades driven by the governing policy's mode.
package authz

import (
	"context"
	"fmt"

	"github.com/wardenai/warden-oss/pkg/domain"
)

// Outcome is the result of an authorization evaluation.
type Outcome string

const (
	// OutcomeAllow permits the tool invocation.
	OutcomeAllow Outcome = "allow"
	// OutcomeDeny blocks the request.
	OutcomeDeny Outcome = "deny"
	// OutcomeAdvisoryDeny records a would-be denial without blocking
	// request progress (dry-run policy mode).
	OutcomeAdvisoryDeny Outcome = "advisory_deny"
)

// Verdict is the outcome of evaluating one tool request.
type Verdict struct {
	Outcome    Outcome
	Tool       string
	PolicyName string
	Reason     string
}

// Blocking reports whether the verdict stops the request.
func (v Verdict) Blocking() bool { return v.Outcome == OutcomeDeny }

// Evaluator decides allow/deny for a requested tool given a principal and
// the policy snapshot taken at request entry.
type Evaluator interface {
	Evaluate(ctx context.Context, p domain.Principal, tool string, snap domain.PolicySnapshot) (Verdict, error)
}

// Direct is the default evaluator: a plain membership check over the
// principal's allowlist. Tool-name comparison is exact and case-sensitive.
type Direct struct{}

// Evaluate applies deny-by-default semantics: absence from the allowlist
// is a denial, and an empty allowlist denies every tool unconditionally.
// The governing policy's enabled flag does not suppress evaluation (the
// allowlist is a property of the principal); its dry-run flag downgrades
// a denial to advisory.
func (Direct) Evaluate(_ context.Context, p domain.Principal, tool string, snap domain.PolicySnapshot) (Verdict, error) {
	return verdictFor(p.ToolAllowed(tool), p, tool, snap), nil
}

// verdictFor converts a membership result into a Verdict. Shared by the
// direct evaluator and the OPA engine so both produce identical outcomes
// and reason strings.
func verdictFor(allowed bool, p domain.Principal, tool string, snap domain.PolicySnapshot) Verdict {
	pol, hasPolicy := snap.Lookup(domain.RuleToolAllowlist)

	v := Verdict{Tool: tool}
	if hasPolicy {
		v.PolicyName = pol.Name
	}

	if allowed {
		v.Outcome = OutcomeAllow
		v.Reason = fmt.Sprintf("tool %q present in allowlist for principal %s", tool, p.ID)
		return v
	}

	v.Reason = denyReason(p, tool, pol)
	if hasPolicy && pol.DryRun {
		v.Outcome = OutcomeAdvisoryDeny
		return v
	}
	v.Outcome = OutcomeDeny
	return v
}

func denyReason(p domain.Principal, tool string, pol domain.Policy) string {
	if pol.Rule.ToolAllowlist != nil && pol.Rule.ToolAllowlist.DenyMessage != "" {
		return fmt.Sprintf("%s: tool %q, allowlist %v", pol.Rule.ToolAllowlist.DenyMessage, tool, p.AllowedTools)
	}
	return fmt.Sprintf("tool %q not in allowlist %v for principal %s", tool, p.AllowedTools, p.ID)
}
