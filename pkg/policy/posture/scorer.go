// Package posture computes the derived security-posture score for a
// principal: five independent dimensions, each clamped to [0,20], summed
// to an overall score in [0,100]. Computation is read-only; every call
// produces a new immutable PostureScore.
package posture

import (
	"strings"
	"time"

	"github.com/wardenai/warden-oss/pkg/domain"
)

// TraceCoverageFloor is the event trace-id coverage at which the tracing
// dimension reaches its maximum.
const TraceCoverageFloor = 0.95

// PolicyAdoptionFloor is the enabled-policy fraction at which the policy
// dimension reaches its maximum (absent violations).
const PolicyAdoptionFloor = 0.90

// Compute derives the posture score for a principal from its registry
// attributes, the current policy set and its recorded event history.
func Compute(p domain.Principal, policies []domain.Policy, events []domain.Event, now time.Time) domain.PostureScore {
	score := domain.PostureScore{
		PrincipalID: p.ID,
		Timestamp:   now,
	}

	var checks []string
	var recs []domain.Recommendation
	fail := func(check, message string) {
		checks = append(checks, check)
		recs = append(recs, domain.Recommendation{Check: check, Message: message})
	}

	score.Registry = registryScore(p, fail)
	score.Tools = toolsScore(p, fail)
	score.Tracing = tracingScore(events, fail)
	score.DLP = dlpScore(policies, events, fail)
	score.Policy = policyScore(policies, events, fail)

	score.Overall = score.Registry + score.Tools + score.Tracing + score.DLP + score.Policy
	score.FailingChecks = checks
	score.Recommendations = recs
	return score
}

// registryScore awards 4 points per present-and-non-empty registry
// attribute among external identifier, owner, environment and description.
func registryScore(p domain.Principal, fail func(check, message string)) int {
	score := 0
	attrs := []struct {
		value   string
		check   string
		message string
	}{
		{p.ExternalID, "missing_external_id", "Register a workload identity (e.g. SPIFFE ID) for the principal"},
		{p.Owner, "missing_owner", "Assign an owning team or party"},
		{p.Environment, "missing_environment", "Tag the principal with its deployment environment"},
		{p.Description, "missing_description", "Describe the principal's purpose in the registry"},
	}
	for _, attr := range attrs {
		if strings.TrimSpace(attr.value) != "" {
			score += 4
			continue
		}
		fail(attr.check, attr.message)
	}
	return domain.ClampDimension(score)
}

// toolsScore rewards least privilege: fewer permissions is never
// penalized. Zero through two tools score the maximum.
func toolsScore(p domain.Principal, fail func(check, message string)) int {
	n := len(p.AllowedTools)
	switch {
	case n <= 2:
		return domain.DimensionMax
	case n <= 4:
		fail("broad_tool_allowlist", "Trim the tool allowlist; least privilege scores highest")
		return 15
	default:
		fail("broad_tool_allowlist", "Trim the tool allowlist; least privilege scores highest")
		return 10
	}
}

// tracingScore scales with the fraction of recorded events carrying a
// non-empty trace identifier: maximum at or above the coverage floor,
// linear below it. A principal with no recorded events provides no
// evidence of trace discipline and scores zero.
func tracingScore(events []domain.Event, fail func(check, message string)) int {
	if len(events) == 0 {
		fail("no_recorded_events", "Emit audit events so trace coverage can be assessed")
		return 0
	}

	traced := 0
	for _, e := range events {
		if strings.TrimSpace(e.TraceID) != "" {
			traced++
		}
	}
	coverage := float64(traced) / float64(len(events))
	if coverage >= TraceCoverageFloor {
		return domain.DimensionMax
	}

	fail("low_trace_coverage", "Propagate trace identifiers on all mediated requests")
	return domain.ClampDimension(int(coverage / TraceCoverageFloor * domain.DimensionMax))
}

// dlpScore awards the maximum only when the DLP policy is enabled, at
// least one redaction has been recorded, and no unredacted-PII leak events
// exist. A disabled policy scores zero.
func dlpScore(policies []domain.Policy, events []domain.Event, fail func(check, message string)) int {
	pol, ok := findPolicy(policies, domain.RuleDLP)
	if !ok || !pol.Enabled {
		fail("dlp_policy_disabled", "Enable the DLP redaction policy")
		return 0
	}

	redactions := 0
	leaks := 0
	for _, e := range events {
		switch e.Type {
		case domain.EventRedactionApplied:
			redactions++
		case domain.EventPIILeak:
			leaks++
		}
	}

	score := 10
	if redactions > 0 {
		score += 5
	} else {
		fail("no_redaction_activity", "No redaction events recorded; verify DLP is on the request path")
	}
	if leaks == 0 {
		score += 5
	} else {
		fail("pii_leak_recorded", "Investigate recorded PII leak events")
	}
	return domain.ClampDimension(score)
}

// policyScore scales with the fraction of governing policies enabled;
// recorded policy-violation events cap the dimension.
func policyScore(policies []domain.Policy, events []domain.Event, fail func(check, message string)) int {
	if len(policies) == 0 {
		fail("no_governing_policies", "Attach governing policies to the principal")
		return 0
	}

	enabled := 0
	for _, pol := range policies {
		if pol.Enabled {
			enabled++
		}
	}
	adoption := float64(enabled) / float64(len(policies))

	score := domain.DimensionMax
	if adoption < PolicyAdoptionFloor {
		fail("low_policy_adoption", "Enable the disabled governing policies")
		score = int(adoption / PolicyAdoptionFloor * domain.DimensionMax)
	}

	violations := 0
	for _, e := range events {
		if e.Type == domain.EventPolicyViolation {
			violations++
		}
	}
	if violations > 0 {
		fail("policy_violations_recorded", "Review recorded policy violations")
		if score > 10 {
			score = 10
		}
	}

	return domain.ClampDimension(score)
}

func findPolicy(policies []domain.Policy, kind domain.RuleKind) (domain.Policy, bool) {
	for _, pol := range policies {
		if pol.Rule.Kind == kind {
			return pol, true
		}
	}
	return domain.Policy{}, false
}
