package domain

import "time"

// DimensionMax is the ceiling for each posture dimension score.
const DimensionMax = 20

// Recommendation pairs a failing check with remediation advice.
type Recommendation struct {
	Check   string `json:"check"`
	Message string `json:"message"`
}

// PostureScore is a point-in-time composite security rating for a
// principal. Scores are superseded, never mutated: each computation
// produces a new immutable record.
type PostureScore struct {
	PrincipalID     string           `json:"principal_id"`
	Timestamp       time.Time        `json:"timestamp"`
	Registry        int              `json:"registry_score"`
	Tools           int              `json:"tools_score"`
	Tracing         int              `json:"tracing_score"`
	DLP             int              `json:"dlp_score"`
	Policy          int              `json:"policy_score"`
	Overall         int              `json:"overall_score"`
	FailingChecks   []string         `json:"failing_checks,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
}

// ClampDimension bounds a dimension score to [0, DimensionMax].
func ClampDimension(score int) int {
	if score < 0 {
		return 0
	}
	if score > DimensionMax {
		return DimensionMax
	}
	return score
}
