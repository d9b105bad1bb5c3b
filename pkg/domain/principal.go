package domain

// PrincipalStatus describes the lifecycle state of a principal.
type PrincipalStatus string

const (
	// StatusActive marks a principal that may have requests mediated.
	StatusActive PrincipalStatus = "active"
	// StatusSuspended marks a principal whose requests are denied at entry.
	StatusSuspended PrincipalStatus = "suspended"
)

// Principal is the non-human actor on whose behalf requests are mediated.
// It is owned by the external registry; the pipeline only reads it, once,
// at request entry.
type Principal struct {
	ID           string          `json:"id" yaml:"id"`
	ExternalID   string          `json:"external_id,omitempty" yaml:"external_id,omitempty"`
	Owner        string          `json:"owner,omitempty" yaml:"owner,omitempty"`
	Environment  string          `json:"environment,omitempty" yaml:"environment,omitempty"`
	Description  string          `json:"description,omitempty" yaml:"description,omitempty"`
	AllowedTools []string        `json:"allowed_tools" yaml:"allowed_tools"`
	BudgetPerDay int64           `json:"budget_per_day" yaml:"budget_per_day"`
	Status       PrincipalStatus `json:"status" yaml:"status"`
}

// ToolAllowed reports whether the tool appears in the principal's allowlist.
// Comparison is exact and case-sensitive; absence means deny.
func (p Principal) ToolAllowed(tool string) bool {
	for _, t := range p.AllowedTools {
		if t == tool {
			return true
		}
	}
	return false
}

// Active reports whether the principal may have requests mediated.
func (p Principal) Active() bool {
	return p.Status == StatusActive || p.Status == ""
}

// Clone returns a copy with an independent allowlist slice so snapshots
// taken at request entry cannot observe later registry mutations.
func (p Principal) Clone() Principal {
	clone := p
	clone.AllowedTools = append([]string(nil), p.AllowedTools...)
	return clone
}
