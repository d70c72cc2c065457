package advisory

import (
	"fmt"
	"slices"
	"strings"
)

// Severity represents how urgently a pest needs to be treated.
type Severity string

const (
	SeverityLow     Severity = "low"
	SeverityMedium  Severity = "medium"
	SeverityHigh    Severity = "high"
	SeverityUnknown Severity = "unknown"
)

// ParseSeverity normalizes s and reports whether it names a known severity.
func ParseSeverity(s string) (Severity, bool) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityUnknown:
		return sev, true
	default:
		return "", false
	}
}

// SeverityRank returns a numeric rank for sorting (higher = more severe).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Record is the guidance shown to an end user for one detected label.
type Record struct {
	PrimaryTreatment   string   `json:"primaryTreatment"`
	OrganicAlternative string   `json:"organicAlternative,omitempty"`
	Description        string   `json:"description"`
	ActionPlan         string   `json:"actionPlan"`
	Severity           Severity `json:"severity"`
	AffectedTargets    []string `json:"affectedTargets"`
	Source             string   `json:"source,omitempty"`
}

// Clone returns a deep copy of r. AffectedTargets is never nil in the copy.
func (r Record) Clone() Record {
	c := r
	c.AffectedTargets = slices.Clone(r.AffectedTargets)
	if c.AffectedTargets == nil {
		c.AffectedTargets = []string{}
	}
	return c
}

// Validate checks that every required field is populated.
func (r Record) Validate() error {
	switch {
	case strings.TrimSpace(r.PrimaryTreatment) == "":
		return fmt.Errorf("%w: primaryTreatment is empty", ErrMalformedResponse)
	case strings.TrimSpace(r.Description) == "":
		return fmt.Errorf("%w: description is empty", ErrMalformedResponse)
	case strings.TrimSpace(r.ActionPlan) == "":
		return fmt.Errorf("%w: actionPlan is empty", ErrMalformedResponse)
	}
	if _, ok := ParseSeverity(string(r.Severity)); !ok {
		return fmt.Errorf("%w: severity %q is not one of low, medium, high, unknown", ErrMalformedResponse, r.Severity)
	}
	return nil
}
