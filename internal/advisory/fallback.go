package advisory

import (
	"context"
	"errors"
	"fmt"
)

// FallbackSource is the Source of every fallback record.
const FallbackSource = "fallback"

// FallbackTreatment is the primary treatment suggested when no advisory is available.
const FallbackTreatment = "Consult a local agricultural extension officer"

const fallbackActionPlan = "Isolate the affected plants, hold off on broad-spectrum spraying until the pest is confirmed, " +
	"and bring a sample or photo to your local agricultural extension office."

// Fallback builds the conservative record used when a lookup cannot be served.
// cause only selects the wording; its text never reaches the record.
func Fallback(label string, cause error) Record {
	var reason string
	switch {
	case errors.Is(cause, ErrInvalidLabel):
		return Record{
			PrimaryTreatment: FallbackTreatment,
			Description:      "No pest label was supplied, so no specific advisory could be looked up.",
			ActionPlan:       fallbackActionPlan,
			Severity:         SeverityUnknown,
			AffectedTargets:  []string{},
			Source:           FallbackSource,
		}
	case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
		reason = "the advisory provider did not answer in time"
	case errors.Is(cause, ErrMalformedResponse):
		reason = "the advisory provider returned a response that could not be understood"
	default:
		reason = "the advisory provider could not be reached"
	}
	return Record{
		PrimaryTreatment: FallbackTreatment,
		Description:      fmt.Sprintf("Advisory lookup for %q failed: %s. Generic guidance is shown instead.", label, reason),
		ActionPlan:       fallbackActionPlan,
		Severity:         SeverityUnknown,
		AffectedTargets:  []string{},
		Source:           FallbackSource,
	}
}

// IsFallback reports whether r was produced by Fallback.
func IsFallback(r Record) bool {
	return r.Source == FallbackSource
}
