package detection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/agriguard/internal/advisory"
)

// DefaultMinConfidence is the detector score below which detections are ignored.
const DefaultMinConfidence = 0.5

// ErrInvalidBatch is returned for a batch that fails validation.
var ErrInvalidBatch = errors.New("invalid detection batch")

// Detection is one object found by the external detector.
type Detection struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Box        []float64 `json:"box,omitempty"` // x1, y1, x2, y2
}

// Batch is every detection from one image or video frame.
type Batch struct {
	Detections []Detection `json:"detections"`
	Source     string      `json:"source,omitempty"`
}

// Validate checks confidences and boxes.
func (b Batch) Validate() error {
	for i, d := range b.Detections {
		if d.Confidence < 0 || d.Confidence > 1 {
			return fmt.Errorf("%w: detection %d: confidence %v outside [0, 1]", ErrInvalidBatch, i, d.Confidence)
		}
		if len(d.Box) != 0 && len(d.Box) != 4 {
			return fmt.Errorf("%w: detection %d: box must have 4 coordinates, got %d", ErrInvalidBatch, i, len(d.Box))
		}
	}
	return nil
}

// Summary aggregates the advisories in a report by severity.
type Summary struct {
	Total      int                       `json:"total"`
	BySeverity map[advisory.Severity]int `json:"bySeverity"`
	Highest    advisory.Severity         `json:"highest"`
}

// Report is the resolved view of one batch.
type Report struct {
	ID         uuid.UUID                  `json:"id"`
	Timestamp  time.Time                  `json:"timestamp"`
	Source     string                     `json:"source,omitempty"`
	Counts     map[string]int             `json:"counts"`
	Advisories map[string]advisory.Record `json:"advisories"`
	Suggestion string                     `json:"suggestion"`
	Summary    Summary                    `json:"summary"`
	Dropped    int                        `json:"dropped"`
}

// Poll is the compact shape dashboards poll for: per-label counts, the
// suggested treatment and a Unix timestamp in seconds.
type Poll struct {
	Detections map[string]int `json:"detections"`
	Suggestion string         `json:"suggestion"`
	Timestamp  int64          `json:"timestamp"`
}

// Poll returns the polling view of r.
func (r *Report) Poll() Poll {
	return Poll{
		Detections: r.Counts,
		Suggestion: r.Suggestion,
		Timestamp:  r.Timestamp.Unix(),
	}
}

// Advisor resolves labels to advisory records.
type Advisor interface {
	LookupAll(ctx context.Context, labels []string) (map[string]advisory.Record, error)
}

// Resolve filters the batch by minConfidence, counts detections per label
// and looks up one advisory per distinct label. The suggestion is the
// primary treatment for the last kept detection.
func Resolve(ctx context.Context, adv Advisor, batch Batch, minConfidence float64) (*Report, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}

	r := &Report{
		ID:         uuid.New(),
		Timestamp:  time.Now().UTC(),
		Source:     batch.Source,
		Counts:     make(map[string]int),
		Advisories: map[string]advisory.Record{},
		Summary:    Summary{BySeverity: make(map[advisory.Severity]int)},
	}

	var labels []string
	for _, d := range batch.Detections {
		label := strings.TrimSpace(d.Label)
		if label == "" || d.Confidence < minConfidence {
			r.Dropped++
			continue
		}
		r.Counts[label]++
		labels = append(labels, label)
	}

	if len(labels) == 0 {
		r.Suggestion = advisory.FallbackTreatment
		r.Summary.Highest = advisory.SeverityUnknown
		return r, nil
	}

	advisories, err := adv.LookupAll(ctx, labels)
	if err != nil {
		return nil, fmt.Errorf("resolving advisories: %w", err)
	}
	r.Advisories = advisories
	r.Suggestion = advisories[labels[len(labels)-1]].PrimaryTreatment

	r.Summary.Highest = advisory.SeverityUnknown
	for _, rec := range advisories {
		r.Summary.Total++
		r.Summary.BySeverity[rec.Severity]++
		if advisory.SeverityRank(rec.Severity) > advisory.SeverityRank(r.Summary.Highest) {
			r.Summary.Highest = rec.Severity
		}
	}
	return r, nil
}
