package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dshills/agriguard/internal/advisory"
	"github.com/dshills/agriguard/internal/catalog"
	"github.com/dshills/agriguard/internal/detection"
)

// TextWriter outputs human-readable text.
type TextWriter struct{}

func (t *TextWriter) WriteLookups(w io.Writer, lookups []Lookup) error {
	ew := &errWriter{w: w}
	for i, l := range lookups {
		if i > 0 {
			ew.println("")
		}
		writeAdvisory(ew, l.Label, l.Advisory)
	}
	return ew.err
}

func (t *TextWriter) WriteReport(w io.Writer, report *detection.Report) error {
	ew := &errWriter{w: w}

	ew.printf("Detection report %s\n", report.ID)
	if report.Source != "" {
		ew.printf("Source: %s\n", report.Source)
	}
	ew.println(strings.Repeat("─", 60))

	labels := make([]string, 0, len(report.Counts))
	total := 0
	for label, n := range report.Counts {
		labels = append(labels, label)
		total += n
	}
	ew.printf("Detections: %d kept, %d dropped\n", total, report.Dropped)
	if total == 0 {
		ew.printf("\nNo pests detected. Recommended: %s\n", report.Suggestion)
		return ew.err
	}

	// Most severe first, then most frequent.
	sort.Slice(labels, func(i, j int) bool {
		ri := advisory.SeverityRank(report.Advisories[labels[i]].Severity)
		rj := advisory.SeverityRank(report.Advisories[labels[j]].Severity)
		if ri != rj {
			return ri > rj
		}
		if report.Counts[labels[i]] != report.Counts[labels[j]] {
			return report.Counts[labels[i]] > report.Counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	for _, label := range labels {
		ew.printf("  %-30s x%d\n", label, report.Counts[label])
	}
	ew.printf("Highest severity: %s\n", report.Summary.Highest)
	ew.println(strings.Repeat("─", 60))

	for _, label := range labels {
		ew.println("")
		writeAdvisory(ew, label, report.Advisories[label])
	}

	ew.printf("\n%s\n", strings.Repeat("─", 60))
	ew.printf("Recommended: %s\n", report.Suggestion)
	return ew.err
}

func (t *TextWriter) WriteCatalog(w io.Writer, entries []catalog.Entry) error {
	ew := &errWriter{w: w}
	if len(entries) == 0 {
		ew.println("No matching pests.")
		return ew.err
	}
	for _, e := range entries {
		ew.printf("%s %-36s %-24s %s\n", severityIcon(e.Severity), e.Name, e.Treatment, e.Group)
	}
	ew.printf("\n%d pests\n", len(entries))
	return ew.err
}

func writeAdvisory(ew *errWriter, label string, rec advisory.Record) {
	ew.printf("%s %s  (%s)\n", severityIcon(rec.Severity), label, strings.ToUpper(string(rec.Severity)))
	ew.printf("  Treatment: %s\n", rec.PrimaryTreatment)
	if rec.OrganicAlternative != "" {
		ew.printf("  Organic:   %s\n", rec.OrganicAlternative)
	}
	if len(rec.AffectedTargets) > 0 {
		ew.printf("  Crops:     %s\n", strings.Join(rec.AffectedTargets, ", "))
	}
	for _, line := range wrapText(rec.Description, 70) {
		ew.printf("    %s\n", line)
	}
	ew.println("  Action plan:")
	for _, line := range wrapText(rec.ActionPlan, 70) {
		ew.printf("    %s\n", line)
	}
	if rec.Source != "" {
		ew.printf("  Source: %s\n", rec.Source)
	}
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func severityIcon(s advisory.Severity) string {
	switch s {
	case advisory.SeverityHigh:
		return "[!!]"
	case advisory.SeverityMedium:
		return "[!]"
	case advisory.SeverityLow:
		return "[-]"
	default:
		return "[?]"
	}
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
