package output

import (
	"fmt"
	"io"
	"os"

	"github.com/dshills/agriguard/internal/advisory"
	"github.com/dshills/agriguard/internal/catalog"
	"github.com/dshills/agriguard/internal/detection"
)

// Lookup is one label resolved by the advisory service.
type Lookup struct {
	Label    string          `json:"label"`
	Advisory advisory.Record `json:"advisory"`
	Fallback bool            `json:"fallback"`
}

// NewLookup pairs label with its record.
func NewLookup(label string, rec advisory.Record) Lookup {
	return Lookup{Label: label, Advisory: rec, Fallback: advisory.IsFallback(rec)}
}

// Writer writes results in a specific format.
type Writer interface {
	WriteLookups(w io.Writer, lookups []Lookup) error
	WriteReport(w io.Writer, report *detection.Report) error
	WriteCatalog(w io.Writer, entries []catalog.Entry) error
}

// Formats lists the supported output formats.
var Formats = []string{"text", "json"}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Open returns the destination for outPath, or stdout when outPath is empty.
// The returned close function is always safe to call.
func Open(outPath string) (io.Writer, func() error, error) {
	if outPath == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}
