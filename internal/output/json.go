package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/agriguard/internal/catalog"
	"github.com/dshills/agriguard/internal/detection"
)

// JSONWriter outputs results as indented JSON.
type JSONWriter struct{}

func (j *JSONWriter) WriteLookups(w io.Writer, lookups []Lookup) error {
	if lookups == nil {
		lookups = []Lookup{}
	}
	return writeJSON(w, lookups)
}

func (j *JSONWriter) WriteReport(w io.Writer, report *detection.Report) error {
	return writeJSON(w, report)
}

func (j *JSONWriter) WriteCatalog(w io.Writer, entries []catalog.Entry) error {
	if entries == nil {
		entries = []catalog.Entry{}
	}
	return writeJSON(w, entries)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
