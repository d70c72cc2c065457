// Package output formats advisory lookups, detection reports and catalog
// listings for the terminal or for machine consumption.
//
// Two formats are supported:
//   - text: human-readable terminal output (default)
//   - json: indented JSON
//
// Use [GetWriter] to obtain a [Writer] for a given format string and [Open]
// to pick the destination.
package output
