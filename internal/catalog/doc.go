// Package catalog is the offline pest dictionary: a fixed table mapping the
// detector's class names to a registered treatment, grouped by pest family.
//
// The table is embedded from pests.yaml and can be replaced by a file of the
// same shape. Labels are matched exactly, then case-insensitively, then by
// the closest fuzzy match within a small edit distance. A [Catalog] is an
// advisory.Fetcher, so it can serve lookups on its own or stand behind an LLM
// provider in an advisory.Chain.
package catalog
