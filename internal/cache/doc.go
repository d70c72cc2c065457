// Package cache provides the in-memory store behind the advisory service.
//
// Entries are keyed by the exact label string (case-sensitive). A key is
// written at most once: PutIfAbsent never replaces an existing entry, and
// nothing is ever evicted, so the store only grows for the lifetime of the
// process. The mutex guarding the map is held for the map access alone.
//
// Hit and miss counters are kept for [Store.GetStats]; [Store.Export] dumps the
// entries as JSON for debugging.
package cache
