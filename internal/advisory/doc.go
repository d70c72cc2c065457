// Package advisory maps a detected pest label to an advisory record.
//
// A [Service] keeps every record it resolves in a write-once cache and asks
// its [Fetcher] at most once per label. Concurrent lookups for the same
// uncached label share one fetch. When a fetch fails, times out, or returns
// content that does not match the record schema, the caller receives a
// complete generic record built by [Fallback] instead of an error.
//
// [LLMFetcher] renders a prompt, sends it through a providers.Completer and
// validates the answer with [ParseRecord], which also accepts the legacy field
// names (pesticide, action, organic, crops_affected) older prompts produced.
package advisory
