// Package server exposes the advisory service over HTTP with echo.
//
// Routes: health probes, advisory lookups by label, a snapshot of the cache,
// detection batches (POST) and the latest detection summary in the polling
// shape dashboards expect (GET). Every error is returned as
// {"error":{"code":...,"message":...}}.
package server
