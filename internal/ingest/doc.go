// Package ingest serves the advisory service to detectors over NATS.
//
// A nats.go micro service named agriguard-advisory exposes two endpoints
// under the agriguard group:
//
//	agriguard.lookup      payload: label      reply: advisory record JSON
//	agriguard.detections  payload: batch JSON reply: detection report JSON
//
// Requests that cannot be decoded are answered with a micro error, code 400.
package ingest
