// Package redact removes credentials from text before it is logged or
// returned to a client.
//
// Provider SDK errors can echo request URLs, headers and response bodies.
// Detection uses regex heuristics covering API keys (Anthropic, OpenAI,
// Google), keys passed as URL query parameters, bearer tokens, JWTs, NATS
// URLs with embedded user credentials, and generic secret assignments.
package redact
