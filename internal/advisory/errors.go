package advisory

import "errors"

var (
	// ErrInvalidLabel is returned by Lookup for an empty label.
	ErrInvalidLabel = errors.New("invalid label: label must not be empty")

	// ErrProviderUnavailable wraps network, timeout and provider-side failures.
	ErrProviderUnavailable = errors.New("advisory provider unavailable")

	// ErrMalformedResponse wraps provider content that does not match the record schema.
	ErrMalformedResponse = errors.New("malformed advisory response")
)
