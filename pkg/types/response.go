// Package types holds the wire envelopes every HTTP response is
// shaped into. Handlers never emit ad hoc JSON; they fill one of these
// and hand it to the responses package.
package types

// SuccessEnvelope wraps every 2xx payload under a single data key.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error body: a stable machine-readable code,
// a message safe to show callers, and optional structured details.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps APIError under the error key.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
