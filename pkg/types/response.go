// Package types holds the JSON envelopes shared by every HTTP response.
package types

// SuccessEnvelope wraps successful response bodies under a "data" key.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error body. Code mirrors the internal error
// code taxonomy so clients can branch on it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps an APIError under an "error" key.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
