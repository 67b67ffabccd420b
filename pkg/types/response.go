// Package types holds the wire shapes shared by every api response. The one
// exception is the jobs trigger endpoint, which returns a flat body for
// external schedulers.
package types

// SuccessEnvelope wraps every successful api payload under "data".
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-visible error: a stable code, a safe message, and
// optional structured details (field-level validation hints).
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
