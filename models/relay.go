package models

// ErrorKind is the value of the "error" field in bodies produced by the
// relay itself (as opposed to bodies relayed from upstream).
type ErrorKind string

const (
	KindAPIKeyMissing    ErrorKind = "API_KEY_MISSING"
	KindProxyError       ErrorKind = "PROXY_ERROR"
	KindInternalError    ErrorKind = "INTERNAL_ERROR"
	KindNotFound         ErrorKind = "NOT_FOUND"
	KindPayloadTooLarge  ErrorKind = "PAYLOAD_TOO_LARGE"
	KindRateLimited      ErrorKind = "RATE_LIMITED"
	KindInvalidRequest   ErrorKind = "INVALID_REQUEST"
	KindQueueUnavailable ErrorKind = "QUEUE_UNAVAILABLE"
)

type RelayErrorResponse struct {
	Error              ErrorKind `json:"error"`
	Message            string    `json:"message"`
	Details            string    `json:"details,omitempty"`
	AvailableEndpoints []string  `json:"availableEndpoints,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
