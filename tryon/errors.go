package tryon

import "fmt"

const (
	missingAPIKeyMessage = "SeedREAM API key not configured. Please set SEEDREAM_CLIENT_API_KEY in your environment."
	noImagesMessage      = "No images were generated"
	noImageURLMessage    = "No image URL returned from API"
	imageFailedMessage   = "Image generation failed"
)

// Error is the only failure type GenerateTryOnImage returns. Code carries
// the provider (or relay) error code when one was supplied; Details is the
// underlying cause a relay reports alongside its own message.
type Error struct {
	Message string
	Code    string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(message, code string) *Error {
	return &Error{Message: message, Code: code}
}

// wrapError turns transport and decoding failures into an *Error.
func wrapError(err error) *Error {
	return &Error{Message: fmt.Sprintf("API request failed: %v", err), Err: err}
}
