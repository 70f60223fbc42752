package provider

import "errors"

// Sentinel errors for provider operations.
var (
	// ErrRateLimit indicates the provider returned a rate limit response.
	ErrRateLimit = errors.New("provider rate limited")

	// ErrContextLength indicates the request exceeded the model's context window.
	ErrContextLength = errors.New("context length exceeded")

	// ErrProviderDown indicates the provider is temporarily unavailable.
	ErrProviderDown = errors.New("provider unavailable")

	// ErrUnauthorized indicates the provider rejected the credentials.
	ErrUnauthorized = errors.New("provider rejected credentials")

	// ErrModelNotFound indicates the backend does not know the model.
	ErrModelNotFound = errors.New("model not found")

	// ErrUnsupportedInput indicates the model rejected a part type, such as
	// an image sent to a text-only model.
	ErrUnsupportedInput = errors.New("model does not accept this input")
)

// IsRetryable reports whether the error is transient and the request
// can be retried after a delay.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrProviderDown)
}
