package billing

import "errors"

var (
	ErrSecretNotConfigured = errors.New("webhook secret not configured")
	ErrInvalidSignature    = errors.New("webhook signature verification failed")
	ErrMalformedEvent      = errors.New("malformed webhook event")
)
