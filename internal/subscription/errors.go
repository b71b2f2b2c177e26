package subscription

import "errors"

var (
	ErrInvalidPlan        = errors.New("invalid plan type")
	ErrPriceNotConfigured = errors.New("invalid price id")
	ErrProfileNotFound    = errors.New("no profile found")
	ErrNoSubscription     = errors.New("no active subscription found")
	ErrUpstream           = errors.New("billing provider error")
)

// errSuperseded aborts a local write when the profile no longer carries the
// subscription the provider call acted on.
var errSuperseded = errors.New("subscription replaced")
