// Package reconcile applies billing events to profiles.
//
// Every transition writes absolute state, so applying an event twice leaves
// a profile exactly as applying it once. Ordering is not enforced: a stale
// checkout-completed delivered after subscription-deleted re-activates the
// profile.
package reconcile

import (
	"github.com/dukerupert/mealplan/internal/billing"
	"github.com/dukerupert/mealplan/internal/model"
)

// Outcome describes what happened to a single event.
type Outcome string

const (
	// Applied means the profile changed.
	Applied Outcome = "applied"
	// Unchanged means the event matched but the profile already held the target state.
	Unchanged Outcome = "unchanged"
	// Skipped means the event lacked the data needed to act or targeted a
	// subscription the profile no longer carries.
	Skipped Outcome = "skipped"
	// Unresolved means no profile matched the event.
	Unresolved Outcome = "unresolved"
	// Ignored means the event kind is not acted on.
	Ignored Outcome = "ignored"
	// Failed means the store returned an error.
	Failed Outcome = "failed"
)

// Apply returns the profile that results from ev. It does not modify p.
func Apply(p model.Profile, ev billing.Event) (model.Profile, Outcome) {
	next := p

	switch ev.Kind {
	case billing.KindCheckoutCompleted:
		if ev.UserID == "" || ev.SubscriptionID == "" {
			return p, Skipped
		}
		tier, ok := model.ParseTier(ev.Plan)
		if !ok {
			return p, Skipped
		}
		subID := ev.SubscriptionID
		next.StripeSubscriptionID = &subID
		next.SubscriptionTier = &tier
		next.SubscriptionActive = true

	case billing.KindInvoicePaymentFailed:
		if !owns(p, ev.SubscriptionID) {
			return p, Skipped
		}
		next.SubscriptionActive = false

	case billing.KindSubscriptionDeleted:
		// A redelivery finds the subscription already cleared.
		if ev.SubscriptionID != "" && !p.HasSubscription() && !p.SubscriptionActive && p.SubscriptionTier == nil {
			return p, Unchanged
		}
		if !owns(p, ev.SubscriptionID) {
			return p, Skipped
		}
		next.ClearSubscription()

	default:
		return p, Ignored
	}

	if sameSubscriptionState(p, next) {
		return p, Unchanged
	}
	return next, Applied
}

func owns(p model.Profile, subscriptionID string) bool {
	return subscriptionID != "" && p.HasSubscription() && *p.StripeSubscriptionID == subscriptionID
}

func sameSubscriptionState(a, b model.Profile) bool {
	return a.SubscriptionActive == b.SubscriptionActive &&
		equalPtr(a.SubscriptionTier, b.SubscriptionTier) &&
		equalPtr(a.StripeSubscriptionID, b.StripeSubscriptionID)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
