package model

import "time"

// Tier is the billing interval of a subscription plan.
type Tier string

const (
	TierWeek  Tier = "week"
	TierMonth Tier = "month"
	TierYear  Tier = "year"
)

// Tiers lists every plan a user can subscribe to, shortest first.
var Tiers = []Tier{TierWeek, TierMonth, TierYear}

// ParseTier returns the tier named by s. The second result is false for
// anything outside week, month and year.
func ParseTier(s string) (Tier, bool) {
	switch Tier(s) {
	case TierWeek, TierMonth, TierYear:
		return Tier(s), true
	}
	return "", false
}

// Profile is the per-user record linking an identity-provider subject to
// its billing state.
type Profile struct {
	UserID               string    `json:"userId"`
	Name                 string    `json:"name"`
	Email                string    `json:"email"`
	SubscriptionTier     *Tier     `json:"subscriptionTier"`
	StripeSubscriptionID *string   `json:"stripeSubscriptionId"`
	SubscriptionActive   bool      `json:"subscriptionActive"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// HasSubscription reports whether a billing subscription is linked.
func (p *Profile) HasSubscription() bool {
	return p.StripeSubscriptionID != nil && *p.StripeSubscriptionID != ""
}

// Consistent reports whether an active profile also carries a tier and a
// subscription id.
func (p *Profile) Consistent() bool {
	if !p.SubscriptionActive {
		return true
	}
	return p.HasSubscription() && p.SubscriptionTier != nil
}

// ClearSubscription drops every subscription field.
func (p *Profile) ClearSubscription() {
	p.SubscriptionTier = nil
	p.StripeSubscriptionID = nil
	p.SubscriptionActive = false
}
