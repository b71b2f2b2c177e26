// Package subscription starts, changes and cancels billing subscriptions on
// behalf of a signed-in user.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/dukerupert/mealplan/internal/metrics"
	"github.com/dukerupert/mealplan/internal/model"
)

// Provider is the billing provider as seen by the initiators.
type Provider interface {
	PriceIDForTier(tier model.Tier) (string, bool)
	CreateCheckoutSession(ctx context.Context, userID, email string, tier model.Tier, priceID string) (string, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	ChangePlan(ctx context.Context, subscriptionID string, tier model.Tier, priceID string) (*stripe.Subscription, error)
}

type ProfileStore interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
	Update(ctx context.Context, userID string, fn func(*model.Profile) error) (*model.Profile, error)
}

// Change names a user-initiated subscription change.
type Change string

const (
	ChangeCancelled   Change = "cancelled"
	ChangePlanChanged Change = "plan_changed"
)

// Listener is called after a change has been written locally.
type Listener func(ctx context.Context, change Change, p model.Profile)

type Service struct {
	provider  Provider
	profiles  ProfileStore
	logger    *slog.Logger
	listeners []Listener
}

func NewService(provider Provider, profiles ProfileStore, logger *slog.Logger, listeners ...Listener) *Service {
	return &Service{
		provider:  provider,
		profiles:  profiles,
		logger:    logger,
		listeners: listeners,
	}
}

// StartCheckout creates a hosted checkout session for plan and returns the
// URL to redirect the user to. Unknown plans are rejected before the
// provider is contacted.
func (s *Service) StartCheckout(ctx context.Context, userID, email, plan string) (string, error) {
	tier, priceID, err := s.resolvePlan(plan)
	if err != nil {
		metrics.CheckoutSessionsTotal.WithLabelValues("invalid", "rejected").Inc()
		return "", err
	}

	url, err := s.provider.CreateCheckoutSession(ctx, userID, email, tier, priceID)
	if err != nil {
		metrics.CheckoutSessionsTotal.WithLabelValues(string(tier), "error").Inc()
		s.logger.Error("create checkout session", "user_id", userID, "plan", tier, "error", err)
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	metrics.CheckoutSessionsTotal.WithLabelValues(string(tier), "created").Inc()
	s.logger.Info("checkout session created", "user_id", userID, "plan", tier)
	return url, nil
}

// Cancel asks the provider to end the user's subscription at the close of
// the billing period, then revokes access locally right away.
func (s *Service) Cancel(ctx context.Context, userID string) (*stripe.Subscription, error) {
	p, err := s.subscribedProfile(ctx, userID)
	if err != nil {
		metrics.CancellationsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	subID := *p.StripeSubscriptionID

	sub, err := s.provider.CancelAtPeriodEnd(ctx, subID)
	if err != nil {
		metrics.CancellationsTotal.WithLabelValues("error").Inc()
		s.logger.Error("cancel subscription", "user_id", userID, "subscription_id", subID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	updated, err := s.profiles.Update(ctx, userID, func(p *model.Profile) error {
		// A checkout or deletion may have replaced the subscription while
		// the provider call was in flight; only the cancelled one is cleared.
		if !p.HasSubscription() || *p.StripeSubscriptionID != subID {
			return errSuperseded
		}
		p.ClearSubscription()
		return nil
	})
	if errors.Is(err, errSuperseded) {
		metrics.CancellationsTotal.WithLabelValues("cancelled").Inc()
		s.logger.Info("subscription cancelled after it was replaced", "user_id", userID, "subscription_id", subID)
		return sub, nil
	}
	if err != nil {
		metrics.CancellationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("clear subscription: %w", err)
	}

	metrics.CancellationsTotal.WithLabelValues("cancelled").Inc()
	s.logger.Info("subscription cancelled", "user_id", userID, "subscription_id", subID)
	s.notify(ctx, ChangeCancelled, *updated)
	return sub, nil
}

// ChangePlan moves the user's existing subscription to another plan with
// prorations and records the new tier.
func (s *Service) ChangePlan(ctx context.Context, userID, plan string) (*model.Profile, error) {
	tier, priceID, err := s.resolvePlan(plan)
	if err != nil {
		return nil, err
	}
	p, err := s.subscribedProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	subID := *p.StripeSubscriptionID

	if _, err := s.provider.ChangePlan(ctx, subID, tier, priceID); err != nil {
		s.logger.Error("change plan", "user_id", userID, "subscription_id", subID, "plan", tier, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	updated, err := s.profiles.Update(ctx, userID, func(p *model.Profile) error {
		// A deletion may have landed while the provider call was in flight.
		if !p.HasSubscription() || *p.StripeSubscriptionID != subID {
			return ErrNoSubscription
		}
		p.SubscriptionTier = &tier
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set tier: %w", err)
	}

	s.logger.Info("plan changed", "user_id", userID, "plan", tier)
	s.notify(ctx, ChangePlanChanged, *updated)
	return updated, nil
}

func (s *Service) resolvePlan(plan string) (model.Tier, string, error) {
	tier, ok := model.ParseTier(plan)
	if !ok {
		return "", "", ErrInvalidPlan
	}
	priceID, ok := s.provider.PriceIDForTier(tier)
	if !ok {
		return "", "", ErrPriceNotConfigured
	}
	return tier, priceID, nil
}

func (s *Service) subscribedProfile(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	if !p.HasSubscription() {
		return nil, ErrNoSubscription
	}
	return p, nil
}

func (s *Service) notify(ctx context.Context, change Change, p model.Profile) {
	for _, l := range s.listeners {
		l(ctx, change, p)
	}
}

// IsClientError reports whether err was caused by the request rather than
// by this service or its collaborators.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPlan) ||
		errors.Is(err, ErrPriceNotConfigured) ||
		errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrNoSubscription)
}
