package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/dukerupert/mealplan/internal/model"
)

// Metadata keys attached to checkout sessions so the asynchronous
// checkout.session.completed event can be attributed to a user.
const (
	MetadataUserID   = "clerkUserId"
	MetadataPlanType = "planType"
)

type Config struct {
	SecretKey      string
	WebhookSecret  string
	WeeklyPriceID  string
	MonthlyPriceID string
	YearlyPriceID  string
	SuccessURL     string
	CancelURL      string
	Timeout        time.Duration
}

// Client wraps a dedicated Stripe API client. It never touches the
// package-level stripe.Key.
type Client struct {
	cfg Config
	api *client.API
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(0),
	})
	return &Client{cfg: cfg, api: client.New(cfg.SecretKey, backends)}
}

// PriceIDForTier returns the configured Stripe price for a plan.
func (c *Client) PriceIDForTier(tier model.Tier) (string, bool) {
	var id string
	switch tier {
	case model.TierWeek:
		id = c.cfg.WeeklyPriceID
	case model.TierMonth:
		id = c.cfg.MonthlyPriceID
	case model.TierYear:
		id = c.cfg.YearlyPriceID
	}
	return id, id != ""
}

// CreateCheckoutSession creates a subscription-mode checkout session tagged
// with the user and plan, and returns its hosted URL.
func (c *Client) CreateCheckoutSession(ctx context.Context, userID, email string, tier model.Tier, priceID string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		CustomerEmail: stripe.String(email),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				MetadataUserID:   userID,
				MetadataPlanType: string(tier),
			},
		},
		SuccessURL: stripe.String(c.cfg.SuccessURL),
		CancelURL:  stripe.String(c.cfg.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, userID)
	params.AddMetadata(MetadataPlanType, string(tier))

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	if sess.URL == "" {
		return "", errors.New("create checkout session: no url returned")
	}
	return sess.URL, nil
}

// CancelAtPeriodEnd marks a subscription to end when the current billing
// period closes.
func (c *Client) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx

	sub, err := c.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}
	return sub, nil
}

// ChangePlan swaps the price on the subscription's first item, prorating
// the difference, and records the new plan in the subscription metadata.
func (c *Client) ChangePlan(ctx context.Context, subscriptionID string, tier model.Tier, priceID string) (*stripe.Subscription, error) {
	getParams := &stripe.SubscriptionParams{}
	getParams.Context = ctx
	current, err := c.api.Subscriptions.Get(subscriptionID, getParams)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	if current.Items == nil || len(current.Items.Data) == 0 {
		return nil, fmt.Errorf("subscription %s has no items", subscriptionID)
	}

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(current.Items.Data[0].ID),
				Price: stripe.String(priceID),
			},
		},
		ProrationBehavior: stripe.String("create_prorations"),
	}
	params.Context = ctx
	params.AddMetadata(MetadataPlanType, string(tier))

	sub, err := c.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("update subscription price: %w", err)
	}
	return sub, nil
}
