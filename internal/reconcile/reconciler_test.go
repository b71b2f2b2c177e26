package reconcile

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/mealplan/internal/billing"
	"github.com/dukerupert/mealplan/internal/database"
	"github.com/dukerupert/mealplan/internal/model"
	"github.com/dukerupert/mealplan/internal/store"
)

func setupReconciler(t *testing.T, listeners ...Listener) (*Reconciler, *store.ProfileStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ps := store.NewProfileStore(db)
	return New(ps, slog.Default(), listeners...), ps
}

func TestReconcilerSubscriptionLifecycle(t *testing.T) {
	var notified []billing.EventKind
	r, ps := setupReconciler(t, func(_ context.Context, ev billing.Event, _ model.Profile) {
		notified = append(notified, ev.Kind)
	})
	ctx := context.Background()
	_, _, err := ps.Create(ctx, "user_1", "Alice", "alice@example.com")
	require.NoError(t, err)

	assert.Equal(t, Applied, r.Handle(ctx, checkoutEvent("user_1", "sub_1", "month")))
	p, _ := ps.Get(ctx, "user_1")
	assert.True(t, p.SubscriptionActive)
	require.NotNil(t, p.SubscriptionTier)
	assert.Equal(t, model.TierMonth, *p.SubscriptionTier)
	require.NotNil(t, p.StripeSubscriptionID)
	assert.Equal(t, "sub_1", *p.StripeSubscriptionID)

	assert.Equal(t, Unchanged, r.Handle(ctx, checkoutEvent("user_1", "sub_1", "month")))

	assert.Equal(t, Applied, r.Handle(ctx, deletedEvent("sub_1")))
	p, _ = ps.Get(ctx, "user_1")
	assert.False(t, p.SubscriptionActive)
	assert.Nil(t, p.SubscriptionTier)
	assert.Nil(t, p.StripeSubscriptionID)

	// Redelivered deletion no longer resolves: the id was cleared.
	assert.Equal(t, Unresolved, r.Handle(ctx, deletedEvent("sub_1")))

	assert.Equal(t, []billing.EventKind{billing.KindCheckoutCompleted, billing.KindSubscriptionDeleted}, notified)
}

func TestReconcilerPaymentFailedTwice(t *testing.T) {
	r, ps := setupReconciler(t)
	ctx := context.Background()
	ps.Create(ctx, "user_1", "Alice", "alice@example.com")
	r.Handle(ctx, checkoutEvent("user_1", "sub_1", "week"))

	assert.Equal(t, Applied, r.Handle(ctx, paymentFailedEvent("sub_1")))
	once, _ := ps.Get(ctx, "user_1")

	assert.Equal(t, Unchanged, r.Handle(ctx, paymentFailedEvent("sub_1")))
	twice, _ := ps.Get(ctx, "user_1")

	assert.Equal(t, once.SubscriptionActive, twice.SubscriptionActive)
	assert.Equal(t, once.SubscriptionTier, twice.SubscriptionTier)
	assert.Equal(t, once.StripeSubscriptionID, twice.StripeSubscriptionID)
	assert.False(t, twice.SubscriptionActive)
}

func TestReconcilerUnknownUser(t *testing.T) {
	r, _ := setupReconciler(t)
	assert.Equal(t, Unresolved, r.Handle(context.Background(), checkoutEvent("ghost", "sub_1", "month")))
}

func TestReconcilerUnknownSubscription(t *testing.T) {
	r, _ := setupReconciler(t)
	assert.Equal(t, Unresolved, r.Handle(context.Background(), paymentFailedEvent("sub_missing")))
}

func TestReconcilerMissingMetadata(t *testing.T) {
	r, ps := setupReconciler(t)
	ctx := context.Background()
	ps.Create(ctx, "user_1", "Alice", "alice@example.com")

	assert.Equal(t, Skipped, r.Handle(ctx, checkoutEvent("", "sub_1", "month")))
	assert.Equal(t, Skipped, r.Handle(ctx, checkoutEvent("user_1", "sub_1", "")))

	p, _ := ps.Get(ctx, "user_1")
	assert.False(t, p.SubscriptionActive)
	assert.Nil(t, p.StripeSubscriptionID)
}

func TestReconcilerIgnoresUnhandled(t *testing.T) {
	r, _ := setupReconciler(t)
	assert.Equal(t, Ignored, r.Handle(context.Background(), billing.Event{Kind: billing.KindUnhandled, Type: "charge.refunded"}))
}
