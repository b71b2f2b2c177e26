package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukerupert/mealplan/internal/billing"
	"github.com/dukerupert/mealplan/internal/metrics"
	"github.com/dukerupert/mealplan/internal/model"
	"github.com/dukerupert/mealplan/internal/store"
)

// ProfileStore is the subset of store.ProfileStore the reconciler needs.
type ProfileStore interface {
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Profile, error)
	Update(ctx context.Context, userID string, fn func(*model.Profile) error) (*model.Profile, error)
}

// Listener is told about every profile the reconciler changed.
type Listener func(ctx context.Context, ev billing.Event, p model.Profile)

type Reconciler struct {
	store     ProfileStore
	logger    *slog.Logger
	listeners []Listener
}

func New(s ProfileStore, logger *slog.Logger, listeners ...Listener) *Reconciler {
	return &Reconciler{store: s, logger: logger, listeners: listeners}
}

var errNoChange = errors.New("no change")

// Handle applies ev to the profile it refers to. Failures are logged and
// reported through the returned Outcome; they are never retried.
func (r *Reconciler) Handle(ctx context.Context, ev billing.Event) Outcome {
	outcome := r.handle(ctx, ev)
	metrics.ReconcileTotal.WithLabelValues(string(ev.Kind), string(outcome)).Inc()
	return outcome
}

func (r *Reconciler) handle(ctx context.Context, ev billing.Event) Outcome {
	log := r.logger.With("event_id", ev.ID, "type", ev.Type)

	if ev.Kind == billing.KindUnhandled {
		log.Info("billing event ignored")
		return Ignored
	}

	userID, outcome := r.resolve(ctx, ev, log)
	if userID == "" {
		return outcome
	}

	result := Skipped
	updated, err := r.store.Update(ctx, userID, func(p *model.Profile) error {
		next, o := Apply(*p, ev)
		result = o
		if o != Applied {
			return errNoChange
		}
		*p = next
		return nil
	})
	switch {
	case errors.Is(err, errNoChange):
		if result == Skipped {
			log.Warn("billing event does not match profile", "user_id", userID, "subscription_id", ev.SubscriptionID)
		} else {
			log.Debug("billing event already applied", "user_id", userID, "outcome", result)
		}
		return result
	case errors.Is(err, store.ErrNotFound):
		log.Warn("no profile for billing event", "user_id", userID)
		return Unresolved
	case err != nil:
		log.Error("apply billing event", "user_id", userID, "error", err)
		return Failed
	}

	log.Info("billing event applied",
		"user_id", userID,
		"kind", ev.Kind,
		"subscription_active", updated.SubscriptionActive,
	)
	for _, l := range r.listeners {
		l(ctx, ev, *updated)
	}
	return Applied
}

// resolve returns the user the event belongs to, or "" with the outcome
// explaining why none was found.
func (r *Reconciler) resolve(ctx context.Context, ev billing.Event, log *slog.Logger) (string, Outcome) {
	if ev.Kind == billing.KindCheckoutCompleted {
		if ev.UserID == "" {
			log.Warn("checkout session has no user id in metadata")
			return "", Skipped
		}
		if ev.SubscriptionID == "" {
			log.Warn("checkout session has no subscription id", "user_id", ev.UserID)
			return "", Skipped
		}
		return ev.UserID, Applied
	}

	if ev.SubscriptionID == "" {
		log.Warn("billing event has no subscription id")
		return "", Skipped
	}
	p, err := r.store.GetBySubscriptionID(ctx, ev.SubscriptionID)
	if err != nil {
		log.Error("lookup profile by subscription", "subscription_id", ev.SubscriptionID, "error", err)
		return "", Failed
	}
	if p == nil {
		log.Warn("no profile for subscription", "subscription_id", ev.SubscriptionID)
		return "", Unresolved
	}
	return p.UserID, Applied
}
