// Package notify tells users about billing problems and cancellations by
// email and web push.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/mealplan/internal/billing"
	"github.com/dukerupert/mealplan/internal/metrics"
	"github.com/dukerupert/mealplan/internal/model"
)

const sendTimeout = 30 * time.Second

type PushStore interface {
	ListByUser(ctx context.Context, userID string) ([]model.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// Notice is one message rendered for every channel.
type Notice struct {
	Tag      string
	Subject  string
	TextBody string
	HTMLBody string
	Push     Payload
}

// Notifier fans a notice out to a user's inbox and devices. Delivery runs
// in the background and failures are only logged.
type Notifier struct {
	mailer  *Mailer
	pusher  *Pusher
	subs    PushStore
	baseURL string
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// New builds a notifier. A nil mailer or pusher disables that channel.
func New(mailer *Mailer, pusher *Pusher, subs PushStore, baseURL string, logger *slog.Logger) *Notifier {
	return &Notifier{
		mailer:  mailer,
		pusher:  pusher,
		subs:    subs,
		baseURL: baseURL,
		logger:  logger,
	}
}

// BillingEvent is a reconcile listener. Only payment failures are
// announced; a deletion following a cancel would otherwise notify twice.
func (n *Notifier) BillingEvent(ctx context.Context, ev billing.Event, p model.Profile) {
	if ev.Kind != billing.KindInvoicePaymentFailed {
		return
	}
	n.Dispatch(ctx, p, n.paymentFailedNotice(p))
}

// Cancelled announces a user-initiated cancellation.
func (n *Notifier) Cancelled(ctx context.Context, p model.Profile) {
	n.Dispatch(ctx, p, n.cancelledNotice(p))
}

// Dispatch sends notice to p in the background. The caller's deadline is
// not inherited, so a finished request does not cut delivery short.
func (n *Notifier) Dispatch(ctx context.Context, p model.Profile, notice Notice) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
		defer cancel()
		n.deliver(ctx, p, notice)
	}()
}

// Wait blocks until background deliveries finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) deliver(ctx context.Context, p model.Profile, notice Notice) {
	log := n.logger.With("user_id", p.UserID, "tag", notice.Tag)

	var g errgroup.Group
	if n.mailer != nil && p.Email != "" {
		g.Go(func() error {
			err := n.mailer.Send(ctx, Email{
				To:       p.Email,
				Subject:  notice.Subject,
				Tag:      notice.Tag,
				TextBody: notice.TextBody,
				HTMLBody: notice.HTMLBody,
			})
			record("email", err)
			if err != nil {
				log.Error("send notification email", "error", err)
			}
			return nil
		})
	}
	if n.pusher != nil {
		g.Go(func() error {
			n.pushAll(ctx, p.UserID, notice.Push, log)
			return nil
		})
	}
	g.Wait()
}

func (n *Notifier) pushAll(ctx context.Context, userID string, payload Payload, log *slog.Logger) {
	subs, err := n.subs.ListByUser(ctx, userID)
	if err != nil {
		log.Error("list push subscriptions", "error", err)
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, sub := range subs {
		g.Go(func() error {
			err := n.pusher.Send(ctx, sub, payload)
			record("push", err)
			switch {
			case errors.Is(err, ErrExpired):
				if err := n.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
					log.Error("delete expired push subscription", "device", sub.DeviceName, "error", err)
				} else {
					log.Info("removed expired push subscription", "device", sub.DeviceName)
				}
			case err != nil:
				log.Warn("send push notification", "device", sub.DeviceName, "error", err)
			}
			return nil
		})
	}
	g.Wait()
}

func record(channel string, err error) {
	outcome := "sent"
	switch {
	case errors.Is(err, ErrExpired):
		outcome = "expired"
	case err != nil:
		outcome = "failed"
	}
	metrics.NotificationsTotal.WithLabelValues(channel, outcome).Inc()
}

func (n *Notifier) paymentFailedNotice(p model.Profile) Notice {
	link := n.baseURL + "/profile"
	return Notice{
		Tag:     "payment-failed",
		Subject: "Your meal plan payment failed",
		TextBody: fmt.Sprintf("Hi %s,\n\nWe couldn't process your latest subscription payment, so meal plan generation is paused. Update your payment method to pick up where you left off:\n\n%s\n",
			greetingName(p), link),
		HTMLBody: fmt.Sprintf(`<p>Hi %s,</p><p>We couldn't process your latest subscription payment, so meal plan generation is paused.</p><p><a href="%s">Update your payment method</a></p>`,
			html.EscapeString(greetingName(p)), link),
		Push: Payload{
			Title: "Payment failed",
			Body:  "Update your payment method to keep generating meal plans.",
			URL:   "/profile",
			Tag:   "payment-failed",
		},
	}
}

func (n *Notifier) cancelledNotice(p model.Profile) Notice {
	link := n.baseURL + "/subscribe"
	return Notice{
		Tag:     "subscription-cancelled",
		Subject: "Your meal plan subscription was cancelled",
		TextBody: fmt.Sprintf("Hi %s,\n\nYour subscription has been cancelled and you won't be charged again. You can resubscribe at any time:\n\n%s\n",
			greetingName(p), link),
		HTMLBody: fmt.Sprintf(`<p>Hi %s,</p><p>Your subscription has been cancelled and you won't be charged again.</p><p><a href="%s">Resubscribe</a></p>`,
			html.EscapeString(greetingName(p)), link),
		Push: Payload{
			Title: "Subscription cancelled",
			Body:  "You won't be charged again. Resubscribe any time.",
			URL:   "/subscribe",
			Tag:   "subscription-cancelled",
		},
	}
}

func greetingName(p model.Profile) string {
	if p.Name != "" {
		return p.Name
	}
	return "there"
}
