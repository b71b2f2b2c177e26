package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
)

// EventKind classifies the billing events this service acts on.
type EventKind string

const (
	KindCheckoutCompleted    EventKind = "checkout-completed"
	KindInvoicePaymentFailed EventKind = "invoice-payment-failed"
	KindSubscriptionDeleted  EventKind = "subscription-deleted"
	KindUnhandled            EventKind = "unhandled"
)

// Event is a verified billing notification reduced to the fields the
// reconciler needs. Which identifiers are set depends on Kind:
// checkout-completed carries UserID, SubscriptionID and Plan; the other
// two carry SubscriptionID only.
type Event struct {
	ID             string
	Type           string
	Kind           EventKind
	UserID         string
	SubscriptionID string
	Plan           string
}

// expandableID decodes a Stripe reference that is either a bare id or an
// expanded object with an "id" field.
type expandableID string

func (e *expandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

type checkoutSession struct {
	ID           string            `json:"id"`
	Subscription expandableID      `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type invoice struct {
	ID           string       `json:"id"`
	Subscription expandableID `json:"subscription"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription expandableID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// subscriptionID prefers the parent block used by current API versions and
// falls back to the legacy top-level field.
func (inv invoice) subscriptionID() string {
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil && inv.Parent.SubscriptionDetails.Subscription != "" {
		return string(inv.Parent.SubscriptionDetails.Subscription)
	}
	return string(inv.Subscription)
}

type subscriptionObject struct {
	ID string `json:"id"`
}

// Decode maps a verified Stripe event onto an Event. Unknown event types
// decode to KindUnhandled without error.
func Decode(ev stripe.Event) (Event, error) {
	out := Event{ID: ev.ID, Type: string(ev.Type), Kind: KindUnhandled}
	var raw json.RawMessage
	if ev.Data != nil {
		raw = ev.Data.Raw
	}

	switch ev.Type {
	case "checkout.session.completed":
		var sess checkoutSession
		if err := json.Unmarshal(raw, &sess); err != nil {
			return out, fmt.Errorf("%w: decode checkout session: %v", ErrMalformedEvent, err)
		}
		out.Kind = KindCheckoutCompleted
		out.UserID = metadataUserID(sess.Metadata)
		out.SubscriptionID = strings.TrimSpace(string(sess.Subscription))
		out.Plan = strings.TrimSpace(sess.Metadata[MetadataPlanType])

	case "invoice.payment_failed":
		var inv invoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return out, fmt.Errorf("%w: decode invoice: %v", ErrMalformedEvent, err)
		}
		out.Kind = KindInvoicePaymentFailed
		out.SubscriptionID = strings.TrimSpace(inv.subscriptionID())

	case "customer.subscription.deleted":
		var sub subscriptionObject
		if err := json.Unmarshal(raw, &sub); err != nil {
			return out, fmt.Errorf("%w: decode subscription: %v", ErrMalformedEvent, err)
		}
		out.Kind = KindSubscriptionDeleted
		out.SubscriptionID = strings.TrimSpace(sub.ID)
	}

	return out, nil
}

func metadataUserID(md map[string]string) string {
	if id := strings.TrimSpace(md[MetadataUserID]); id != "" {
		return id
	}
	return strings.TrimSpace(md["userId"])
}
