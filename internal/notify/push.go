package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/dukerupert/mealplan/internal/model"
)

// ErrExpired means the push service no longer knows the endpoint.
var ErrExpired = errors.New("push subscription expired")

// Payload is what the service worker receives.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Pusher delivers web push messages signed with the server's VAPID keys.
type Pusher struct {
	publicKey  string
	privateKey string
	subscriber string
	httpClient webpush.HTTPClient
}

// NewPusher returns a pusher, or nil when no VAPID key pair is set.
// subscriber is the contact address push services may use.
func NewPusher(publicKey, privateKey, subscriber string) *Pusher {
	if publicKey == "" || privateKey == "" {
		return nil
	}
	return &Pusher{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		httpClient: http.DefaultClient,
	}
}

// PublicKey is handed to browsers when they subscribe.
func (p *Pusher) PublicKey() string {
	if p == nil {
		return ""
	}
	return p.publicKey
}

func (p *Pusher) Send(ctx context.Context, sub model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		HTTPClient:      p.httpClient,
		Subscriber:      p.subscriber,
		VAPIDPublicKey:  p.publicKey,
		VAPIDPrivateKey: p.privateKey,
		TTL:             86400,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		return ErrExpired
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}

// GenerateVAPIDKeys returns a fresh base64url key pair.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generate vapid keys: %w", err)
	}
	return publicKey, privateKey, nil
}
