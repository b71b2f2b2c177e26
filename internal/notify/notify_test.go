package notify

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/mealplan/internal/billing"
	"github.com/dukerupert/mealplan/internal/database"
	"github.com/dukerupert/mealplan/internal/model"
	"github.com/dukerupert/mealplan/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	Tag      string `json:"Tag"`
	TextBody string `json:"TextBody"`
}

// postmarkServer records every email posted to it.
func postmarkServer(t *testing.T) (*httptest.Server, func() []sentEmail) {
	t.Helper()
	var mu sync.Mutex
	var sent []sentEmail
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e sentEmail
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			t.Errorf("decode email: %v", err)
		}
		mu.Lock()
		sent = append(sent, e)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"To":"x","MessageID":"msg-1","ErrorCode":0,"Message":"OK"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []sentEmail {
		mu.Lock()
		defer mu.Unlock()
		return append([]sentEmail(nil), sent...)
	}
}

func browserKeys(t *testing.T) (p256dh, auth string) {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	secret := make([]byte, 16)
	_, err = rand.Read(secret)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		base64.RawURLEncoding.EncodeToString(secret)
}

func setupPushStore(t *testing.T) *store.PushStore {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, _, err = store.NewProfileStore(db).Create(context.Background(), "user_1", "Alice", "alice@example.com")
	require.NoError(t, err)
	return store.NewPushStore(db)
}

func TestMailerSend(t *testing.T) {
	srv, sent := postmarkServer(t)
	m := NewMailer("server-token", "", "billing@mealplan.test")
	m.client.BaseURL = srv.URL

	err := m.Send(context.Background(), Email{To: "alice@example.com", Subject: "Hello", Tag: "test", TextBody: "hi"})
	require.NoError(t, err)

	got := sent()
	require.Len(t, got, 1)
	assert.Equal(t, "billing@mealplan.test", got[0].From)
	assert.Equal(t, "alice@example.com", got[0].To)
	assert.Equal(t, "Hello", got[0].Subject)
}

func TestMailerNotConfigured(t *testing.T) {
	m := NewMailer("", "", "billing@mealplan.test")
	assert.Nil(t, m)
	assert.ErrorIs(t, m.Send(context.Background(), Email{To: "a@example.com"}), ErrEmailNotConfigured)
}

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	require.NoError(t, err)
	assert.NotEmpty(t, pub)
	assert.NotEmpty(t, priv)

	pub2, _, err := GenerateVAPIDKeys()
	require.NoError(t, err)
	assert.NotEqual(t, pub, pub2)
}

func TestNewPusherRequiresKeys(t *testing.T) {
	assert.Nil(t, NewPusher("", "", "ops@mealplan.test"))
	assert.Equal(t, "", (*Pusher)(nil).PublicKey())
}

func TestPaymentFailedNotifiesAllChannels(t *testing.T) {
	mailSrv, sent := postmarkServer(t)
	mailer := NewMailer("server-token", "", "billing@mealplan.test")
	mailer.client.BaseURL = mailSrv.URL

	var mu sync.Mutex
	var pushed []string
	pushSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		pushed = append(pushed, r.URL.Path)
		mu.Unlock()
		if strings.HasSuffix(r.URL.Path, "/gone") {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer pushSrv.Close()

	pub, priv, err := GenerateVAPIDKeys()
	require.NoError(t, err)
	pusher := NewPusher(pub, priv, "ops@mealplan.test")

	subs := setupPushStore(t)
	ctx := context.Background()
	p256dh, authKey := browserKeys(t)
	_, err = subs.Upsert(ctx, "user_1", pushSrv.URL+"/push/live", p256dh, authKey, "Laptop")
	require.NoError(t, err)
	_, err = subs.Upsert(ctx, "user_1", pushSrv.URL+"/push/gone", p256dh, authKey, "Old phone")
	require.NoError(t, err)

	n := New(mailer, pusher, subs, "https://mealplan.test", quietLogger())
	profile := model.Profile{UserID: "user_1", Name: "Alice", Email: "alice@example.com"}

	n.BillingEvent(ctx, billing.Event{Kind: billing.KindInvoicePaymentFailed, SubscriptionID: "sub_1"}, profile)
	n.Wait()

	emails := sent()
	require.Len(t, emails, 1)
	assert.Equal(t, "payment-failed", emails[0].Tag)
	assert.Contains(t, emails[0].TextBody, "Hi Alice")
	assert.Contains(t, emails[0].TextBody, "https://mealplan.test/profile")

	mu.Lock()
	assert.ElementsMatch(t, []string{"/push/live", "/push/gone"}, pushed)
	mu.Unlock()

	remaining, err := subs.ListByUser(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "Laptop", remaining[0].DeviceName)
}

func TestBillingEventIgnoresOtherKinds(t *testing.T) {
	mailSrv, sent := postmarkServer(t)
	mailer := NewMailer("server-token", "", "billing@mealplan.test")
	mailer.client.BaseURL = mailSrv.URL

	n := New(mailer, nil, nil, "https://mealplan.test", quietLogger())
	profile := model.Profile{UserID: "user_1", Email: "alice@example.com"}

	n.BillingEvent(context.Background(), billing.Event{Kind: billing.KindCheckoutCompleted}, profile)
	n.BillingEvent(context.Background(), billing.Event{Kind: billing.KindSubscriptionDeleted}, profile)
	n.Wait()

	assert.Empty(t, sent())
}

func TestCancelledSendsEmail(t *testing.T) {
	mailSrv, sent := postmarkServer(t)
	mailer := NewMailer("server-token", "", "billing@mealplan.test")
	mailer.client.BaseURL = mailSrv.URL

	n := New(mailer, nil, nil, "https://mealplan.test", quietLogger())
	n.Cancelled(context.Background(), model.Profile{UserID: "user_1", Email: "alice@example.com"})
	n.Wait()

	emails := sent()
	require.Len(t, emails, 1)
	assert.Equal(t, "subscription-cancelled", emails[0].Tag)
	assert.Contains(t, emails[0].TextBody, "Hi there")
}

func TestDispatchSurvivesCancelledContext(t *testing.T) {
	mailSrv, sent := postmarkServer(t)
	mailer := NewMailer("server-token", "", "billing@mealplan.test")
	mailer.client.BaseURL = mailSrv.URL

	n := New(mailer, nil, nil, "https://mealplan.test", quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n.Cancelled(ctx, model.Profile{UserID: "user_1", Email: "alice@example.com"})
	n.Wait()

	assert.Len(t, sent(), 1)
}
