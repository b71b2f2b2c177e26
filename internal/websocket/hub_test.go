package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/dukerupert/mealplan/internal/model"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, userID string) *Client {
	return &Client{
		hub:    hub,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, "user_1")
	c2 := mockClient(hub, "user_1")
	c3 := mockClient(hub, "user_2")

	hub.Register(c1)
	hub.Register(c2)
	hub.Register(c3)

	if got := hub.ClientCount(); got != 3 {
		t.Fatalf("expected 3 clients, got %d", got)
	}

	hub.Unregister(c1)
	hub.Unregister(c3)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}
	if _, ok := hub.clients["user_2"]; ok {
		t.Error("empty user set should be removed")
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, "user_1")
	hub.Register(c)
	hub.Unregister(c)
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestPublishToUserOnlyReachesThatUser(t *testing.T) {
	hub := NewHub(slog.Default())
	mine1 := mockClient(hub, "user_1")
	mine2 := mockClient(hub, "user_1")
	other := mockClient(hub, "user_2")
	hub.Register(mine1)
	hub.Register(mine2)
	hub.Register(other)

	tier := model.TierMonth
	p := model.Profile{UserID: "user_1", SubscriptionActive: true, SubscriptionTier: &tier}

	if n := hub.PublishToUser("user_1", ProfileUpdated("checkout-completed", p)); n != 2 {
		t.Errorf("delivered = %d, want 2", n)
	}

	for _, c := range []*Client{mine1, mine2} {
		select {
		case data := <-c.send:
			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != TypeProfileUpdated {
				t.Errorf("Type = %q, want %q", got.Type, TypeProfileUpdated)
			}
			if !got.Subscription.Active {
				t.Error("expected active subscription")
			}
			if got.Subscription.Tier == nil || *got.Subscription.Tier != model.TierMonth {
				t.Errorf("Tier = %v, want month", got.Subscription.Tier)
			}
		default:
			t.Error("expected a message")
		}
	}

	select {
	case <-other.send:
		t.Error("other user should not receive the update")
	default:
	}
}

func TestPublishToUserWithoutSockets(t *testing.T) {
	hub := NewHub(slog.Default())
	if n := hub.PublishToUser("nobody", Message{Type: TypeProfileUpdated}); n != 0 {
		t.Errorf("delivered = %d, want 0", n)
	}
}

func TestPublishFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, "user_1")
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.PublishToUser("user_1", Message{Type: TypeProfileUpdated})
	}
	// Must not block once the buffer is full.
	if n := hub.PublishToUser("user_1", Message{Type: TypeProfileUpdated}); n != 0 {
		t.Errorf("delivered = %d, want 0", n)
	}
	if len(c.send) != sendBufferSize {
		t.Errorf("buffer len = %d, want %d", len(c.send), sendBufferSize)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub, "user_1")
			hub.Register(c)
			hub.PublishToUser("user_1", Message{Type: TypeProfileUpdated})
			hub.Unregister(c)
		}()
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients, got %d", got)
	}
}
