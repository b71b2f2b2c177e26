package model

import "time"

// PushSubscription is one browser registered for web push. Its keys are
// never serialized back to clients.
type PushSubscription struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"userId"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"-"`
	AuthKey    string    `json:"-"`
	DeviceName string    `json:"deviceName"`
	CreatedAt  time.Time `json:"createdAt"`
}
