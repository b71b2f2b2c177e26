package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

var ErrEmailNotConfigured = errors.New("email not configured")

// Mailer sends transactional email through Postmark.
type Mailer struct {
	client *postmark.Client
	from   string
}

// NewMailer returns a mailer, or nil when no server token is set.
func NewMailer(serverToken, accountToken, from string) *Mailer {
	if serverToken == "" || from == "" {
		return nil
	}
	return &Mailer{
		client: postmark.NewClient(serverToken, accountToken),
		from:   from,
	}
}

type Email struct {
	To       string
	Subject  string
	Tag      string
	TextBody string
	HTMLBody string
}

func (m *Mailer) Send(ctx context.Context, e Email) error {
	if m == nil {
		return ErrEmailNotConfigured
	}
	resp, err := m.client.SendEmail(ctx, postmark.Email{
		From:     m.from,
		To:       e.To,
		Subject:  e.Subject,
		Tag:      e.Tag,
		TextBody: e.TextBody,
		HTMLBody: e.HTMLBody,
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if resp.ErrorCode > 0 {
		return fmt.Errorf("postmark error %d: %s", resp.ErrorCode, resp.Message)
	}
	return nil
}
