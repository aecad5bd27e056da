package email

import "context"

// Client sends plain-text email. Implementations live in infra/email.
type Client interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}
