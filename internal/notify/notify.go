// Package notify delivers customer lifecycle emails. Delivery is
// always fire-and-forget from the caller's perspective; a broken SMTP
// relay must never fail a signup or an upgrade.
package notify

import "context"

// Sender delivers one message to one recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}
