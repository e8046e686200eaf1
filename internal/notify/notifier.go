// Package notify delivers best-effort email-style notifications.
// Failures are logged and never propagate into the request that
// triggered them.
package notify

import (
	"context"
	"log"
)

// Notifier sends a message to one recipient. Implementations must be
// safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, recipientEmail, subject, body string) error
}

// logNotifier writes notifications to the application log. Used when
// notifications are disabled in config.
type logNotifier struct{}

// NewLogNotifier returns a Notifier that only logs.
func NewLogNotifier() Notifier {
	return logNotifier{}
}

func (logNotifier) Notify(ctx context.Context, recipientEmail, subject, body string) error {
	log.Printf("INFO: notification (disabled) to %s: %s", recipientEmail, subject)
	return nil
}
