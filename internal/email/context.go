package email

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const sendTimeout = 5 * time.Second

func newEmailContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	// Detach cancellation so handler-scoped contexts don't abort async sends.
	parent = context.WithoutCancel(parent)
	return context.WithTimeout(parent, timeout)
}

// SendAsync delivers msg in the background. Failures are logged, never returned.
// The returned channel is closed once the attempt finishes.
func SendAsync(ctx context.Context, sender Sender, msg Message, logger *zerolog.Logger) <-chan struct{} {
	done := make(chan struct{})
	if sender == nil || msg.To == "" || msg.Subject == "" || msg.Body == "" {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		sendCtx, cancel := newEmailContext(ctx, sendTimeout)
		defer cancel()
		if err := sender.Send(sendCtx, msg); err != nil {
			if logger != nil {
				logger.Error().Err(err).Str("recipient", msg.To).Str("subject", msg.Subject).Msg("Failed to send email")
			}
			return
		}
		if logger != nil {
			logger.Debug().Str("recipient", msg.To).Str("subject", msg.Subject).Msg("Email sent")
		}
	}()
	return done
}
