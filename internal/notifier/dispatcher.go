package notifier

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// Dispatcher serializes outbound messages through one rate limiter so that
// notifications and chat replies together stay under the channel's flood
// limits.
type Dispatcher struct {
	notifier Notifier
	replier  Replier
	limiter  *rate.Limiter
}

// NewDispatcher creates a Dispatcher allowing one message per interval.
// replier may be nil when chat replies are not supported.
func NewDispatcher(n Notifier, r Replier, interval time.Duration) *Dispatcher {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Dispatcher{
		notifier: n,
		replier:  r,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Notify waits for the limiter and forwards message.
func (d *Dispatcher) Notify(ctx context.Context, message string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	return d.notifier.Notify(ctx, message)
}

// SendTo waits for the limiter and replies to chatID.
func (d *Dispatcher) SendTo(ctx context.Context, chatID, message string) error {
	if d.replier == nil {
		return &DeliveryError{Channel: "reply", Err: errors.New("no reply channel configured")}
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	return d.replier.SendTo(ctx, chatID, message)
}
