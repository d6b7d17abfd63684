package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Notifier delivers one formatted message to a messaging channel.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Replier sends a message to an explicit chat, used to answer chat commands.
type Replier interface {
	SendTo(ctx context.Context, chatID, message string) error
}

// DeliveryError reports that a channel was unreachable or rejected a message.
type DeliveryError struct {
	Channel    string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s delivery failed (%d %s): %v", e.Channel, e.StatusCode, http.StatusText(e.StatusCode), e.Err)
	}
	return fmt.Sprintf("%s delivery failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Multi fans a message out to several channels. Every channel is tried;
// failures are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes messages to the structured log. It stands in when no channel
// is configured so cycles still show what would have been sent.
type Log struct{}

func (Log) Notify(ctx context.Context, message string) error {
	slog.Info("notification", "channel", "log", "message", message)
	return nil
}
