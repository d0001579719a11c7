// Package mail hands account emails to an outbox. Delivery is out of scope;
// the log outbox records what would be sent.
package mail

import (
	"context"
	"log/slog"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Outbox interface {
	Send(ctx context.Context, msg Message) error
}

type LogOutbox struct {
	logger *slog.Logger
}

func NewLogOutbox(logger *slog.Logger) *LogOutbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogOutbox{logger: logger}
}

func (o *LogOutbox) Send(ctx context.Context, msg Message) error {
	o.logger.InfoContext(ctx, "outbound email", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}
