// Package notify delivers outbound e-mail.  Three drivers exist: smtp sends
// directly, amqp hands the message to the mailer worker through RabbitMQ and
// log only writes it to the process log.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/iliyamo/cardioai-backend/internal/config"
)

// Message is one HTML e-mail.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a Message.  A nil error means the message left this
// process; it does not promise the mailbox received it.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

var ErrBadHeader = errors.New("header contains a line break")

func (m Message) validate() error {
	if m.To == "" {
		return errors.New("recipient is empty")
	}
	if strings.ContainsAny(m.To, "\r\n") || strings.ContainsAny(m.Subject, "\r\n") {
		return ErrBadHeader
	}
	return nil
}

// New picks the driver named by cfg.Driver.
func New(cfg config.MailConfig, logger *slog.Logger) (Sender, error) {
	switch cfg.Driver {
	case "smtp":
		return NewSMTPSender(cfg), nil
	case "amqp":
		return NewAMQPPublisher(cfg.AMQPURL, cfg.Queue), nil
	case "log":
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
}
