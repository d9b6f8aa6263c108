// Command mailer consumes mail requests published by the API (MAIL_DRIVER=amqp)
// and delivers them over SMTP.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/cardioai-backend/internal/config"
	"github.com/iliyamo/cardioai-backend/internal/logging"
	"github.com/iliyamo/cardioai-backend/internal/notify"
	"github.com/iliyamo/cardioai-backend/internal/queue"
)

func main() {
	_ = godotenv.Load()

	cfg := config.LoadMailer()
	logger := logging.New(logging.Config{
		Service: "cardioai-mailer",
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	}, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	smtp := notify.NewSMTPSender(cfg.Mail)
	consumer := &queue.MailConsumer{
		URL:           cfg.Mail.AMQPURL,
		Queue:         cfg.Mail.Queue,
		Logger:        logger,
		HandleTimeout: cfg.Mail.Timeout + 5*time.Second,
		Handle: func(ctx context.Context, ev queue.MailRequestedEvent) error {
			return smtp.Send(ctx, notify.Message{To: ev.To, Subject: ev.Subject, HTML: ev.HTML})
		},
	}

	logger.Info("mailer started", "queue", cfg.Mail.Queue, "smtp_host", cfg.Mail.SMTPHost)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mailer stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("mailer stopped")
}
