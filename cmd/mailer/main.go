package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"anoa.com/alumnidirectory/internal/config"
	notifService "anoa.com/alumnidirectory/internal/modules/notification/service"
	"anoa.com/alumnidirectory/pkg/logger"
	"anoa.com/alumnidirectory/pkg/mailer"
	"anoa.com/alumnidirectory/pkg/queue"
)

// mailer consumes welcome-email events published by the API server and sends them over SMTP.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Configure(logger.Config{
		Level:  logger.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stdout,
	})

	if cfg.KafkaBroker == "" {
		logger.Fatal().Msg("KAFKA_BROKER is required for the mailer worker")
	}

	mail := mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		FromName: cfg.MailFromName,
	}, logger.WithField("component", "mailer"))

	handler := notifService.NewWelcomeEmailHandler(mail, cfg.AppBaseURL+"/directory")
	consumer := queue.NewConsumer(cfg.KafkaBroker, cfg.KafkaTopic, cfg.KafkaGroupID, cfg.KafkaUsername, cfg.KafkaPassword, handler)
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close kafka reader")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("topic", cfg.KafkaTopic).Str("group", cfg.KafkaGroupID).Msg("mailer worker started")
	if err := consumer.Listen(ctx); err != nil {
		logger.Error().Err(err).Msg("mailer worker stopped with error")
	}
	logger.Info().Msg("mailer worker stopped")
}
