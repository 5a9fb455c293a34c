package mailer

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/trackkeeper/internal/server/config"
)

// New builds the mailer selected by cfg.Mailer.
func New(ctx context.Context, cfg *config.Config) (Mailer, error) {
	switch cfg.Mailer {
	case config.MailerLog, "":
		return NewWriterMailer(os.Stdout, cfg.MailFrom), nil
	case config.MailerSMTP:
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom), nil
	case config.MailerSES:
		m, err := NewSESMailer(ctx, SESOptions{
			Region:          cfg.SESRegion,
			AccessKeyID:     cfg.SESAccessKeyID,
			SecretAccessKey: cfg.SESSecretAccessKey,
			BaseEndpoint:    cfg.SESBaseEndpoint,
			From:            cfg.MailFrom,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown mailer %q", cfg.Mailer)
	}
}
