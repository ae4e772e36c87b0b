package notify

import (
	"log/slog"

	"github.com/illegalcall/thumbdesk/internal/config"
)

// NewMailer picks the email transport from configuration. The HTTP email API
// wins over SMTP; with neither configured, emails are only logged.
func NewMailer(cfg config.NotifyConfig, logger *slog.Logger) Mailer {
	switch {
	case cfg.EmailAPIURL != "":
		logger.Info("Using HTTP email API", "endpoint", cfg.EmailAPIURL)
		return NewHTTPMailer(cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.From, cfg.Timeout)
	case cfg.SMTP.Host != "":
		logger.Info("Using SMTP relay", "host", cfg.SMTP.Host, "port", cfg.SMTP.Port)
		return NewSMTPMailer(SMTPConfig{
			From:     cfg.From,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
		})
	default:
		logger.Warn("No email transport configured; notifications will only be logged")
		return NoopMailer{Logger: logger}
	}
}

// NewDispatcherFromConfig wires a dispatcher with the configured mailer and
// admin contacts.
func NewDispatcherFromConfig(cfg config.NotifyConfig, logger *slog.Logger) *Dispatcher {
	return NewDispatcher(NewMailer(cfg, logger), cfg.AdminEmail, cfg.AdminPhone, logger)
}
