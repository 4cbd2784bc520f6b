package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/mr1hm/disasterwatch/internal/config"
	"github.com/mr1hm/disasterwatch/internal/observability"
)

// MaxSMSLength is the number of characters kept from a composed SMS body.
const MaxSMSLength = 140

// EmailProvider is one concrete email transport. Senders only call Send on a
// provider whose IsConfigured returned true.
type EmailProvider interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, to, subject, html string) error
}

type SMSProvider interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, to, body string) error
}

// EmailSender delivers through the first configured provider in preference order.
// It never returns an error: a missing provider or a failed call is logged and counted.
type EmailSender struct {
	providers []EmailProvider
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
}

func NewEmailSender(providers []EmailProvider, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *EmailSender {
	return &EmailSender{
		providers: providers,
		timeout:   timeout,
		logger:    logger,
		metrics:   metrics,
	}
}

// NewEmailSenderFromConfig wires Resend, then SendGrid, then SMTP.
func NewEmailSenderFromConfig(cfg config.NotifyConfig, logger *slog.Logger, metrics *observability.Metrics) *EmailSender {
	providers := []EmailProvider{
		NewResendProvider(cfg.ResendAPIKey, cfg.EmailFrom, cfg.ProviderTimeout),
		NewSendGridProvider(cfg.SendGridAPIKey, cfg.EmailFrom, cfg.ProviderTimeout),
		NewSMTPProvider(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailFrom),
	}
	return NewEmailSender(providers, cfg.ProviderTimeout, logger, metrics)
}

// Provider returns the provider that would be used, or nil when none is configured.
func (s *EmailSender) Provider() EmailProvider {
	for _, p := range s.providers {
		if p.IsConfigured() {
			return p
		}
	}
	return nil
}

func (s *EmailSender) SendEmail(ctx context.Context, to, subject, html string) {
	p := s.Provider()
	if p == nil {
		s.logger.Warn("no email provider configured; skipping email", "to", to)
		s.metrics.Notifications.WithLabelValues("email", "none", "unconfigured").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := p.Send(ctx, to, subject, html); err != nil {
		s.logger.Error("email send failed", "provider", p.Name(), "to", to, "error", err)
		s.metrics.Notifications.WithLabelValues("email", p.Name(), "error").Inc()
		return
	}

	s.logger.Debug("email sent", "provider", p.Name(), "to", to)
	s.metrics.Notifications.WithLabelValues("email", p.Name(), "sent").Inc()
}

// SMSSender mirrors EmailSender for text messages and truncates bodies to MaxSMSLength.
type SMSSender struct {
	providers []SMSProvider
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
}

func NewSMSSender(providers []SMSProvider, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *SMSSender {
	return &SMSSender{
		providers: providers,
		timeout:   timeout,
		logger:    logger,
		metrics:   metrics,
	}
}

func NewSMSSenderFromConfig(cfg config.NotifyConfig, logger *slog.Logger, metrics *observability.Metrics) *SMSSender {
	providers := []SMSProvider{
		NewTwilioProvider(cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom, cfg.ProviderTimeout),
	}
	return NewSMSSender(providers, cfg.ProviderTimeout, logger, metrics)
}

func (s *SMSSender) Provider() SMSProvider {
	for _, p := range s.providers {
		if p.IsConfigured() {
			return p
		}
	}
	return nil
}

func (s *SMSSender) SendSMS(ctx context.Context, to, body string) {
	p := s.Provider()
	if p == nil {
		s.logger.Warn("no SMS provider configured; skipping SMS", "to", to)
		s.metrics.Notifications.WithLabelValues("sms", "none", "unconfigured").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := p.Send(ctx, to, Truncate(body, MaxSMSLength)); err != nil {
		s.logger.Error("sms send failed", "provider", p.Name(), "to", to, "error", err)
		s.metrics.Notifications.WithLabelValues("sms", p.Name(), "error").Inc()
		return
	}

	s.logger.Debug("sms sent", "provider", p.Name(), "to", to)
	s.metrics.Notifications.WithLabelValues("sms", p.Name(), "sent").Inc()
}

// Truncate cuts s to at most n characters. It is not word-aware.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
