package notifications

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"gatekeeper/internal/config"

	"golang.org/x/time/rate"
)

// MailConfig holds SMTP delivery settings.
type MailConfig struct {
	Host          string
	Port          string
	Username      string
	Password      string
	From          string
	RatePerMinute int
}

// MailConfigFrom extracts the SMTP settings from the application config.
func MailConfigFrom(cfg *config.Config) MailConfig {
	return MailConfig{
		Host:          cfg.SMTPHost,
		Port:          cfg.SMTPPort,
		Username:      cfg.SMTPUsername,
		Password:      cfg.SMTPPassword,
		From:          cfg.SMTPFrom,
		RatePerMinute: cfg.SMTPRatePerMinute,
	}
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// MailGateway sends plain-text mail over SMTP, throttled by a token bucket so
// a burst of deletion requests cannot flood the relay.
type MailGateway struct {
	cfg     MailConfig
	limiter *rate.Limiter
	send    sendMailFunc
}

// NewMailGateway creates an SMTP gateway.
func NewMailGateway(cfg MailConfig) *MailGateway {
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	return &MailGateway{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		send:    smtp.SendMail,
	}
}

func (g *MailGateway) Send(ctx context.Context, recipient, subject, body string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("smtp throttle: %w", err)
	}

	addr := net.JoinHostPort(g.cfg.Host, g.cfg.Port)
	var auth smtp.Auth
	if g.cfg.Username != "" {
		auth = smtp.PlainAuth("", g.cfg.Username, g.cfg.Password, g.cfg.Host)
	}
	msg := buildMessage(g.cfg.From, recipient, subject, body)

	// net/smtp has no context support; the send is abandoned, not cancelled,
	// when ctx expires first.
	done := make(chan error, 1)
	go func() {
		done <- g.send(addr, auth, g.cfg.From, []string{recipient}, msg)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", recipient, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send to %s: %w", recipient, ctx.Err())
	}
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
