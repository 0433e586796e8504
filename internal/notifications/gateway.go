// Package notifications delivers out-of-band messages, such as deletion
// approval requests, and publishes moderation events to Redis.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gatekeeper/internal/config"
	"gatekeeper/internal/middleware"
	"gatekeeper/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Gateway delivers a message to a recipient. Callers treat delivery as
// fire-and-forget; an error is reported for logging only.
type Gateway interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// Gateway names accepted in NOTIFY_CHANNELS.
const (
	ChannelLog   = "log"
	ChannelSMTP  = "smtp"
	ChannelRedis = "redis"
)

// LogGateway writes the message to the structured log.
type LogGateway struct {
	logger *slog.Logger
}

// NewLogGateway returns a gateway backed by logger, or middleware.Logger when nil.
func NewLogGateway(logger *slog.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

func (g *LogGateway) Send(ctx context.Context, recipient, subject, body string) error {
	l := g.logger
	if l == nil {
		l = middleware.Logger
	}
	l.InfoContext(ctx, "notification",
		slog.String("recipient", recipient),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}

type namedGateway struct {
	name string
	gw   Gateway
}

// MultiGateway fans a message out to every configured gateway. Each delivery
// is counted separately; the returned error joins the individual failures.
type MultiGateway struct {
	gateways []namedGateway
}

// NewMultiGateway creates an empty fan-out gateway.
func NewMultiGateway() *MultiGateway {
	return &MultiGateway{}
}

// Add registers gw under name and returns the receiver for chaining.
func (m *MultiGateway) Add(name string, gw Gateway) *MultiGateway {
	m.gateways = append(m.gateways, namedGateway{name: name, gw: gw})
	return m
}

// Names lists the registered gateways in registration order.
func (m *MultiGateway) Names() []string {
	out := make([]string, len(m.gateways))
	for i, g := range m.gateways {
		out[i] = g.name
	}
	return out
}

func (m *MultiGateway) Send(ctx context.Context, recipient, subject, body string) error {
	var errs []error
	for _, g := range m.gateways {
		err := g.gw.Send(ctx, recipient, subject, body)
		observability.RecordNotification(g.name, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", g.name, err))
		}
	}
	return errors.Join(errs...)
}

// NewGateway builds the fan-out gateway described by cfg.NotifyChannels.
// The redis channel is skipped with a warning when rdb is nil.
func NewGateway(cfg *config.Config, rdb *redis.Client) (*MultiGateway, error) {
	multi := NewMultiGateway()
	for _, name := range cfg.NotifyChannelList() {
		switch name {
		case ChannelLog:
			multi.Add(name, NewLogGateway(nil))
		case ChannelSMTP:
			multi.Add(name, NewMailGateway(MailConfigFrom(cfg)))
		case ChannelRedis:
			if rdb == nil {
				middleware.Logger.Warn("redis notification channel configured without redis; skipping")
				continue
			}
			multi.Add(name, NewRedisGateway(NewNotifier(rdb)))
		default:
			return nil, fmt.Errorf("unknown notification channel %q", name)
		}
	}
	if len(multi.gateways) == 0 {
		multi.Add(ChannelLog, NewLogGateway(nil))
	}
	return multi, nil
}

// DeletionRequestSubject is the subject of the approval request message.
const DeletionRequestSubject = "Post Deletion Request Pending Approval"

// DeletionRequestBody renders the approval request for token with approve
// and reject links rooted at baseURL.
func DeletionRequestBody(baseURL, token string) string {
	base := strings.TrimRight(baseURL, "/")
	return "A post has been marked for deletion. Please review and approve using the request ID: " + token +
		"\n\nTo approve, visit: " + base + "/post/approveDeletion/" + token +
		"\nTo reject, visit: " + base + "/post/rejectDeletion/" + token
}
