package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"gatekeeper/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// Redis channels.
const (
	ModerationEventsChannel = "moderation:events"
	ApprovalRequestsChannel = "notifications:approvals"
)

// Moderation event types published on ModerationEventsChannel.
const (
	EventPostCreated       = "post.created"
	EventPostApproved      = "post.approved"
	EventPostRejected      = "post.rejected"
	EventDeletionRequested = "post.deletion_requested"
	EventDeletionApproved  = "post.deleted"
	EventDeletionRejected  = "post.deletion_rejected"
	EventRoleGranted       = "user.role_granted"
	EventRoleRevoked       = "user.role_revoked"
)

// ModerationEvent describes one applied transition.
type ModerationEvent struct {
	Type   string    `json:"type"`
	PostID uint      `json:"post_id,omitempty"`
	UserID uint      `json:"user_id,omitempty"`
	Actor  string    `json:"actor,omitempty"`
	Status string    `json:"status,omitempty"`
	Role   string    `json:"role,omitempty"`
	At     time.Time `json:"at"`
}

// ApprovalRequest is the payload RedisGateway publishes.
type ApprovalRequest struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishModerationEvent publishes ev to the moderation event stream.
// A nil Notifier or client is a no-op.
func (n *Notifier) PublishModerationEvent(ctx context.Context, ev ModerationEvent) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.rdb.Publish(ctx, ModerationEventsChannel, payload).Err()
}

func (n *Notifier) publishApproval(ctx context.Context, req ApprovalRequest) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal approval request: %w", err)
	}
	return n.rdb.Publish(ctx, ApprovalRequestsChannel, payload).Err()
}

// StartSubscriber subscribes to the given channels and calls onMessage for
// each incoming message until ctx is cancelled.
func (n *Notifier) StartSubscriber(
	ctx context.Context, onMessage func(channel string, payload string), channels ...string,
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	if len(channels) == 0 {
		channels = []string{ModerationEventsChannel, ApprovalRequestsChannel}
	}
	sub := n.rdb.Subscribe(ctx, channels...)
	// Wait for the subscription to be confirmed so no message published
	// right after this call is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in notification subscriber",
								"panic", r, "stack", string(debug.Stack()))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// RedisGateway publishes approval requests to ApprovalRequestsChannel for an
// out-of-process mailer or chat bridge.
type RedisGateway struct {
	notifier *Notifier
}

// NewRedisGateway wraps n as a Gateway.
func NewRedisGateway(n *Notifier) *RedisGateway {
	return &RedisGateway{notifier: n}
}

func (g *RedisGateway) Send(ctx context.Context, recipient, subject, body string) error {
	return g.notifier.publishApproval(ctx, ApprovalRequest{Recipient: recipient, Subject: subject, Body: body})
}
