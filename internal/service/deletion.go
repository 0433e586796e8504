package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gatekeeper/internal/access"
	"gatekeeper/internal/cache"
	"gatekeeper/internal/middleware"
	"gatekeeper/internal/models"
	"gatekeeper/internal/notifications"
	"gatekeeper/internal/observability"
	"gatekeeper/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// DeletionConfig carries the notification settings of the workflow.
type DeletionConfig struct {
	Recipient     string
	BaseURL       string
	NotifyTimeout time.Duration
}

// DeletionWorkflow implements two-step deletion: an author or admin marks an
// approved post, and a super admin resolves the request by its token.
// The token stored on the post is the only workflow state.
type DeletionWorkflow struct {
	posts    repository.PostRepository
	gateway  notifications.Gateway
	events   EventPublisher
	cfg      DeletionConfig
	newToken func() string
}

func NewDeletionWorkflow(
	posts repository.PostRepository,
	gateway notifications.Gateway,
	events EventPublisher,
	cfg DeletionConfig,
) *DeletionWorkflow {
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	return &DeletionWorkflow{
		posts:    posts,
		gateway:  gateway,
		events:   events,
		cfg:      cfg,
		newToken: uuid.NewString,
	}
}

// MarkForDeletion moves an APPROVED post to PENDING_DELETION under a fresh
// token and notifies the approver once the change has committed.
func (w *DeletionWorkflow) MarkForDeletion(ctx context.Context, actor Actor, postID uint) (*Outcome, error) {
	span, ctx := observability.StartServiceSpan(ctx, "DeletionWorkflow", "MarkForDeletion",
		attribute.Int64("post.id", int64(postID)))
	defer span.End()

	isAdmin := access.HasCapability(actor.Roles, access.CapabilityAdmin)
	if !isAdmin && actor.UserName == "" {
		return nil, models.NewForbiddenError("Access denied: requires ADMIN_TIER or post ownership")
	}

	var token string
	res, err := w.posts.Transition(ctx, postID, func(p *models.Post) (*repository.PostChange, error) {
		if !isAdmin && !isAuthor(actor, p) {
			return nil, models.NewForbiddenError("Access denied: requires ADMIN_TIER or post ownership")
		}
		if p.Status != models.PostStatusApproved {
			return nil, nil
		}
		token = w.newToken()
		return &repository.PostChange{To: models.PostStatusPendingDeletion, DeletionRequestID: &token}, nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	observability.RecordTransition("mark_for_deletion", res.Applied)

	if !res.Applied {
		msg := MsgNotApproved
		switch res.From {
		// An APPROVED post that did not move lost the race to a concurrent mark.
		case models.PostStatusPendingDeletion, models.PostStatusDeleted, models.PostStatusApproved:
			msg = MsgAlreadyMarked
		}
		return &Outcome{Message: msg, Post: res.Post}, nil
	}

	cache.InvalidateApprovedPosts(ctx)
	publish(ctx, w.events, notifications.ModerationEvent{
		Type:   notifications.EventDeletionRequested,
		PostID: res.Post.ID,
		Actor:  actor.UserName,
		Status: string(res.Post.Status),
	})
	w.notify(ctx, token)

	return &Outcome{Applied: true, Message: MsgMarkedForDeletion, Post: res.Post}, nil
}

// ApproveDeletion resolves the request identified by token: PENDING_DELETION -> DELETED.
func (w *DeletionWorkflow) ApproveDeletion(ctx context.Context, actor Actor, token string) (*Outcome, error) {
	return w.resolve(ctx, actor, token, models.PostStatusDeleted)
}

// RejectDeletion resolves the request identified by token: PENDING_DELETION -> APPROVED.
func (w *DeletionWorkflow) RejectDeletion(ctx context.Context, actor Actor, token string) (*Outcome, error) {
	return w.resolve(ctx, actor, token, models.PostStatusApproved)
}

func (w *DeletionWorkflow) resolve(ctx context.Context, actor Actor, token string, to models.PostStatus) (*Outcome, error) {
	op := "approve_deletion"
	if to == models.PostStatusApproved {
		op = "reject_deletion"
	}
	span, ctx := observability.StartServiceSpan(ctx, "DeletionWorkflow", op)
	defer span.End()

	if err := access.Require(actor.Roles, access.CapabilitySuperAdmin); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, models.NewValidationError("Deletion request ID is required")
	}

	res, err := w.posts.TransitionByDeletionToken(ctx, token, func(p *models.Post) (*repository.PostChange, error) {
		if !p.HasDeletionToken(token) {
			return nil, models.NewInternalError(fmt.Errorf("post %d matched token lookup without carrying the token", p.ID))
		}
		if p.Status != models.PostStatusPendingDeletion {
			return nil, nil
		}
		return &repository.PostChange{To: to}, nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	observability.RecordTransition(op, res.Applied)
	span.RecordTransition(string(res.From), string(to), res.Applied)
	if !res.Applied {
		return &Outcome{Message: MsgNotPendingDeletion, Post: res.Post}, nil
	}

	ev := notifications.EventDeletionApproved
	msg := MsgDeletionApproved
	if to == models.PostStatusApproved {
		ev = notifications.EventDeletionRejected
		msg = MsgDeletionRejected
		cache.InvalidateApprovedPosts(ctx)
	}
	publish(ctx, w.events, notifications.ModerationEvent{
		Type:   ev,
		PostID: res.Post.ID,
		Actor:  actor.UserName,
		Status: string(res.Post.Status),
	})
	return &Outcome{Applied: true, Message: msg, Post: res.Post}, nil
}

// notify runs after commit on a context detached from the request so a
// client disconnect does not cut the delivery short. Failures are logged
// and dropped.
func (w *DeletionWorkflow) notify(ctx context.Context, token string) {
	if w.gateway == nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.NotifyTimeout)
	defer cancel()

	body := notifications.DeletionRequestBody(w.cfg.BaseURL, token)
	if err := w.gateway.Send(sendCtx, w.cfg.Recipient, notifications.DeletionRequestSubject, body); err != nil {
		middleware.Logger.ErrorContext(ctx, "deletion approval notification failed",
			slog.String("deletion_request_id", token),
			slog.String("recipient", w.cfg.Recipient),
			slog.String("error", err.Error()),
		)
	}
}

func isAuthor(actor Actor, p *models.Post) bool {
	if p.UserID != nil && actor.ID != 0 {
		return *p.UserID == actor.ID
	}
	return actor.UserName != "" && p.UserName == actor.UserName
}
