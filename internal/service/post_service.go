package service

import (
	"context"
	"log/slog"
	"strings"

	"gatekeeper/internal/access"
	"gatekeeper/internal/cache"
	"gatekeeper/internal/featureflags"
	"gatekeeper/internal/middleware"
	"gatekeeper/internal/models"
	"gatekeeper/internal/notifications"
	"gatekeeper/internal/observability"
	"gatekeeper/internal/repository"
	"gatekeeper/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// PostService owns the moderation half of the post lifecycle:
// PENDING -> APPROVED | REJECTED.
type PostService struct {
	posts  repository.PostRepository
	events EventPublisher
	flags  *featureflags.Manager
}

type CreatePostInput struct {
	Title   string
	Content string
}

func NewPostService(
	posts repository.PostRepository,
	events EventPublisher,
	flags *featureflags.Manager,
) *PostService {
	return &PostService{posts: posts, events: events, flags: flags}
}

// Create stores a new PENDING post authored by actor.
func (s *PostService) Create(ctx context.Context, actor Actor, in CreatePostInput) (*models.Post, error) {
	span, ctx := observability.StartServiceSpan(ctx, "PostService", "Create")
	defer span.End()

	author := strings.TrimSpace(actor.UserName)
	if author == "" {
		return nil, models.NewValidationError("Author is required")
	}
	if err := validation.ValidatePost(in.Title, in.Content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	post := &models.Post{
		Title:    strings.TrimSpace(in.Title),
		Content:  in.Content,
		UserName: author,
		Status:   models.PostStatusPending,
	}
	if actor.ID != 0 {
		id := actor.ID
		post.UserID = &id
	}
	if err := s.posts.Create(ctx, post); err != nil {
		span.SetError(err)
		return nil, err
	}

	publish(ctx, s.events, notifications.ModerationEvent{
		Type:   notifications.EventPostCreated,
		PostID: post.ID,
		Actor:  author,
		Status: string(post.Status),
	})
	return post, nil
}

// Approve moves a PENDING post to APPROVED.
func (s *PostService) Approve(ctx context.Context, actor Actor, postID uint) (*Outcome, error) {
	return s.moderate(ctx, actor, postID, models.PostStatusApproved)
}

// Reject moves a PENDING post to REJECTED.
func (s *PostService) Reject(ctx context.Context, actor Actor, postID uint) (*Outcome, error) {
	return s.moderate(ctx, actor, postID, models.PostStatusRejected)
}

// ApproveAll approves every PENDING post, one transaction per post.
func (s *PostService) ApproveAll(ctx context.Context, actor Actor) (*BulkOutcome, error) {
	return s.moderateAll(ctx, actor, models.PostStatusApproved)
}

// RejectAll rejects every PENDING post, one transaction per post.
func (s *PostService) RejectAll(ctx context.Context, actor Actor) (*BulkOutcome, error) {
	return s.moderateAll(ctx, actor, models.PostStatusRejected)
}

// ListApproved returns every APPROVED post. An empty list is not an error.
func (s *PostService) ListApproved(ctx context.Context) ([]models.Post, error) {
	posts, err := cache.Aside(ctx, cache.ApprovedPostsKey(), cache.ApprovedPostsTTL, func(ctx context.Context) ([]models.Post, error) {
		return s.posts.ListByStatus(ctx, models.PostStatusApproved)
	})
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

func (s *PostService) moderate(ctx context.Context, actor Actor, postID uint, to models.PostStatus) (*Outcome, error) {
	op := operationName(to)
	span, ctx := observability.StartServiceSpan(ctx, "PostService", op, attribute.Int64("post.id", int64(postID)))
	defer span.End()

	if err := access.Require(actor.Roles, access.CapabilityModerator); err != nil {
		return nil, err
	}

	applied, post, err := s.transitionPending(ctx, postID, to)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	observability.RecordTransition(op, applied)
	span.RecordTransition(string(models.PostStatusPending), string(to), applied)
	if !applied {
		return &Outcome{Message: MsgPostNotPending, Post: post}, nil
	}

	cache.InvalidateApprovedPosts(ctx)
	publish(ctx, s.events, notifications.ModerationEvent{
		Type:   eventFor(to),
		PostID: post.ID,
		Actor:  actor.UserName,
		Status: string(post.Status),
	})

	msg := MsgPostApproved
	if to == models.PostStatusRejected {
		msg = MsgPostRejected
	}
	return &Outcome{Applied: true, Message: msg, Post: post}, nil
}

func (s *PostService) moderateAll(ctx context.Context, actor Actor, to models.PostStatus) (*BulkOutcome, error) {
	op := operationName(to) + "_all"
	span, ctx := observability.StartServiceSpan(ctx, "PostService", op)
	defer span.End()

	if err := access.Require(actor.Roles, access.CapabilityModerator); err != nil {
		return nil, err
	}
	if s.flags != nil && !s.flags.Enabled(featureflags.FlagBulkModeration, actor.ID) {
		return nil, models.NewForbiddenError("Bulk moderation is disabled")
	}

	ids, err := s.posts.ListIDsByStatus(ctx, models.PostStatusPending)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	out := &BulkOutcome{Matched: len(ids)}
	if out.Empty() {
		out.Message = MsgNoPendingToApprove
		if to == models.PostStatusRejected {
			out.Message = MsgNoPendingToReject
		}
		return out, nil
	}

	for _, id := range ids {
		applied, post, err := s.transitionPending(ctx, id, to)
		if err != nil {
			out.Failed++
			middleware.Logger.ErrorContext(ctx, "bulk moderation failed for post",
				slog.Uint64("post_id", uint64(id)),
				slog.String("target", string(to)),
				slog.String("error", err.Error()),
			)
			continue
		}
		observability.RecordTransition(op, applied)
		if !applied {
			continue
		}
		out.Applied++
		publish(ctx, s.events, notifications.ModerationEvent{
			Type:   eventFor(to),
			PostID: post.ID,
			Actor:  actor.UserName,
			Status: string(post.Status),
		})
	}
	if out.Applied > 0 {
		cache.InvalidateApprovedPosts(ctx)
	}

	switch {
	case out.Failed > 0:
		out.Message = BulkPartialMessage(to, *out)
	case to == models.PostStatusRejected:
		out.Message = MsgRejectedAll
	default:
		out.Message = MsgApprovedAll
	}
	span.AddAttributes(
		attribute.Int("bulk.matched", out.Matched),
		attribute.Int("bulk.applied", out.Applied),
		attribute.Int("bulk.failed", out.Failed),
	)
	return out, nil
}

// transitionPending applies PENDING -> to. Any other observed status is left
// untouched and reported as not applied.
func (s *PostService) transitionPending(ctx context.Context, postID uint, to models.PostStatus) (bool, *models.Post, error) {
	res, err := s.posts.Transition(ctx, postID, func(p *models.Post) (*repository.PostChange, error) {
		if p.Status != models.PostStatusPending {
			return nil, nil
		}
		return &repository.PostChange{To: to}, nil
	})
	if err != nil {
		return false, nil, err
	}
	return res.Applied, res.Post, nil
}

func operationName(to models.PostStatus) string {
	switch to {
	case models.PostStatusApproved:
		return "approve"
	case models.PostStatusRejected:
		return "reject"
	default:
		return strings.ToLower(string(to))
	}
}

func eventFor(to models.PostStatus) string {
	if to == models.PostStatusRejected {
		return notifications.EventPostRejected
	}
	return notifications.EventPostApproved
}
