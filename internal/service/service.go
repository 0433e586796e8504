// Package service implements the moderation workflows on top of the
// repositories: the post state machine, the tiered deletion approval and
// role management.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"gatekeeper/internal/middleware"
	"gatekeeper/internal/models"
	"gatekeeper/internal/notifications"
)

// Actor is the authenticated principal issuing a command. Roles must come
// from the store for the current request.
type Actor struct {
	ID       uint
	UserName string
	Roles    models.RoleSet
}

// ActorFromUser builds an Actor from a freshly loaded user.
func ActorFromUser(u *models.User) Actor {
	return Actor{ID: u.ID, UserName: u.UserName, Roles: u.Roles}
}

// Outcome is the result of a single-post command. Applied is false when the
// post was not in a state the command acts on; that is not an error.
type Outcome struct {
	Applied bool         `json:"applied"`
	Message string       `json:"message"`
	Post    *models.Post `json:"post,omitempty"`
}

// BulkOutcome summarizes a bulk command. Matched == 0 is the empty outcome.
type BulkOutcome struct {
	Matched int    `json:"matched"`
	Applied int    `json:"applied"`
	Failed  int    `json:"failed"`
	Message string `json:"message"`
}

// Empty reports whether no post matched the bulk command.
func (b BulkOutcome) Empty() bool {
	return b.Matched == 0
}

// EventPublisher receives moderation events after a transition commits.
type EventPublisher interface {
	PublishModerationEvent(ctx context.Context, ev notifications.ModerationEvent) error
}

// User-facing messages.
const (
	MsgPostApproved        = "Post Approved !!"
	MsgApprovedAll         = "Approved all posts!"
	MsgNoPendingToApprove  = "No pending posts to approve."
	MsgPostRejected        = "Post Rejected !!"
	MsgRejectedAll         = "Rejected all posts!"
	MsgNoPendingToReject   = "No pending posts to reject."
	MsgPostNotPending      = "Post is not pending."
	MsgAlreadyMarked       = "This post is already marked for deletion or has been deleted."
	MsgNotApproved         = "Only approved posts can be marked for deletion."
	MsgMarkedForDeletion   = "Post marked for deletion. Awaiting approval from super admin."
	MsgNotPendingDeletion  = "This post is not pending deletion."
	MsgDeletionApproved    = "Post successfully deleted."
	MsgDeletionRejected    = "Post deletion rejected. The post has been restored."
	MsgCredentialsRequired = "Username and password are required."
	MsgUserAccessOnly      = "User can only access this!"
)

// PostCreatedMessage is returned to the author of a new post.
func PostCreatedMessage(author string) string {
	return author + " Your post published successfully, Required ADMIN/MODERATOR Action!"
}

// BulkPartialMessage reports a bulk run in which some posts failed.
func BulkPartialMessage(to models.PostStatus, out BulkOutcome) string {
	verb := "Approved"
	if to == models.PostStatusRejected {
		verb = "Rejected"
	}
	return fmt.Sprintf("%s %d of %d pending posts; %d failed.", verb, out.Applied, out.Matched, out.Failed)
}

// WelcomeMessage is returned after registration.
func WelcomeMessage(userName string) string {
	return "Hi " + userName + ", welcome to the group!"
}

// RoleGrantedMessage is returned after a successful grant.
func RoleGrantedMessage(userName string, role models.Role, grantor string) string {
	return "Hi " + userName + ", the role " + string(role) + " has been assigned to you by " + grantor
}

// publish sends ev and logs a failure. Events are best effort.
func publish(ctx context.Context, events EventPublisher, ev notifications.ModerationEvent) {
	if events == nil {
		return
	}
	if err := events.PublishModerationEvent(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish moderation event",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
	}
}
