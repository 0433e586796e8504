// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// PostStatus is the moderation state of a post.
type PostStatus string

const (
	PostStatusPending         PostStatus = "PENDING"
	PostStatusApproved        PostStatus = "APPROVED"
	PostStatusRejected        PostStatus = "REJECTED"
	PostStatusPendingDeletion PostStatus = "PENDING_DELETION"
	PostStatusDeleted         PostStatus = "DELETED"
)

// postTransitions lists every legal edge of the post lifecycle.
// REJECTED and DELETED have no outgoing edges.
var postTransitions = map[PostStatus][]PostStatus{
	PostStatusPending:         {PostStatusApproved, PostStatusRejected},
	PostStatusApproved:        {PostStatusPendingDeletion},
	PostStatusPendingDeletion: {PostStatusDeleted, PostStatusApproved},
}

// Valid reports whether s is one of the known statuses.
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusPending, PostStatusApproved, PostStatusRejected,
		PostStatusPendingDeletion, PostStatusDeleted:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s PostStatus) Terminal() bool {
	return s.Valid() && len(postTransitions[s]) == 0
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to PostStatus) bool {
	for _, next := range postTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Post represents a user submission moving through moderation.
type Post struct {
	ID       uint       `gorm:"primaryKey" json:"id"`
	Title    string     `gorm:"size:255;not null;default:''" json:"title"`
	Content  string     `gorm:"type:text;not null" json:"content"`
	UserName string     `gorm:"size:64;not null;index" json:"user_name"`
	UserID   *uint      `gorm:"index" json:"user_id,omitempty"`
	Status   PostStatus `gorm:"type:varchar(32);not null;index" json:"status"`
	// DeletionRequestID is minted on every APPROVED -> PENDING_DELETION edge
	// and kept after the request is resolved.
	DeletionRequestID *string   `gorm:"uniqueIndex;size:64" json:"deletion_request_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// HasDeletionToken reports whether the post carries the given deletion token.
func (p *Post) HasDeletionToken(token string) bool {
	return p.DeletionRequestID != nil && *p.DeletionRequestID == token
}
