package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gatekeeper/internal/models"
	"gatekeeper/internal/observability"

	"gorm.io/gorm"
)

// PostChange is the write a TransitionFunc asks for.
type PostChange struct {
	To models.PostStatus
	// DeletionRequestID replaces the stored token when non-nil.
	DeletionRequestID *string
}

// TransitionFunc inspects the locked post and returns the change to apply.
// A nil change with a nil error means nothing is written.
type TransitionFunc func(post *models.Post) (*PostChange, error)

// TransitionResult reports what a transition did.
type TransitionResult struct {
	Post    *models.Post
	Applied bool
	// From is the status observed under the lock.
	From models.PostStatus
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetByDeletionRequestID(ctx context.Context, token string) (*models.Post, error)
	ListByStatus(ctx context.Context, status models.PostStatus) ([]models.Post, error)
	ListIDsByStatus(ctx context.Context, status models.PostStatus) ([]uint, error)
	Transition(ctx context.Context, id uint, fn TransitionFunc) (*TransitionResult, error)
	TransitionByDeletionToken(ctx context.Context, token string, fn TransitionFunc) (*TransitionResult, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()

	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]any{"post_id": post.ID, "author": post.UserName})
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	defer observability.TrackQuery("get", "posts")()

	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) GetByDeletionRequestID(ctx context.Context, token string) (*models.Post, error) {
	defer observability.TrackQuery("get_by_token", "posts")()

	var post models.Post
	if err := r.db.WithContext(ctx).Where("deletion_request_id = ?", token).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Deletion request", token)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) ListByStatus(ctx context.Context, status models.PostStatus) ([]models.Post, error) {
	defer observability.TrackQuery("list", "posts")()

	var posts []models.Post
	if err := readDB(r.db).WithContext(ctx).
		Where("status = ?", status).
		Order("id ASC").
		Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) ListIDsByStatus(ctx context.Context, status models.PostStatus) ([]uint, error) {
	defer observability.TrackQuery("list_ids", "posts")()

	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("status = ?", status).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *postRepository) Transition(ctx context.Context, id uint, fn TransitionFunc) (*TransitionResult, error) {
	return r.transition(ctx, func(tx *gorm.DB, post *models.Post) error {
		if err := lockForUpdate(tx).First(post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", id)
			}
			return err
		}
		return nil
	}, fn)
}

func (r *postRepository) TransitionByDeletionToken(ctx context.Context, token string, fn TransitionFunc) (*TransitionResult, error) {
	return r.transition(ctx, func(tx *gorm.DB, post *models.Post) error {
		if err := lockForUpdate(tx).Where("deletion_request_id = ?", token).First(post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Deletion request", token)
			}
			return err
		}
		return nil
	}, fn)
}

// transition locks one post row, lets fn decide, and applies the decision with
// a conditional update on the observed status. Zero affected rows means a
// concurrent transaction moved the post first; the result is then not applied.
func (r *postRepository) transition(
	ctx context.Context,
	locate func(tx *gorm.DB, post *models.Post) error,
	fn TransitionFunc,
) (*TransitionResult, error) {
	defer observability.TrackQuery("transition", "posts")()
	ctx, span := observability.StartRepositorySpan(ctx, "posts", "transition")
	defer span.End()

	result := &TransitionResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := locate(tx, &post); err != nil {
			return err
		}
		result.Post = &post
		result.From = post.Status

		change, err := fn(&post)
		if err != nil || change == nil {
			return err
		}
		if !models.CanTransition(post.Status, change.To) {
			return models.NewInternalError(fmt.Errorf("illegal transition %s -> %s", post.Status, change.To))
		}

		now := time.Now()
		updates := map[string]any{
			"status":     change.To,
			"updated_at": now,
		}
		if change.DeletionRequestID != nil {
			updates["deletion_request_id"] = *change.DeletionRequestID
		}

		res := tx.Model(&models.Post{}).
			Where("id = ? AND status = ?", post.ID, post.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		post.Status = change.To
		post.UpdatedAt = now
		if change.DeletionRequestID != nil {
			token := *change.DeletionRequestID
			post.DeletionRequestID = &token
		}
		result.Applied = true
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		r.log.LogError(ctx, err, "transition")
		return nil, models.NewInternalError(err)
	}

	if result.Applied {
		r.log.LogUpdate(ctx, map[string]any{
			"post_id": result.Post.ID,
			"from":    result.From,
			"to":      result.Post.Status,
		})
	}
	return result, nil
}
