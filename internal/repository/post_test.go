package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"gatekeeper/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPost(t *testing.T, repo PostRepository, status models.PostStatus) *models.Post {
	t.Helper()
	post := &models.Post{Title: "t", Content: "body", UserName: "author", Status: status}
	require.NoError(t, repo.Create(context.Background(), post))
	return post
}

func toStatus(to models.PostStatus) TransitionFunc {
	return func(*models.Post) (*PostChange, error) {
		return &PostChange{To: to}, nil
	}
}

func TestPostRepository_TransitionApplies(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()
	post := seedPost(t, repo, models.PostStatusPending)

	res, err := repo.Transition(ctx, post.ID, toStatus(models.PostStatusApproved))
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, models.PostStatusPending, res.From)
	assert.Equal(t, models.PostStatusApproved, res.Post.Status)

	stored, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusApproved, stored.Status)
}

func TestPostRepository_TransitionNilChangeWritesNothing(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()
	post := seedPost(t, repo, models.PostStatusRejected)

	res, err := repo.Transition(ctx, post.ID, func(p *models.Post) (*PostChange, error) {
		assert.Equal(t, models.PostStatusRejected, p.Status)
		return nil, nil
	})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, models.PostStatusRejected, res.From)
}

func TestPostRepository_TransitionRefusesIllegalEdge(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()
	post := seedPost(t, repo, models.PostStatusRejected)

	_, err := repo.Transition(ctx, post.ID, toStatus(models.PostStatusApproved))
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeInternal))

	stored, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusRejected, stored.Status)
}

func TestPostRepository_TransitionMissingPost(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))

	_, err := repo.Transition(context.Background(), 404, toStatus(models.PostStatusApproved))
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
	assert.Equal(t, "Post with ID 404 not found.", err.Error())
}

func TestPostRepository_DeletionTokenLifecycle(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()
	post := seedPost(t, repo, models.PostStatusApproved)
	token := "7f1c7c62-5b1e-4d0e-9a57-1d3a2f4f9d11"

	res, err := repo.Transition(ctx, post.ID, func(*models.Post) (*PostChange, error) {
		return &PostChange{To: models.PostStatusPendingDeletion, DeletionRequestID: &token}, nil
	})
	require.NoError(t, err)
	require.True(t, res.Applied)
	assert.True(t, res.Post.HasDeletionToken(token))

	found, err := repo.GetByDeletionRequestID(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, post.ID, found.ID)

	res, err = repo.TransitionByDeletionToken(ctx, token, toStatus(models.PostStatusApproved))
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, models.PostStatusPendingDeletion, res.From)

	// The token survives the restore.
	found, err = repo.GetByDeletionRequestID(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusApproved, found.Status)

	_, err = repo.TransitionByDeletionToken(ctx, "unknown", toStatus(models.PostStatusDeleted))
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestPostRepository_ListByStatus(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()

	a := seedPost(t, repo, models.PostStatusPending)
	seedPost(t, repo, models.PostStatusApproved)
	c := seedPost(t, repo, models.PostStatusPending)

	posts, err := repo.ListByStatus(ctx, models.PostStatusPending)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, a.ID, posts[0].ID)
	assert.Equal(t, c.ID, posts[1].ID)

	ids, err := repo.ListIDsByStatus(ctx, models.PostStatusPending)
	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID, c.ID}, ids)

	ids, err = repo.ListIDsByStatus(ctx, models.PostStatusDeleted)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPostRepository_TransitionLocksRowOnPostgres(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" WHERE "posts"."id" = $1 ORDER BY "posts"."id" LIMIT $2 FOR UPDATE`)).
		WithArgs(7, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_name", "status", "created_at", "updated_at"}).
			AddRow(7, "author", "PENDING", now, now))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := repo.Transition(context.Background(), 7, toStatus(models.PostStatusApproved))
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_TransitionLostRace(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_name", "status", "created_at", "updated_at"}).
			AddRow(8, "author", "PENDING_DELETION", now, now))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	res, err := repo.Transition(context.Background(), 8, toStatus(models.PostStatusDeleted))
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, models.PostStatusPendingDeletion, res.Post.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
