package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gatekeeper/internal/featureflags"
	"gatekeeper/internal/models"
	"gatekeeper/internal/notifications"
	"gatekeeper/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type sentMessage struct {
	recipient string
	subject   string
	body      string
}

// gatewayStub records every message and optionally fails.
type gatewayStub struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (g *gatewayStub) Send(_ context.Context, recipient, subject, body string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, sentMessage{recipient: recipient, subject: subject, body: body})
	return g.err
}

func (g *gatewayStub) messages() []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sentMessage(nil), g.sent...)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []notifications.ModerationEvent
	err    error
}

func (r *eventRecorder) PublishModerationEvent(_ context.Context, ev notifications.ModerationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	posts    repository.PostRepository
	users    repository.UserRepository
	postSvc  *PostService
	deletion *DeletionWorkflow
	userSvc  *UserService
	gateway  *gatewayStub
	events   *eventRecorder
}

const (
	testRecipient = "superadmin@example.com"
	testBaseURL   = "http://localhost:9898"
)

func newFixture(t *testing.T) *fixture {
	return newFixtureWithFlags(t, featureflags.NewManager("basic_auth=on,bulk_moderation=on"))
}

func newFixtureWithFlags(t *testing.T, flags *featureflags.Manager) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}))

	f := &fixture{
		db:      db,
		posts:   repository.NewPostRepository(db),
		users:   repository.NewUserRepository(db),
		gateway: &gatewayStub{},
		events:  &eventRecorder{},
	}
	f.postSvc = NewPostService(f.posts, f.events, flags)
	f.deletion = NewDeletionWorkflow(f.posts, f.gateway, f.events, DeletionConfig{
		Recipient: testRecipient,
		BaseURL:   testBaseURL,
	})
	f.userSvc = NewUserService(f.users, f.events).WithHashCost(4)
	return f
}

func actor(id uint, name string, roles ...models.Role) Actor {
	return Actor{ID: id, UserName: name, Roles: models.NewRoleSet(roles...)}
}

var (
	alice      = actor(1, "alice", models.RoleUser)
	bob        = actor(2, "bob", models.RoleUser)
	moderator  = actor(3, "mod", models.RoleUser, models.RoleModerator)
	admin      = actor(4, "admin", models.RoleUser, models.RoleAdmin)
	superAdmin = actor(5, "root", models.RoleSuperAdmin)
)

// seedWithStatus creates a post and walks it to status through the services.
func (f *fixture) seedWithStatus(t *testing.T, author Actor, status models.PostStatus) *models.Post {
	t.Helper()
	ctx := context.Background()
	post, err := f.postSvc.Create(ctx, author, CreatePostInput{Title: "t", Content: "body"})
	require.NoError(t, err)

	switch status {
	case models.PostStatusPending:
	case models.PostStatusRejected:
		_, err = f.postSvc.Reject(ctx, moderator, post.ID)
		require.NoError(t, err)
	default:
		_, err = f.postSvc.Approve(ctx, moderator, post.ID)
		require.NoError(t, err)
		if status == models.PostStatusApproved {
			break
		}
		out, err := f.deletion.MarkForDeletion(ctx, admin, post.ID)
		require.NoError(t, err)
		require.True(t, out.Applied)
		if status == models.PostStatusDeleted {
			_, err = f.deletion.ApproveDeletion(ctx, superAdmin, *out.Post.DeletionRequestID)
			require.NoError(t, err)
		}
	}
	stored, err := f.posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	require.Equal(t, status, stored.Status)
	return stored
}

func (f *fixture) status(t *testing.T, id uint) models.PostStatus {
	t.Helper()
	p, err := f.posts.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Status
}

var errRelayDown = errors.New("relay down")
