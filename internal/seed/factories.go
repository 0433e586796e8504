package seed

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"gatekeeper/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	rnd  *rand.Rand
	// synthetic ID counter when running in DryRun mode
	nextID uint
	hash   string
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := time.Now().UnixNano()
	gofakeit.Seed(seed)
	return &Factory{
		db:     db,
		opts:   opts,
		rnd:    rand.New(rand.NewSource(seed)), //nolint:gosec // demo data
		nextID: 1000,
	}
}

func (f *Factory) passwordHash() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	cost := bcrypt.DefaultCost
	if f.opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return "", fmt.Errorf("hash seed password: %w", err)
	}
	f.hash = string(hashed)
	return f.hash, nil
}

// CreateUser constructs and persists a sample user holding ROLE_USER.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.passwordHash()
	if err != nil {
		return nil, err
	}
	user := &models.User{
		UserName: fmt.Sprintf("%s%d", gofakeit.Username(), gofakeit.Number(100, 999)),
		Password: hash,
		Active:   true,
		Roles:    models.NewRoleSet(models.DefaultRole),
	}
	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s", user.UserName)
		return user, nil
	}
	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user %s: %w", user.UserName, err)
	}
	return user, nil
}

// BuildPost constructs a post by author in the given status without
// persisting it. Posts that have been through a deletion request carry a
// deletion token.
func (f *Factory) BuildPost(author *models.User, status models.PostStatus, overrides ...func(*models.Post)) *models.Post {
	authorID := author.ID
	post := &models.Post{
		Title:    gofakeit.Sentence(5),
		Content:  gofakeit.Paragraph(1, 3, 8, "\n"),
		UserName: author.UserName,
		UserID:   &authorID,
		Status:   status,
	}

	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	post.CreatedAt = time.Now().Add(-time.Duration(f.rnd.Intn(maxDays))*24*time.Hour -
		time.Duration(f.rnd.Intn(24))*time.Hour -
		time.Duration(f.rnd.Intn(60))*time.Minute)
	post.UpdatedAt = post.CreatedAt

	if status == models.PostStatusPendingDeletion || status == models.PostStatusDeleted {
		token := uuid.NewString()
		post.DeletionRequestID = &token
	}

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePostsBatch persists multiple posts in a single DB call when possible.
func (f *Factory) CreatePostsBatch(ctx context.Context, posts []*models.Post) error {
	if f.opts.DryRun {
		for _, p := range posts {
			f.nextID++
			p.ID = f.nextID
		}
		log.Printf("[dry-run] CreatePostsBatch: %d posts (no DB write)", len(posts))
		return nil
	}
	return f.db.WithContext(ctx).CreateInBatches(&posts, 100).Error
}
