// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"fmt"
	"log"

	"gatekeeper/internal/models"

	"gorm.io/gorm"
)

// DefaultPassword is shared by every generated account.
const DefaultPassword = "password123"

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
	// DryRun builds entities without writing them.
	DryRun bool
	// SkipBcrypt stores DefaultPassword hashed at the minimum cost.
	SkipBcrypt bool
	MaxDays    int
}

// Result summarizes what a seeding run produced.
type Result struct {
	Users    []*models.User
	Posts    []*models.Post
	ByStatus map[models.PostStatus]int
}

// Seeder populates a database with demo users and posts.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

// NewSeeder creates a seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts)}
}

// ClearAll removes every post and user.
func (s *Seeder) ClearAll(ctx context.Context) error {
	if s.opts.DryRun {
		return nil
	}
	log.Println("🗑️  Clearing existing data...")
	db := s.db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		return db.Exec(`TRUNCATE TABLE posts, users RESTART IDENTITY CASCADE`).Error
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM posts`).Error; err != nil {
			return err
		}
		return tx.Exec(`DELETE FROM users`).Error
	})
}

// Seed creates one account per tier, opts.NumUsers random users and
// opts.NumPosts posts spread over every moderation status.
func (s *Seeder) Seed(ctx context.Context) (*Result, error) {
	log.Printf("🌱 Starting database seeding with %d users and %d posts...", s.opts.NumUsers, s.opts.NumPosts)

	if s.opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Printf("⚠️  Warning: could not clear existing data: %v", err)
		}
	}

	users, err := s.createUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("✓ %d users created", len(users))

	posts, err := s.createPosts(ctx, users)
	if err != nil {
		return nil, fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("✓ %d posts created", len(posts))

	res := &Result{Users: users, Posts: posts, ByStatus: map[models.PostStatus]int{}}
	for _, p := range posts {
		res.ByStatus[p.Status]++
	}
	log.Println("🎉 Database seeding completed successfully!")
	return res, nil
}

// tierAccounts are created on every run so each permission tier has a login.
var tierAccounts = []struct {
	name  string
	roles []models.Role
}{
	{"user", []models.Role{models.RoleUser}},
	{"moderator", []models.Role{models.RoleUser, models.RoleModerator}},
	{"admin", []models.Role{models.RoleUser, models.RoleAdmin}},
	{"superadmin", []models.Role{models.RoleUser, models.RoleSuperAdmin}},
}

func (s *Seeder) createUsers(ctx context.Context) ([]*models.User, error) {
	users := make([]*models.User, 0, len(tierAccounts)+s.opts.NumUsers)
	for _, acct := range tierAccounts {
		u, err := s.factory.CreateUser(ctx, func(u *models.User) {
			u.UserName = acct.name
			u.Roles = models.NewRoleSet(acct.roles...)
		})
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	for i := 0; i < s.opts.NumUsers; i++ {
		u, err := s.factory.CreateUser(ctx)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Seeder) createPosts(ctx context.Context, users []*models.User) ([]*models.Post, error) {
	counts := computeCounts(s.opts.NumPosts, defaultDistribution)
	posts := make([]*models.Post, 0, s.opts.NumPosts)
	i := 0
	for _, status := range distributionOrder {
		for n := 0; n < counts[status]; n++ {
			author := users[i%len(users)]
			posts = append(posts, s.factory.BuildPost(author, status))
			i++
		}
	}
	if len(posts) == 0 {
		return posts, nil
	}
	if err := s.factory.CreatePostsBatch(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}
