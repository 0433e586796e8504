// Package bootstrap wires the database and Redis for the commands that need
// a live runtime.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gatekeeper/internal/cache"
	"gatekeeper/internal/config"
	"gatekeeper/internal/database"
	"gatekeeper/internal/middleware"
	"gatekeeper/internal/models"
	"gatekeeper/internal/repository"
	"gatekeeper/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const defaultRootUserName = "gatekeeper_root"

// Options control runtime initialization behavior.
type Options struct {
	// Fixtures, when set, is loaded after the schema is applied ("demo" for
	// the bundled set).
	Fixtures string
}

// InitRuntime connects to DB and Redis and ensures the development root account.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.ConnectWithOptions(ctx, cfg, database.ConnectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional; the client stays nil when unreachable.
	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()

	if err := EnsureDevRoot(ctx, cfg, repository.NewUserRepository(db)); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root: %w", err)
	}

	if opts.Fixtures != "" {
		fx, err := seed.LoadFixtures(opts.Fixtures)
		if err != nil {
			return nil, nil, err
		}
		if _, err := seed.NewSeeder(db, seed.Options{}).ApplyFixtures(ctx, fx); err != nil {
			return nil, nil, fmt.Errorf("failed to apply fixtures: %w", err)
		}
	}

	return db, rdb, nil
}

// EnsureDevRoot creates or repairs a development account holding every role.
// It only acts when APP_ENV is development and DEV_BOOTSTRAP_ROOT is set.
func EnsureDevRoot(ctx context.Context, cfg *config.Config, users repository.UserRepository) error {
	if cfg == nil || users == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	name := strings.TrimSpace(cfg.DevRootUsername)
	if name == "" {
		name = defaultRootUserName
	}
	if cfg.DevRootPassword == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	all := models.NewRoleSet(models.RoleUser, models.RoleModerator, models.RoleAdmin, models.RoleSuperAdmin)

	existing, err := users.GetByUserName(ctx, name)
	if err != nil {
		return err
	}
	if existing != nil {
		if err := users.UpdateRoles(ctx, existing.ID, all); err != nil {
			return err
		}
		if !existing.Active {
			if err := users.SetActive(ctx, existing.ID, true); err != nil {
				return err
			}
		}
		middleware.Logger.InfoContext(ctx, "development root ensured", slog.String("user_name", name))
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.DevRootPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}
	root := &models.User{UserName: name, Password: string(hashed), Active: true, Roles: all}
	if err := users.Create(ctx, root); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "development root created",
		slog.String("user_name", name),
		slog.Uint64("user_id", uint64(root.ID)),
	)
	return nil
}
