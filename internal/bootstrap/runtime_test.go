package bootstrap

import (
	"context"
	"testing"

	"gatekeeper/internal/config"
	"gatekeeper/internal/models"
	"gatekeeper/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newUserRepo(t *testing.T) repository.UserRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}))
	return repository.NewUserRepository(db)
}

func TestEnsureDevRoot(t *testing.T) {
	ctx := context.Background()

	t.Run("skipped outside development", func(t *testing.T) {
		users := newUserRepo(t)
		cfg := &config.Config{Env: "production", DevBootstrapRoot: true, DevRootPassword: "pw"}
		require.NoError(t, EnsureDevRoot(ctx, cfg, users))
		u, err := users.GetByUserName(ctx, defaultRootUserName)
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("password required", func(t *testing.T) {
		cfg := &config.Config{Env: "development", DevBootstrapRoot: true}
		assert.Error(t, EnsureDevRoot(ctx, cfg, newUserRepo(t)))
	})

	t.Run("creates then repairs", func(t *testing.T) {
		users := newUserRepo(t)
		cfg := &config.Config{Env: "development", DevBootstrapRoot: true, DevRootUsername: "root", DevRootPassword: "rootpass1"}
		require.NoError(t, EnsureDevRoot(ctx, cfg, users))

		root, err := users.GetByUserName(ctx, "root")
		require.NoError(t, err)
		require.NotNil(t, root)
		assert.True(t, root.Roles.Has(models.RoleSuperAdmin))
		assert.True(t, root.Roles.Has(models.RoleModerator))

		require.NoError(t, users.UpdateRoles(ctx, root.ID, models.NewRoleSet(models.RoleUser)))
		require.NoError(t, users.SetActive(ctx, root.ID, false))
		require.NoError(t, EnsureDevRoot(ctx, cfg, users))

		root, err = users.GetByUserName(ctx, "root")
		require.NoError(t, err)
		assert.True(t, root.Active)
		assert.Len(t, root.Roles, 4)
	})
}
