//go:build integration

package seed

import (
	"context"
	"net/url"
	"os"
	"strings"
	"testing"

	"gatekeeper/internal/config"
	"gatekeeper/internal/database"
	"gatekeeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseDatabaseURLToConfig(dsn string) (*config.Config, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	password := ""
	if u.User != nil {
		password, _ = u.User.Password()
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	return &config.Config{
		DBDriver:     database.DriverPostgres,
		DBHost:       u.Hostname(),
		DBPort:       port,
		DBUser:       u.User.Username(),
		DBPassword:   password,
		DBName:       strings.TrimPrefix(u.Path, "/"),
		DBSSLMode:    "disable",
		Env:          "test",
		DBSchemaMode: database.SchemaModeHybrid,
	}, nil
}

func TestIntegration_SeedPostgres(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration seed test")
	}
	cfg, err := parseDatabaseURLToConfig(dsn)
	require.NoError(t, err)

	ctx := context.Background()
	db, err := database.ConnectWithOptions(ctx, cfg, database.ConnectOptions{})
	require.NoError(t, err)

	s := NewSeeder(db, Options{NumUsers: 10, NumPosts: 50, ShouldClean: true, SkipBcrypt: true, MaxDays: 30})
	res, err := s.Seed(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Posts, 50)

	var tokens int64
	require.NoError(t, db.Model(&models.Post{}).Where("deletion_request_id IS NOT NULL").Count(&tokens).Error)
	assert.Equal(t, int64(res.ByStatus[models.PostStatusPendingDeletion]+res.ByStatus[models.PostStatusDeleted]), tokens)
}
