package database

import (
	"context"
	"testing"
	"testing/fstest"

	"gatekeeper/internal/config"
	"gatekeeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestPlanSchema(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		wantSQL  bool
		wantAuto bool
		wantErr  bool
	}{
		{"hybrid dev", config.Config{Env: "development", DBSchemaMode: "hybrid"}, true, true, false},
		{"hybrid prod", config.Config{Env: "production", DBSchemaMode: "hybrid"}, true, false, false},
		{"default mode", config.Config{Env: "development"}, true, true, false},
		{"sql only", config.Config{Env: "development", DBSchemaMode: "sql"}, true, false, false},
		{"auto dev", config.Config{Env: "development", DBSchemaMode: "auto"}, false, true, false},
		{"auto prod refused", config.Config{Env: "prod", DBSchemaMode: "auto"}, false, false, true},
		{"sqlite always auto", config.Config{Env: "production", DBDriver: "sqlite", DBSchemaMode: "sql"}, false, true, false},
		{"unknown mode", config.Config{DBSchemaMode: "yolo"}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := planSchema(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, plan.SQL)
			assert.Equal(t, tt.wantAuto, plan.Auto)
		})
	}
}

func TestConnectWithOptions_SQLite(t *testing.T) {
	cfg := &config.Config{
		Env:          "test",
		DBDriver:     "sqlite",
		SQLitePath:   "file:" + t.Name() + "?mode=memory&cache=shared",
		DBSchemaMode: "hybrid",
	}
	db, err := ConnectWithOptions(context.Background(), cfg, ConnectOptions{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	assert.True(t, db.Migrator().HasTable(&models.User{}))
	assert.True(t, db.Migrator().HasTable(&models.Post{}))
	assert.True(t, db.Migrator().HasIndex(&models.Post{}, "DeletionRequestID"))
	assert.Same(t, db, GetReadDB())
}

func TestMigrationsRegistered(t *testing.T) {
	all := Migrations()
	require.Len(t, all, 2)
	assert.Equal(t, "000001_create_users", all[0].String())
	assert.Equal(t, "000002_create_posts", all[1].String())
	assert.Contains(t, all[1].Up, "deletion_request_id")
	assert.NotEmpty(t, all[1].Down)
	assert.Len(t, all[0].Checksum, 64)
	assert.Nil(t, FindMigration(99))
}

func TestLoadMigrations_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		files fstest.MapFS
		want  string
	}{
		{"no name", fstest.MapFS{"m/000001.up.sql": {Data: []byte("x")}}, "expected NNNNNN_name"},
		{"bad version", fstest.MapFS{"m/abc_users.up.sql": {Data: []byte("x")}}, "bad version"},
		{"missing down", fstest.MapFS{"m/000001_users.up.sql": {Data: []byte("x")}}, "no down script"},
		{"duplicate", fstest.MapFS{
			"m/000001_a.up.sql":   {Data: []byte("x")},
			"m/000001_a.down.sql": {Data: []byte("x")},
			"m/1_b.up.sql":        {Data: []byte("x")},
			"m/1_b.down.sql":      {Data: []byte("x")},
		}, "used by"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadMigrations(tt.files, "m")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCheckApplied(t *testing.T) {
	all := Migrations()
	ok := []AppliedMigration{
		{Version: 1, Checksum: all[0].Checksum},
		{Version: 2, Checksum: all[1].Checksum},
	}
	assert.NoError(t, checkApplied(ok, all))
	assert.NoError(t, checkApplied(nil, all))

	err := checkApplied([]AppliedMigration{{Version: 1}, {Version: 7}}, all)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000007")

	err = checkApplied([]AppliedMigration{{Version: 2, Checksum: "deadbeef"}}, all)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000002_create_posts")
}
