package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"gatekeeper/internal/config"
	"gatekeeper/internal/middleware"

	"gorm.io/gorm"
)

// DB_SCHEMA_MODE values.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

var prodLikeEnvs = []string{"production", "prod", "staging", "stage"}

// schemaPlan is what ApplySchema will do for one config.
// The SQL files target PostgreSQL; SQLite always uses AutoMigrate.
type schemaPlan struct {
	Mode    string
	SQL     bool
	Auto    bool
	ProdEnv bool
}

func planSchema(cfg *config.Config) (schemaPlan, error) {
	p := schemaPlan{
		Mode:    strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)),
		ProdEnv: slices.Contains(prodLikeEnvs, strings.ToLower(strings.TrimSpace(cfg.Env))),
	}
	if p.Mode == "" {
		p.Mode = SchemaModeHybrid
	}

	switch {
	case p.Mode != SchemaModeSQL && p.Mode != SchemaModeAuto && p.Mode != SchemaModeHybrid:
		return p, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", p.Mode)
	case cfg.DBDriver == DriverSQLite:
		p.Auto = true
	case p.Mode == SchemaModeSQL:
		p.SQL = true
	case p.Mode == SchemaModeAuto:
		if p.ProdEnv {
			return p, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q", cfg.Env)
		}
		p.Auto = true
	default:
		p.SQL = true
		p.Auto = !p.ProdEnv
	}
	return p, nil
}

// SchemaStatus describes what ApplySchema would do for a config.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
}

// ApplySchema brings the database schema up to date according to DB_SCHEMA_MODE.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(cfg)
	if err != nil {
		return err
	}

	if plan.SQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if plan.Auto {
		middleware.Logger.Info("running gorm automigrate",
			slog.String("mode", plan.Mode), slog.String("env", cfg.Env))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// GetSchemaStatus reports the schema plan and the SQL migrations not yet in
// the ledger.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               plan.Mode,
		Environment:        cfg.Env,
		WillRunSQL:         plan.SQL,
		WillRunAutoMigrate: plan.Auto,
	}
	if !plan.SQL {
		return status, nil
	}

	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return nil, err
	}
	for _, a := range applied {
		status.AppliedVersions = append(status.AppliedVersions, a.Version)
	}
	for _, m := range Migrations() {
		if !slices.Contains(status.AppliedVersions, m.Version) {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}
	return status, nil
}
