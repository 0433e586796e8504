package database

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"gatekeeper/internal/middleware"

	"gorm.io/gorm"
)

// AppliedMigration is a row of the schema_migrations ledger.
type AppliedMigration struct {
	Version   int    `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"size:255;not null"`
	Checksum  string `gorm:"size:64;not null"`
	AppliedAt time.Time
}

func (AppliedMigration) TableName() string {
	return "schema_migrations"
}

const ensureLedgerSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	checksum VARCHAR(64) NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// appliedMigrations reads the ledger. A missing ledger means nothing is applied.
func appliedMigrations(ctx context.Context, db *gorm.DB) ([]AppliedMigration, error) {
	if !db.Migrator().HasTable(&AppliedMigration{}) {
		return nil, nil
	}
	var rows []AppliedMigration
	if err := db.WithContext(ctx).Order("version ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	return rows, nil
}

// RunMigrations applies every pending migration. Each script and its ledger
// row commit in one transaction.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).Exec(ensureLedgerSQL).Error; err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return err
	}
	registered := Migrations()
	if err := checkApplied(applied, registered); err != nil {
		return err
	}

	done := make(map[int]bool, len(applied))
	for _, a := range applied {
		done[a.Version] = true
	}

	for _, m := range registered {
		if done[m.Version] {
			continue
		}
		start := time.Now()
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(m.Up).Error; err != nil {
				return err
			}
			return tx.Create(&AppliedMigration{
				Version:   m.Version,
				Name:      m.Name,
				Checksum:  m.Checksum,
				AppliedAt: time.Now(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", m, err)
		}
		middleware.Logger.InfoContext(ctx, "migration applied",
			slog.String("migration", m.String()),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
	return nil
}

// checkApplied refuses a ledger that names versions the binary does not ship
// or whose scripts changed after they were applied.
func checkApplied(applied []AppliedMigration, registered []Migration) error {
	byVersion := make(map[int]Migration, len(registered))
	for _, m := range registered {
		byVersion[m.Version] = m
	}

	var unknown, drifted []string
	for _, a := range applied {
		m, ok := byVersion[a.Version]
		switch {
		case !ok:
			unknown = append(unknown, fmt.Sprintf("%06d", a.Version))
		case a.Checksum != "" && a.Checksum != m.Checksum:
			drifted = append(drifted, m.String())
		}
	}
	sort.Strings(unknown)

	if len(unknown) > 0 {
		return fmt.Errorf("schema_migrations has versions unknown to this build: %s", strings.Join(unknown, ", "))
	}
	if len(drifted) > 0 {
		return fmt.Errorf("applied migrations were edited afterwards: %s", strings.Join(drifted, ", "))
	}
	return nil
}

// RollbackMigration runs the down script of an applied migration and removes
// its ledger row in one transaction.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m := FindMigration(version)
	if m == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return err
	}
	found := false
	for _, a := range applied {
		if a.Version == version {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("migration %s has not been applied", m)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.Down).Error; err != nil {
			return err
		}
		return tx.Where("version = ?", version).Delete(&AppliedMigration{}).Error
	})
	if err != nil {
		return fmt.Errorf("roll back migration %s: %w", m, err)
	}
	middleware.Logger.InfoContext(ctx, "migration rolled back", slog.String("migration", m.String()))
	return nil
}
