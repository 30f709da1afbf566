package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/vitalsd/internal/errors"
	"codeberg.org/mutker/vitalsd/internal/logger"
)

type migrationFailure struct {
	Phase   string
	Version int
	Error   string
}

// migrate applies pending migrations to db. A database that already has a
// schema is copied to a backups directory next to dbPath first. Databases
// written by a newer schema are refused.
func migrate(ctx context.Context, db *sql.DB, dbPath string, log logger.Logger) error {
	errFactory := errors.New()

	if _, err := db.ExecContext(ctx, createVersionsSQL); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	var current int
	if err := db.QueryRowContext(ctx, selectVersionSQL).Scan(&current); err != nil {
		return errFactory.Wrap(ErrSchemaValidationFailed, err)
	}

	log.Debug().
		Int("version", current).
		Int("target", SchemaVersion).
		Msg("Checking schema version")

	switch {
	case current == SchemaVersion:
		return nil
	case current > SchemaVersion:
		return errFactory.WithData(ErrSchemaValidationFailed, migrationFailure{
			Phase:   "newer_schema",
			Version: current,
			Error:   fmt.Sprintf("database schema v%d is newer than supported v%d", current, SchemaVersion),
		})
	case current > 0:
		if err := backup(ctx, db, dbPath, current, log); err != nil {
			return err
		}
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return err
		}
		log.Info().
			Int("version", m.version).
			Str("name", m.name).
			Msg("Schema migration applied")
	}

	return nil
}

func apply(ctx context.Context, db *sql.DB, m migration) (err error) {
	errFactory := errors.New()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errFactory.Wrap(ErrSchemaMigrationFailed, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, m.stmt); err != nil {
		return errFactory.WithData(ErrSchemaMigrationFailed, migrationFailure{
			Phase:   m.name,
			Version: m.version,
			Error:   err.Error(),
		})
	}
	if _, err = tx.ExecContext(ctx, recordVersionSQL, m.version, m.name); err != nil {
		return errFactory.WithData(ErrSchemaMigrationFailed, migrationFailure{
			Phase:   "record_version",
			Version: m.version,
			Error:   err.Error(),
		})
	}

	if err = tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaMigrationFailed, err)
	}
	return nil
}

// backup copies db with VACUUM INTO, which must run outside a transaction.
func backup(ctx context.Context, db *sql.DB, dbPath string, version int, log logger.Logger) error {
	errFactory := errors.New()

	dir := filepath.Join(filepath.Dir(dbPath), "backups")
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return errFactory.WithData(ErrSchemaMigrationFailed, migrationFailure{
			Phase:   "create_backup_dir",
			Version: version,
			Error:   err.Error(),
		})
	}

	name := fmt.Sprintf("%s.v%d.%s", filepath.Base(dbPath), version, time.Now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)

	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return errFactory.WithData(ErrSchemaMigrationFailed, migrationFailure{
			Phase:   "backup",
			Version: version,
			Error:   err.Error(),
		})
	}

	log.Info().Str("path", path).Int("version", version).Msg("Database backed up before migration")
	return nil
}
