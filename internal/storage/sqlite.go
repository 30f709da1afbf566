package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/vitalsd/internal/errors"
	"codeberg.org/mutker/vitalsd/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

// SQLite keeps documents in the kv table of a sqlite database.
type SQLite struct {
	db     *sql.DB
	path   string
	logger logger.Logger
	mu     sync.Mutex
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	errFactory := errors.New()
	log := logger.Component("storage.sqlite")

	if path == "" {
		return nil, errFactory.New(ErrInvalidPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  path,
			Error: err.Error(),
		})
	}

	dsn := path + "?_journal=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := migrate(ctx, db, path, log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "migrate",
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", path).
		Int("schema_version", SchemaVersion).
		Msg("SQLite storage initialized")

	return &SQLite{
		db:     db,
		path:   path,
		logger: log,
	}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, selectValueSQL, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.New().Wrap(ErrStorageAccess, err)
	}
	return value, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, upsertValueSQL, key, value, time.Now().UnixMilli()); err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}
	return nil
}

func (s *SQLite) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, deleteValueSQL, key); err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}
	return nil
}

func (s *SQLite) CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	var (
		res sql.Result
		err error
	)
	if prev == nil {
		res, err = s.db.ExecContext(ctx, insertAbsentSQL, key, next, now)
	} else {
		res, err = s.db.ExecContext(ctx, swapValueSQL, next, now, key, prev)
	}
	if err != nil {
		return false, errors.New().Wrap(ErrStorageAccess, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.New().Wrap(ErrStorageAccess, err)
	}
	return n == 1, nil
}

func (s *SQLite) Close() error {
	errFactory := errors.New()

	// Checkpoint WAL and cleanup on close
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := s.db.Close(); err != nil {
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	s.logger.Info().Str("path", s.path).Msg("SQLite storage closed")

	return nil
}
