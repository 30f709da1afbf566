package storage

import (
	"codeberg.org/mutker/vitalsd/internal/errors"
)

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendNone   = "none"

	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
	defaultDBPath   = "/var/lib/vitalsd/history.db"
	defaultFileDir  = "/var/lib/vitalsd/history"
)

type Config struct {
	Backend string `mapstructure:"backend"`
	// Path is the sqlite database file.
	Path string `mapstructure:"path"`
	// Dir is the directory of the file backend.
	Dir       string `mapstructure:"dir"`
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`
}

func DefaultConfig() Config {
	return Config{
		Backend:   BackendSQLite,
		Path:      defaultDBPath,
		Dir:       defaultFileDir,
		RedisAddr: "localhost:6379",
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	switch c.Backend {
	case BackendMemory, BackendNone:
		return nil
	case BackendFile:
		if c.Dir == "" {
			return errFactory.New(ErrInvalidPath)
		}
		return nil
	case BackendSQLite:
		if c.Path == "" {
			return errFactory.New(ErrInvalidPath)
		}
		return nil
	case BackendRedis:
		if c.RedisAddr == "" {
			return errFactory.New(ErrInvalidRedisAddr)
		}
		return nil
	}

	return errFactory.WithData(errors.ErrInvalidBackend, c.Backend)
}
