package config

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/vitalsd/internal/errors"
	"codeberg.org/mutker/vitalsd/internal/history"
	"codeberg.org/mutker/vitalsd/internal/relay"
	"codeberg.org/mutker/vitalsd/internal/storage"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultEnvPrefix  = "VITALSD"
	defaultConfigName = "vitalsd"
	defaultConfigDir  = "/etc"
	defaultListen     = "127.0.0.1:9470"
	defaultRateLimit  = 120
	defaultRateWindow = time.Minute
	defaultLogLevel   = LogLevelWarning
)

type Config struct {
	LogLevel       LogLevel       `mapstructure:"log_level"`
	Listen         string         `mapstructure:"listen"`
	AllowedOrigins []string       `mapstructure:"allowed_origins"`
	RateLimit      int            `mapstructure:"rate_limit"`
	RateWindow     time.Duration  `mapstructure:"rate_window"`
	PIDFile        string         `mapstructure:"pid_file"`
	Storage        storage.Config `mapstructure:"storage"`
	History        history.Config `mapstructure:"history"`
	Relay          relay.Config   `mapstructure:"relay"`

	v *viper.Viper
}

// Load reads configuration from defaults, the TOML config file,
// environment variables and command line flags, in increasing order of
// precedence, and validates the result.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: defaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	if err := bindFlags(v, fs); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := o.configPath
	if path == "" {
		path, _ = fs.GetString("config")
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	} else {
		v.SetConfigName(defaultConfigName)
		v.SetConfigType("toml")
		v.AddConfigPath(defaultConfigDir)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errFactory.Wrap(errors.ErrReadConfig, err)
			}
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	errFactory := errors.New()

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	st := storage.DefaultConfig()
	hist := history.DefaultConfig()
	rel := relay.DefaultConfig()

	v.SetDefault("log_level", string(defaultLogLevel))
	v.SetDefault("listen", defaultListen)
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("rate_limit", defaultRateLimit)
	v.SetDefault("rate_window", defaultRateWindow)
	v.SetDefault("pid_file", filepath.Join(os.TempDir(), "vitalsd.pid"))

	v.SetDefault("storage.backend", st.Backend)
	v.SetDefault("storage.path", st.Path)
	v.SetDefault("storage.dir", st.Dir)
	v.SetDefault("storage.redis_addr", st.RedisAddr)
	v.SetDefault("storage.redis_db", st.RedisDB)

	v.SetDefault("history.key", hist.Key)
	v.SetDefault("history.signals", hist.Signals)
	v.SetDefault("history.max_entries", hist.MaxEntries)
	v.SetDefault("history.compare_and_swap", hist.CompareAndSwap)
	v.SetDefault("history.max_retries", hist.MaxRetries)

	v.SetDefault("relay.queue_size", rel.QueueSize)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("vitalsd", pflag.ContinueOnError)

	fs.String("config", "", "Path to the TOML configuration file")
	fs.String("log-level", string(defaultLogLevel), "Log level (debug, info, warning, error)")
	fs.String("listen", defaultListen, "HTTP listen address")
	fs.StringSlice("allowed-origins", nil, "Origins allowed to send beacons and subscribe to the relay (empty denies cross-origin)")
	fs.String("storage-backend", storage.DefaultConfig().Backend, "History storage backend (memory, file, sqlite, redis, none)")
	fs.String("storage-path", storage.DefaultConfig().Path, "SQLite database file")
	fs.String("storage-dir", storage.DefaultConfig().Dir, "Directory for file-backed storage")
	fs.String("pid-file", filepath.Join(os.TempDir(), "vitalsd.pid"), "PID file path")

	return fs
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	bindings := map[string]string{
		"log_level":       "log-level",
		"listen":          "listen",
		"allowed_origins": "allowed-origins",
		"storage.backend": "storage-backend",
		"storage.path":    "storage-path",
		"storage.dir":     "storage-dir",
		"pid_file":        "pid-file",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !c.LogLevel.IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return errFactory.Wrap(errors.ErrInvalidListen, err)
	}
	if c.RateLimit < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "rate_limit must not be negative")
	}
	if c.RateLimit > 0 && c.RateWindow <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "rate_window must be positive")
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.History.Validate(); err != nil {
		return err
	}
	if err := c.Relay.Validate(); err != nil {
		return err
	}

	return nil
}

// ConfigFile returns the path of the file the configuration was read
// from, or "" when none was found.
func (c *Config) ConfigFile() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}

// Watch calls fn with the reloaded configuration whenever the config file
// changes. Invalid reloads are passed to onError instead. Watching stops
// delivering once ctx is done. Without a config file Watch does nothing.
func (c *Config) Watch(ctx context.Context, fn func(*Config), onError func(error)) {
	if c.ConfigFile() == "" {
		return
	}

	c.v.OnConfigChange(func(fsnotify.Event) {
		if ctx.Err() != nil {
			return
		}
		next, err := decode(c.v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		fn(next)
	})
	c.v.WatchConfig()
}
