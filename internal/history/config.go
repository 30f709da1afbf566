package history

import (
	"codeberg.org/mutker/vitalsd/internal/errors"
)

const (
	DefaultKey        = "performance-history"
	DefaultMaxEntries = 50
	DefaultMaxRetries = 5
)

// DefaultSignals are the tracked page-quality signals: visual stability,
// paint timing, interactivity, load responsiveness and server response time.
var DefaultSignals = []string{"CLS", "FCP", "INP", "LCP", "TTFB"}

type Config struct {
	Key            string   `mapstructure:"key"`
	Signals        []string `mapstructure:"signals"`
	MaxEntries     int      `mapstructure:"max_entries"`
	CompareAndSwap bool     `mapstructure:"compare_and_swap"`
	MaxRetries     int      `mapstructure:"max_retries"`
}

func DefaultConfig() Config {
	return Config{
		Key:        DefaultKey,
		Signals:    append([]string(nil), DefaultSignals...),
		MaxEntries: DefaultMaxEntries,
		MaxRetries: DefaultMaxRetries,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Key == "" {
		return errFactory.New(ErrInvalidKey)
	}
	if len(c.Signals) == 0 {
		return errFactory.New(ErrNoSignals)
	}
	for _, s := range c.Signals {
		if s == "" {
			return errFactory.WithData(ErrNoSignals, "empty signal name")
		}
	}
	if c.MaxEntries <= 0 {
		return errFactory.WithData(errors.ErrInvalidRetention, c.MaxEntries)
	}
	if c.CompareAndSwap && c.MaxRetries < 0 {
		return errFactory.WithData(ErrInvalidRetries, c.MaxRetries)
	}
	return nil
}
