package relay

import (
	"net/url"

	"codeberg.org/mutker/vitalsd/internal/errors"
)

const (
	defaultQueueSize = 64
	ErrInvalidQueue  = errors.ErrorCode("relay_invalid_queue_size")
)

type Config struct {
	QueueSize int `mapstructure:"queue_size"`
}

func DefaultConfig() Config {
	return Config{QueueSize: defaultQueueSize}
}

func (c Config) Validate() error {
	if c.QueueSize <= 0 {
		return errors.New().WithData(ErrInvalidQueue, c.QueueSize)
	}
	return nil
}

// originHosts turns origins such as "https://shop.example" into the host
// patterns the websocket handshake checks against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			hosts = append(hosts, "*")
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}
