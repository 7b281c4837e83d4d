package notify

import (
	"log/slog"
	"strings"
)

// Config selects and parameterizes the sink backend.
type Config struct {
	Driver  string // redis|kafka|noop (default)
	URL     string // redis URL
	Brokers string // kafka brokers, comma-separated
	Topic   string // kafka topic or redis stream name
	MaxLen  int64  // redis stream trim length
}

// New builds a Queue from config; unknown drivers fall back to noop.
func New(cfg Config) Queue {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "redis":
		return NewRedis(cfg.URL, cfg.Topic, cfg.MaxLen)
	case "kafka":
		var brokers []string
		for _, b := range strings.Split(cfg.Brokers, ",") {
			if t := strings.TrimSpace(b); t != "" {
				brokers = append(brokers, t)
			}
		}
		return NewKafka(brokers, cfg.Topic)
	case "", "noop":
		return NewNoop()
	default:
		slog.Warn("notify: unsupported driver, using noop", "driver", cfg.Driver)
		return NewNoop()
	}
}
