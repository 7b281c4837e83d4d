package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type redisQueue struct {
	cli    *redis.Client
	stream string
	maxLen int64
}

// NewRedis publishes events to a Redis stream; the stream is trimmed
// approximately to maxLen entries (0 disables trimming).
func NewRedis(url, stream string, maxLen int64) Queue {
	opt, err := redis.ParseURL(url)
	if err != nil {
		slog.Warn("notify: bad redis url, falling back to noop", "err", err)
		return NewNoop()
	}
	if stream == "" {
		stream = "governance:events"
	}
	return &redisQueue{cli: redis.NewClient(opt), stream: stream, maxLen: maxLen}
}

func (q *redisQueue) Publish(evt Event) error {
	b, _ := json.Marshal(evt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	args := &redis.XAddArgs{Stream: q.stream, Values: map[string]any{"data": string(b)}}
	if q.maxLen > 0 {
		args.MaxLen = q.maxLen
		args.Approx = true
	}
	return q.cli.XAdd(ctx, args).Err()
}

func (q *redisQueue) Close() error { return q.cli.Close() }
