package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DefaultStream is the Redis stream queue events are appended to.
const DefaultStream = "clinic:events"

// RedisNotifier appends events to a capped Redis stream that front desks
// and SMS gateways consume.
type RedisNotifier struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisNotifier(client *redis.Client, stream string, maxLen int64) *RedisNotifier {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisNotifier{client: client, stream: stream, maxLen: maxLen}
}

func (n *RedisNotifier) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]interface{}{
			"kind":      string(e.Kind),
			"data":      string(data),
			"timestamp": e.OccurredAt.Unix(),
		},
	}
	if n.maxLen > 0 {
		args.MaxLen = n.maxLen
		args.Approx = true
	}
	if err := n.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", n.stream, err)
	}
	return nil
}
