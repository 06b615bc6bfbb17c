package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v8"
)

// BoardTopics matches the display board topic of every clinic session.
const BoardTopics = "clinic/+/board"

// WatchStream reads events from a Redis stream, starting after from
// ("$" for new entries only, "0" for the whole stream), until ctx is done.
// Entries that do not decode are skipped.
func WatchStream(ctx context.Context, client *redis.Client, stream, from string, handle func(id string, e Event)) error {
	if stream == "" {
		stream = DefaultStream
	}
	if from == "" {
		from = "$"
	}
	last := from
	for {
		res, err := client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{stream, last},
			Count:   50,
			Block:   5 * time.Second,
		}).Result()
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("xread %s: %w", stream, err)
		}
		for _, s := range res {
			for _, msg := range s.Messages {
				last = msg.ID
				raw, _ := msg.Values["data"].(string)
				var e Event
				if err := json.Unmarshal([]byte(raw), &e); err != nil {
					continue
				}
				handle(msg.ID, e)
				if ctx.Err() != nil {
					return nil
				}
			}
		}
	}
}

// Subscriber is the part of an MQTT client the board watcher needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// WatchBoard subscribes to every display board and hands decoded updates
// to handle. The subscription lives as long as the client connection.
func WatchBoard(client Subscriber, handle func(topic string, e Event)) error {
	token := client.Subscribe(BoardTopics, 1, func(_ mqtt.Client, msg mqtt.Message) {
		var e Event
		if err := json.Unmarshal(msg.Payload(), &e); err != nil {
			return
		}
		handle(msg.Topic(), e)
	})
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("subscribe to %s timed out", BoardTopics)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", BoardTopics, err)
	}
	return nil
}
