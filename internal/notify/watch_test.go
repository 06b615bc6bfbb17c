package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchStream_ReadsFromStart(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	n := NewRedisNotifier(client, "", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, n.Publish(ctx, Event{Kind: KindBoardUpdate, ScheduleID: "s-1", CurrentNumber: "A001"}))
	require.NoError(t, n.Publish(ctx, Event{Kind: KindQueueReminder, RecipientID: "p-3"}))

	var got []Event
	err := WatchStream(ctx, client, "", "0", func(_ string, e Event) {
		got = append(got, e)
		if len(got) == 2 {
			cancel()
		}
	})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A001", got[0].CurrentNumber)
	assert.Equal(t, KindQueueReminder, got[1].Kind)
}

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

type fakeSubscriber struct {
	topic    string
	callback mqtt.MessageHandler
	err      error
}

func (s *fakeSubscriber) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	s.topic, s.callback = topic, callback
	return &fakeToken{err: s.err}
}

func TestWatchBoard(t *testing.T) {
	sub := &fakeSubscriber{}
	var got []Event
	require.NoError(t, WatchBoard(sub, func(_ string, e Event) { got = append(got, e) }))
	assert.Equal(t, BoardTopics, sub.topic)

	payload, err := json.Marshal(Event{Kind: KindBoardUpdate, ScheduleID: "s-1", CurrentNumber: "A004"})
	require.NoError(t, err)
	sub.callback(nil, fakeMessage{topic: BoardTopic("s-1"), payload: payload})
	sub.callback(nil, fakeMessage{topic: BoardTopic("s-1"), payload: []byte("not json")})

	require.Len(t, got, 1)
	assert.Equal(t, "A004", got[0].CurrentNumber)
}

func TestWatchBoard_SubscribeError(t *testing.T) {
	sub := &fakeSubscriber{err: assert.AnError}
	err := WatchBoard(sub, func(string, Event) {})
	assert.ErrorIs(t, err, assert.AnError)
}
