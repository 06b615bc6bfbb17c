package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Publish(ctx context.Context, e Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func TestMulti_PublishesToAll(t *testing.T) {
	ctx := context.Background()
	e := Event{Kind: KindQueueReminder, RecipientID: "p-1"}

	ok := new(mockNotifier)
	ok.On("Publish", ctx, e).Return(nil)
	failing := new(mockNotifier)
	failing.On("Publish", ctx, e).Return(errors.New("broker down"))

	err := Multi{failing, ok, NewLogNotifier(zap.NewNop())}.Publish(ctx, e)

	assert.ErrorContains(t, err, "broker down")
	ok.AssertExpectations(t)
	failing.AssertExpectations(t)
}

func TestRedisNotifier_AppendsToStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	n := NewRedisNotifier(client, "", 100)

	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	err := n.Publish(context.Background(), Event{
		Kind:          KindQueueReminder,
		RecipientID:   "p-1",
		ScheduleID:    "sched-1",
		CurrentNumber: "A003",
		OccurredAt:    at,
	})
	require.NoError(t, err)

	msgs, err := client.XRange(context.Background(), DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "queue_reminder", msgs[0].Values["kind"])

	var got Event
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &got))
	assert.Equal(t, "A003", got.CurrentNumber)
	assert.Equal(t, "p-1", got.RecipientID)
}

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	sent []published
	err  error
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.sent = append(p.sent, published{topic: topic, retained: retained, payload: payload.([]byte)})
	return &fakeToken{err: p.err}
}

func TestMQTTNotifier_BoardIsRetained(t *testing.T) {
	pub := &fakePublisher{}
	n := NewMQTTNotifier(pub)
	ctx := context.Background()

	require.NoError(t, n.Publish(ctx, Event{Kind: KindBoardUpdate, ScheduleID: "sched-1", CurrentNumber: "A002", WaitingCount: 3}))
	require.NoError(t, n.Publish(ctx, Event{Kind: KindQueueReminder, ScheduleID: "sched-1"}))
	require.NoError(t, n.Publish(ctx, Event{Kind: KindLeaveDecision, RecipientID: "doc-1"}))

	require.Len(t, pub.sent, 2)
	assert.Equal(t, "clinic/sched-1/board", pub.sent[0].topic)
	assert.True(t, pub.sent[0].retained)
	assert.Equal(t, "clinic/sched-1/events", pub.sent[1].topic)
	assert.False(t, pub.sent[1].retained)
}

func TestMQTTNotifier_Error(t *testing.T) {
	n := NewMQTTNotifier(&fakePublisher{err: errors.New("not connected")})
	err := n.Publish(context.Background(), Event{Kind: KindBoardUpdate, ScheduleID: "sched-1"})
	assert.ErrorContains(t, err, "not connected")
}
