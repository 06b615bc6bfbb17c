package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hospital-booking-server/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher is the part of an MQTT client the board needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTNotifier drives the waiting-room display boards. Board updates are
// retained on clinic/<schedule_id>/board so a rebooted screen shows the
// current number at once; other events go to clinic/<schedule_id>/events.
type MQTTNotifier struct {
	client  Publisher
	timeout time.Duration
}

// ConnectMQTT dials the broker.
func ConnectMQTT(cfg config.MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}

func NewMQTTNotifier(client Publisher) *MQTTNotifier {
	return &MQTTNotifier{client: client, timeout: 5 * time.Second}
}

// BoardTopic is the retained topic of a clinic session's display board.
func BoardTopic(scheduleID string) string {
	return "clinic/" + scheduleID + "/board"
}

func (n *MQTTNotifier) Publish(_ context.Context, e Event) error {
	if e.ScheduleID == "" {
		return nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}

	topic, retained := "clinic/"+e.ScheduleID+"/events", false
	if e.Kind == KindBoardUpdate {
		topic, retained = BoardTopic(e.ScheduleID), true
	}

	token := n.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(n.timeout) {
		return fmt.Errorf("publish to topic %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}
