package control

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/iot-core/internal/history"
	"github.com/nerrad567/iot-core/internal/infrastructure/mqtt"
)

// PubSub is the part of the MQTT client the transport needs.
type PubSub interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// commandMessage is published to <prefix>/command/<deviceId>.
type commandMessage struct {
	CommandID string `json:"command_id"`
	DeviceID  string `json:"device_id"`
	Action    string `json:"action"`
}

// ackMessage is what devices publish to <prefix>/ack/<deviceId>.
type ackMessage struct {
	CommandID string `json:"command_id"`
	Success   bool   `json:"success"`
	Detail    string `json:"detail,omitempty"`
}

// MQTTTransport publishes commands over MQTT and waits for the device's
// acknowledgement.
type MQTTTransport struct {
	client PubSub
	topics mqtt.Topics
	qos    byte
	logger Logger

	mu      sync.Mutex
	waiting map[string]chan ackMessage // command ID -> waiter
}

// NewMQTTTransport creates a transport on client. Call Start before Send.
func NewMQTTTransport(client PubSub, topics mqtt.Topics, qos byte) *MQTTTransport {
	return &MQTTTransport{
		client:  client,
		topics:  topics,
		qos:     qos,
		logger:  noopLogger{},
		waiting: make(map[string]chan ackMessage),
	}
}

// SetLogger sets the logger for unmatched and malformed acknowledgements.
func (t *MQTTTransport) SetLogger(logger Logger) {
	t.logger = logger
}

// Start subscribes to acknowledgements from every device.
func (t *MQTTTransport) Start() error {
	if err := t.client.Subscribe(t.topics.AllDeviceAcks(), t.qos, t.handleAck); err != nil {
		return fmt.Errorf("subscribing to device acks: %w", err)
	}
	return nil
}

// Send implements Transport.
func (t *MQTTTransport) Send(ctx context.Context, cmd history.DeviceCommand) error {
	payload, err := json.Marshal(commandMessage{
		CommandID: cmd.ID,
		DeviceID:  cmd.DeviceID,
		Action:    cmd.Action,
	})
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}

	ch := make(chan ackMessage, 1)
	t.mu.Lock()
	t.waiting[cmd.ID] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.waiting, cmd.ID)
		t.mu.Unlock()
	}()

	if err := t.client.Publish(t.topics.DeviceCommand(cmd.DeviceID), payload, t.qos, false); err != nil {
		return fmt.Errorf("publishing command: %w", err)
	}

	select {
	case ack := <-ch:
		if !ack.Success {
			if ack.Detail == "" {
				ack.Detail = "no detail"
			}
			return fmt.Errorf("device %s rejected command: %s", cmd.DeviceID, ack.Detail)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrAckTimeout, ctx.Err())
	}
}

// handleAck routes an acknowledgement to the Send call waiting for it.
func (t *MQTTTransport) handleAck(topic string, payload []byte) error {
	var ack ackMessage
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("decoding ack on %s: %w", topic, err)
	}
	if ack.CommandID == "" {
		return fmt.Errorf("ack on %s has no command_id", topic)
	}

	t.mu.Lock()
	ch, ok := t.waiting[ack.CommandID]
	t.mu.Unlock()
	if !ok {
		// The dispatch already gave up and recorded the command as pending.
		t.logger.Info("ack for unknown or expired command",
			"command_id", ack.CommandID,
			"device_id", topic[strings.LastIndex(topic, "/")+1:],
			"success", ack.Success,
		)
		return nil
	}

	select {
	case ch <- ack:
	default:
		// Duplicate ack (QoS 1 redelivery); the first one wins.
	}
	return nil
}
