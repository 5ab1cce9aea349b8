package device

import (
	"encoding/json"
	"strings"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/rs/zerolog"
)

// Subscriber registers a topic filter callback. Satisfied by the mqtt client.
type Subscriber interface {
	Subscribe(topicFilter string, callbackFn func(cl *mochi.Client, sub packets.Subscription, pk packets.Packet)) error
}

// Monitor watches the devices' state topics and feeds reported properties
// into the registry. Devices publish their state as a flat JSON object, e.g.
// {"power":"ON","voltage":"231","current":"2"}.
type Monitor struct {
	registry *Registry
	log      zerolog.Logger
}

func NewMonitor(registry *Registry, logger zerolog.Logger) *Monitor {
	return &Monitor{registry: registry, log: logger}
}

// Start subscribes to the state topic of every device.
func (m *Monitor) Start(sub Subscriber) error {
	return sub.Subscribe(StateTopic("+"), m.onState)
}

func (m *Monitor) onState(cl *mochi.Client, sub packets.Subscription, pk packets.Packet) {
	device := deviceFromTopic(pk.TopicName)
	if device == "" {
		return
	}

	properties := make(map[string]string)
	if err := json.Unmarshal(pk.Payload, &properties); err != nil {
		m.log.Warn().Err(err).Str("device", device).Msg("ignoring malformed state payload")
		return
	}

	m.log.Debug().Str("device", device).
		Interface("state", properties).
		Msg("received device state")
	m.registry.UpdateState(device, properties)
}

// deviceFromTopic extracts <id> from "devices/<id>/state".
func deviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "devices" || parts[2] != "state" {
		return ""
	}
	return parts[1]
}
