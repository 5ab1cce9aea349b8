package device

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/rs/zerolog"
)

type fakePublisher struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(topic string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func TestRelayControllerPublishesPowerCommands(t *testing.T) {
	pub := &fakePublisher{}
	ctrl := NewRelayController(pub, zerolog.Nop())

	if err := ctrl.SetOn("light"); err != nil {
		t.Fatal("failed to set on:", err)
	}
	if err := ctrl.SetOff("light"); err != nil {
		t.Fatal("failed to set off:", err)
	}

	if len(pub.topics) != 2 || pub.topics[0] != "devices/light/command" || pub.topics[1] != "devices/light/command" {
		t.Fatal("expected two publishes to devices/light/command, but got", pub.topics)
	}
	if !bytes.Equal(pub.payloads[0], []byte{1}) || !bytes.Equal(pub.payloads[1], []byte{0}) {
		t.Fatal("expected payloads {1} then {0}, but got", pub.payloads)
	}
}

func TestRelayControllerWrapsPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	ctrl := NewRelayController(pub, zerolog.Nop())

	if err := ctrl.SetOn("light"); err == nil {
		t.Fatal("expected the publish error to propagate")
	}
}

func TestMonitorUpdatesRegistryFromStateTopic(t *testing.T) {
	registry := NewRegistry()
	registry.Add("pump")
	monitor := NewMonitor(registry, zerolog.Nop())

	monitor.onState(nil, packets.Subscription{}, packets.Packet{
		TopicName: "devices/pump/state",
		Payload:   []byte(`{"power":"ON","voltage":"231"}`),
	})

	status, _ := registry.Get("pump")
	if status.Properties["voltage"] != "231" || status.Properties["power"] != "ON" {
		t.Fatal("expected the reported state to be recorded, but got", status.Properties)
	}
}

func TestMonitorIgnoresMalformedPayloadsAndTopics(t *testing.T) {
	registry := NewRegistry()
	registry.Add("pump")
	monitor := NewMonitor(registry, zerolog.Nop())

	monitor.onState(nil, packets.Subscription{}, packets.Packet{
		TopicName: "devices/pump/state",
		Payload:   []byte("not json"),
	})
	monitor.onState(nil, packets.Subscription{}, packets.Packet{
		TopicName: "devices/pump/command",
		Payload:   []byte(`{"power":"ON"}`),
	})

	status, _ := registry.Get("pump")
	if len(status.Properties) != 0 {
		t.Fatal("expected no recorded properties, but got", status.Properties)
	}
}
