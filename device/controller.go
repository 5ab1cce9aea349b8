// Package device implements the MQTT side of the outlet devices: the relay
// command controller, the status registry and the state topic monitor.
package device

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Publisher sends a message to a topic. Satisfied by the mqtt client.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

var (
	payloadOn  = []byte{1}
	payloadOff = []byte{0}
)

// RelayController drives relay outlets by publishing one-byte power commands
// to each device's command topic. It implements core.Controller.
type RelayController struct {
	pub Publisher
	log zerolog.Logger
}

func NewRelayController(pub Publisher, logger zerolog.Logger) *RelayController {
	return &RelayController{pub: pub, log: logger}
}

func CommandTopic(device string) string {
	return fmt.Sprintf("devices/%s/command", device)
}

func StateTopic(device string) string {
	return fmt.Sprintf("devices/%s/state", device)
}

func (c *RelayController) SetOn(device string) error {
	c.log.Info().Str("device", device).Msg("turning on device")
	return c.command(device, payloadOn)
}

func (c *RelayController) SetOff(device string) error {
	c.log.Info().Str("device", device).Msg("turning off device")
	return c.command(device, payloadOff)
}

func (c *RelayController) command(device string, payload []byte) error {
	if err := c.pub.Publish(CommandTopic(device), payload); err != nil {
		return fmt.Errorf("failed to publish command for device %q: %w", device, err)
	}
	return nil
}
