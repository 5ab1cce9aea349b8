package mqtt

import (
	"sync/atomic"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
)

// Client publishes and subscribes through the broker's inline client.
type Client struct {
	server              *mochi.Server
	subscriberIdCounter atomic.Uint32
}

func NewClient(server *mochi.Server) *Client {
	return &Client{
		server: server,
	}
}

// Publish sends a retained message so devices that reconnect still receive
// their last command.
func (c *Client) Publish(topic string, payload []byte) error {
	return c.server.Publish(topic, payload, true, 0)
}

func (c *Client) Subscribe(topicFilter string,
	callbackFn func(cl *mochi.Client, sub packets.Subscription, pk packets.Packet)) error {

	return c.server.Subscribe(topicFilter, int(c.subscriberIdCounter.Add(1)), callbackFn)
}
