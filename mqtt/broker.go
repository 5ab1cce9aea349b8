// Package mqtt hosts the embedded broker the outlet devices connect to and a
// thin client for publishing commands and watching device state.
package mqtt

import (
	"fmt"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/rs/zerolog"
)

type BrokerConfig struct {
	// Addr is the TCP listen address, e.g. ":1883".
	Addr string
	// DeviceUsername/DevicePassword are the credentials outlet devices
	// connect with.
	DeviceUsername string
	DevicePassword string
}

// Broker wraps a mochi MQTT server with an inline client, so the process can
// publish and subscribe without a network round trip.
type Broker struct {
	cfg    BrokerConfig
	server *mochi.Server
	log    zerolog.Logger
}

func NewBroker(cfg BrokerConfig, logger zerolog.Logger) *Broker {
	server := mochi.New(&mochi.Options{
		InlineClient: true,
	})
	return &Broker{cfg: cfg, server: server, log: logger}
}

// Server exposes the underlying mochi server for the inline client.
func (b *Broker) Server() *mochi.Server {
	return b.server
}

// Start installs the auth ledger and the given hooks, then begins serving on
// the configured TCP address.
func (b *Broker) Start(hooks []mochi.Hook, hookConfigs []any) error {

	options := auth.Options{
		Ledger: &auth.Ledger{
			Auth: auth.AuthRules{ // Auth disallows all by default
				{Username: auth.RString(b.cfg.DeviceUsername), Password: auth.RString(b.cfg.DevicePassword), Allow: true},
				{Remote: "127.0.0.1:*", Allow: true},
				{Remote: "localhost:*", Allow: true},
			},
			ACL: auth.ACLRules{ // ACL allows all by default
				{Remote: "127.0.0.1:*"}, // local superuser allow all
				{
					// devices may read their command topics and report state
					Username: auth.RString(b.cfg.DeviceUsername), Filters: auth.Filters{
						"devices/#": auth.ReadWrite,
					},
				},
				{
					// Otherwise, no clients have publishing permissions
					Filters: auth.Filters{
						"#": auth.ReadOnly,
					},
				},
			},
		},
	}

	if err := b.server.AddHook(new(auth.Hook), &options); err != nil {
		return fmt.Errorf("failed to add auth hook: %w", err)
	}

	for i, hook := range hooks {
		if err := b.server.AddHook(hook, hookConfigs[i]); err != nil {
			return fmt.Errorf("failed to add hook %s: %w", hook.ID(), err)
		}
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "t1", Address: b.cfg.Addr})
	if err := b.server.AddListener(tcp); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", b.cfg.Addr, err)
	}

	go func() {
		if err := b.server.Serve(); err != nil {
			b.log.Error().Err(err).Msg("mqtt broker stopped serving")
		}
	}()
	b.log.Info().Str("addr", b.cfg.Addr).Msg("mqtt broker listening")

	return nil
}

func (b *Broker) Close() error {
	return b.server.Close()
}
