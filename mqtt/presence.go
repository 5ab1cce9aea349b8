package mqtt

import (
	"bytes"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/rs/zerolog"
)

// PresenceListener is notified when a device's MQTT session comes or goes.
type PresenceListener interface {
	SetOnline(device string, online bool)
}

type PresenceHookOptions struct {
	Listener PresenceListener
	Logger   zerolog.Logger
}

// PresenceHook tracks device connectivity. Devices connect with their device
// name as the MQTT client ID.
type PresenceHook struct {
	mochi.HookBase
	listener PresenceListener
	log      zerolog.Logger
}

// ID returns the ID of the hook.
func (h *PresenceHook) ID() string {
	return "PresenceHook"
}

// Provides indicates which methods a hook provides.
func (h *PresenceHook) Provides(b byte) bool {
	return bytes.Contains([]byte{
		mochi.OnSessionEstablished,
		mochi.OnDisconnect,
	}, []byte{b})
}

// Init wires the hook to its listener.
func (h *PresenceHook) Init(config any) error {
	if _, ok := config.(*PresenceHookOptions); !ok && config != nil {
		return mochi.ErrInvalidConfigType
	}

	if config == nil {
		config = new(PresenceHookOptions)
	}

	opt := config.(*PresenceHookOptions)
	h.listener = opt.Listener
	h.log = opt.Logger

	return nil
}

// OnSessionEstablished is called when a new client establishes a session (after OnConnect).
func (h *PresenceHook) OnSessionEstablished(cl *mochi.Client, pk packets.Packet) {
	if h.listener != nil {
		h.listener.SetOnline(cl.ID, true)
	}
	h.log.Info().Str("device", cl.ID).Msg("device connected")
}

// OnDisconnect is called when a client is disconnected for any reason.
func (h *PresenceHook) OnDisconnect(cl *mochi.Client, err error, expire bool) {
	if h.listener != nil {
		h.listener.SetOnline(cl.ID, false)
	}
	h.log.Info().Str("device", cl.ID).Msg("device disconnected")
}
