package wsclient

import "time"

// Protocol encapsulates one exchange's native websocket dialect: how logical
// channel names are framed into subscription commands, how the venue's
// keepalive works, and which inbound frames are control traffic rather than
// data.
type Protocol interface {
	// SubscribeCommands translates logical channel names into the wire
	// messages that subscribe to them, in send order. Some venues batch all
	// channels into one command, others need one command per channel.
	SubscribeCommands(channels []string) ([]string, error)

	// UnsubscribeCommands is the symmetric operation. A nil slice means the
	// venue has no unsubscribe verb and tearing down the connection is the
	// only way out.
	UnsubscribeCommands(channels []string) ([]string, error)

	// Heartbeat returns the client-initiated keepalive message and its
	// interval. A zero interval disables client pings.
	Heartbeat() (msg string, interval time.Duration)

	// HandleFrame inspects one inbound frame. control=true means the frame
	// is protocol chatter (pings, acks, errors) and must not reach the data
	// sink; a non-empty reply is written back to the connection.
	HandleFrame(raw []byte) (reply string, control bool)

	// Decompress undoes any per-frame compression the venue applies. Venues
	// without compression return the input unchanged.
	Decompress(raw []byte) ([]byte, error)
}

// NopProtocolBase provides pass-through defaults for venues without
// compression or client heartbeats. Embed it and override what the venue
// actually needs.
type NopProtocolBase struct{}

func (NopProtocolBase) Heartbeat() (string, time.Duration)    { return "", 0 }
func (NopProtocolBase) HandleFrame([]byte) (string, bool)     { return "", false }
func (NopProtocolBase) Decompress(raw []byte) ([]byte, error) { return raw, nil }
