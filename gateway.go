// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package enocean

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// GatewayConfig holds the high-level client parameters.
type GatewayConfig struct {
	Communicator CommunicatorConfig
	// SenderID is the module address used for outgoing telegrams and
	// teach-in responses.
	SenderID DeviceID
	// AcceptTeachIns makes the gateway answer UTE teach-in requests and
	// remember the announced profile for the sender.
	AcceptTeachIns bool
	Logger         zerolog.Logger
}

// DefaultGatewayConfig returns the default gateway parameters.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Communicator:   DefaultCommunicatorConfig(),
		AcceptTeachIns: true,
		Logger:         zerolog.Nop(),
	}
}

// DecodedTelegram pairs a radio telegram with its profile key and the field
// map produced by the dynamic decoder.
type DecodedTelegram struct {
	Telegram *RadioTelegram
	Key      ProfileKey
	Fields   Fields
}

// Gateway couples the transport loop with the profile registry and the
// dynamic codec. It keeps a table of sender addresses and their equipment
// profiles, populated from UTE teach-ins or via Teach, and uses it to decode
// inbound radio telegrams.
type Gateway struct {
	cfg     GatewayConfig
	log     zerolog.Logger
	comm    *Communicator
	decoder *Decoder
	encoder *Encoder

	mu      sync.RWMutex
	devices map[DeviceID]ProfileKey
}

// NewGateway creates a gateway over an opened port and a profile registry.
func NewGateway(port io.ReadWriteCloser, registry *Registry, cfg GatewayConfig) *Gateway {
	decoder := NewDecoder(registry)
	decoder.SetLogger(cfg.Logger)
	encoder := NewEncoder(registry)
	encoder.SetLogger(cfg.Logger)

	return &Gateway{
		cfg:     cfg,
		log:     cfg.Logger,
		comm:    NewCommunicator(port, cfg.Communicator),
		decoder: decoder,
		encoder: encoder,
		devices: make(map[DeviceID]ProfileKey),
	}
}

// Start launches the transport loop.
func (g *Gateway) Start() error {
	return g.comm.Start()
}

// Stop shuts the transport loop down and releases the port.
func (g *Gateway) Stop() error {
	return g.comm.Stop()
}

// Communicator exposes the underlying transport loop.
func (g *Gateway) Communicator() *Communicator {
	return g.comm
}

// Teach associates a sender address with an equipment profile so its data
// telegrams can be decoded.
func (g *Gateway) Teach(sender DeviceID, key ProfileKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.devices[sender] = key
}

// Forget removes a sender's profile association.
func (g *Gateway) Forget(sender DeviceID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.devices, sender)
}

// DeviceProfile returns the profile key taught for a sender.
func (g *Gateway) DeviceProfile(sender DeviceID) (ProfileKey, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	key, ok := g.devices[sender]
	return key, ok
}

// Receive returns the next raw packet from the inbound queue.
func (g *Gateway) Receive(timeout time.Duration) (*Packet, error) {
	return g.comm.Receive(timeout)
}

// ReceiveDecoded waits for the next radio telegram from a known device and
// returns it decoded. Teach-in telegrams are handled on the way (when
// AcceptTeachIns is set) and telegrams from unknown senders are skipped.
func (g *Gateway) ReceiveDecoded(timeout time.Duration) (*DecodedTelegram, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrReceiveTimeout
		}

		pkt, err := g.comm.Receive(remaining)
		if err != nil {
			return nil, err
		}

		t, err := AsRadioTelegram(pkt)
		if err != nil {
			g.log.Debug().Str("packet", pkt.String()).Msg("skipping non-radio packet")
			continue
		}

		if t.RORG() == RORGUTE {
			g.handleTeachIn(t)
			continue
		}

		key, ok := g.lookupKey(t)
		if !ok {
			g.log.Debug().Stringer("sender", t.SenderID()).
				Msg("skipping telegram from unknown device")
			continue
		}

		fields, err := g.decoder.Decode(key, t.userData, t.pkt.optional)
		if err != nil {
			g.log.Warn().Stringer("sender", t.SenderID()).Err(err).
				Msg("telegram decode failed")
			continue
		}
		return &DecodedTelegram{Telegram: t, Key: key, Fields: fields}, nil
	}
}

// lookupKey resolves the profile key for a telegram. MSC telegrams are
// self-describing (manufacturer id and command travel in the payload), other
// RORGs need a taught association.
func (g *Gateway) lookupKey(t *RadioTelegram) (ProfileKey, bool) {
	if t.RORG() == RORGMSC {
		return ProfileKey{RORG: RORGMSC}, true
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	key, ok := g.devices[t.SenderID()]
	return key, ok
}

// handleTeachIn records the announced profile and answers the request when
// a response is expected.
func (g *Gateway) handleTeachIn(t *RadioTelegram) {
	ute, err := ParseUTETeachIn(t)
	if err != nil {
		g.log.Warn().Err(err).Msg("malformed teach-in telegram")
		return
	}
	if !g.cfg.AcceptTeachIns {
		g.log.Debug().Stringer("sender", t.SenderID()).Msg("ignoring teach-in request")
		return
	}

	response := TeachInAccepted
	switch ute.Request {
	case TeachInDelete:
		g.Forget(t.SenderID())
		response = TeachInDeleteAccepted
	default:
		g.Teach(t.SenderID(), ute.ProfileKey())
	}
	g.log.Info().Stringer("sender", t.SenderID()).Stringer("profile", ute.ProfileKey()).
		Bool("delete", ute.Request == TeachInDelete).Msg("teach-in handled")

	if ute.ResponseExpected {
		if err := g.comm.SendPacket(ute.ResponsePacket(g.cfg.SenderID, response)); err != nil {
			g.log.Warn().Err(err).Msg("teach-in response not sent")
		}
	}
}

// Send encodes an outbound command and queues the resulting radio telegram
// for transmission.
func (g *Gateway) Send(cmd *OutboundCommand) error {
	data, _, err := g.encoder.Encode(cmd.Key, cmd.Fields)
	if err != nil {
		return fmt.Errorf("encode command %s: %w", cmd.Key, err)
	}

	sender := cmd.Sender
	if sender == (DeviceID{}) {
		sender = g.cfg.SenderID
	}
	destination := cmd.Destination
	if destination == (DeviceID{}) {
		destination = BroadcastID
	}

	pkt := NewRadioPacket(cmd.Key.RORG, data, sender, destination, cmd.Status)
	return g.comm.SendPacket(pkt)
}
