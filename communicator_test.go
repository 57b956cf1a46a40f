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
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort is an in-memory serial port. Reads drain a feed buffer and return
// (0, nil) when it is empty, which models a quiet line with a read timeout.
type fakePort struct {
	mu      sync.Mutex
	rx      bytes.Buffer // bytes the communicator will read
	tx      bytes.Buffer // bytes the communicator wrote
	closed  bool
	readErr error
}

func newFakePort() *fakePort {
	return &fakePort{}
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr != nil {
		return 0, p.readErr
	}
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	if p.rx.Len() == 0 {
		return 0, nil
	}
	return p.rx.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	return p.tx.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// feed makes bytes available to the next reads.
func (p *fakePort) feed(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rx.Write(b)
}

// failReads makes every subsequent read return err.
func (p *fakePort) failReads(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErr = err
}

func (p *fakePort) written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.tx.Bytes()...)
}

func mustFrame(t *testing.T, data byte) []byte {
	t.Helper()
	frame, err := NewESP3Packager().Pack(PacketCommonCommand, []byte{data}, nil)
	require.NoError(t, err)
	return frame
}

func TestCommunicator_ReceiveFramedPacket(t *testing.T) {
	port := newFakePort()
	c := NewCommunicator(port, DefaultCommunicatorConfig())
	require.NoError(t, c.Start())
	defer c.Stop()

	port.feed(mustFrame(t, 0x08))

	pkt, err := c.Receive(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, PacketCommonCommand, pkt.Type())
	assert.Equal(t, []byte{0x08}, pkt.Data())
}

func TestCommunicator_ReceiveSpanningChunks(t *testing.T) {
	port := newFakePort()
	cfg := DefaultCommunicatorConfig()
	cfg.ReadChunkSize = 3 // force the frame to arrive in pieces
	c := NewCommunicator(port, cfg)
	require.NoError(t, c.Start())
	defer c.Stop()

	port.feed(mustFrame(t, 0x08))

	pkt, err := c.Receive(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08}, pkt.Data())
}

func TestCommunicator_InvalidFrameSkipped(t *testing.T) {
	port := newFakePort()
	c := NewCommunicator(port, DefaultCommunicatorConfig())
	require.NoError(t, c.Start())
	defer c.Stop()

	bad := mustFrame(t, 0x03)
	bad[6] ^= 0x01 // payload checksum now fails
	port.feed(bad)
	port.feed(mustFrame(t, 0x08))

	pkt, err := c.Receive(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08}, pkt.Data())
	assert.Equal(t, uint64(1), c.InvalidFrames())
}

func TestCommunicator_DropOldestPolicy(t *testing.T) {
	port := newFakePort()
	cfg := DefaultCommunicatorConfig()
	cfg.RxQueueSize = 1
	cfg.RxPolicy = DropOldest
	c := NewCommunicator(port, cfg)
	require.NoError(t, c.Start())
	defer c.Stop()

	port.feed(mustFrame(t, 0x01))
	port.feed(mustFrame(t, 0x02))

	require.Eventually(t, func() bool {
		return c.DroppedPackets() == 1
	}, 2*time.Second, time.Millisecond)

	pkt, err := c.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02}, pkt.Data(), "the oldest packet must be the one dropped")
}

func TestCommunicator_ReceiveTimeout(t *testing.T) {
	port := newFakePort()
	c := NewCommunicator(port, DefaultCommunicatorConfig())
	require.NoError(t, c.Start())
	defer c.Stop()

	_, err := c.Receive(20 * time.Millisecond)
	assert.ErrorIs(t, err, ErrReceiveTimeout)
}

func TestCommunicator_SendWritesFrame(t *testing.T) {
	port := newFakePort()
	c := NewCommunicator(port, DefaultCommunicatorConfig())
	require.NoError(t, c.Start())
	defer c.Stop()

	pkt := NewPacket(PacketCommonCommand, []byte{0x08}, nil)
	require.NoError(t, c.SendPacket(pkt))

	require.Eventually(t, func() bool {
		return len(port.written()) > 0
	}, 2*time.Second, time.Millisecond)

	got, _, err := NewESP3Packager().TryUnpack(port.written())
	require.NoError(t, err)
	assert.True(t, pkt.Equal(got))
}

func TestCommunicator_SendWhenNotRunning(t *testing.T) {
	port := newFakePort()
	c := NewCommunicator(port, DefaultCommunicatorConfig())

	err := c.Send([]byte{0x55})
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestCommunicator_StartTwice(t *testing.T) {
	port := newFakePort()
	c := NewCommunicator(port, DefaultCommunicatorConfig())
	require.NoError(t, c.Start())
	defer c.Stop()

	assert.Error(t, c.Start())
}

func TestCommunicator_StopIdempotent(t *testing.T) {
	port := newFakePort()
	c := NewCommunicator(port, DefaultCommunicatorConfig())
	require.NoError(t, c.Start())

	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())
	assert.Equal(t, StateStopped, c.State())
}

func TestCommunicator_StopWithoutStart(t *testing.T) {
	c := NewCommunicator(newFakePort(), DefaultCommunicatorConfig())
	assert.NoError(t, c.Stop())
}

func TestCommunicator_QueueDrainsAfterStop(t *testing.T) {
	port := newFakePort()
	c := NewCommunicator(port, DefaultCommunicatorConfig())
	require.NoError(t, c.Start())

	port.feed(mustFrame(t, 0x08))
	// Let the reader frame the packet before stopping.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, c.Stop())

	pkt, err := c.Receive(10 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08}, pkt.Data())

	_, err = c.Receive(10 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTransportClosed)
}

func TestCommunicator_NoRestartAfterStop(t *testing.T) {
	port := newFakePort()
	c := NewCommunicator(port, DefaultCommunicatorConfig())
	require.NoError(t, c.Start())
	require.NoError(t, c.Stop())

	assert.ErrorIs(t, c.Start(), ErrTransportClosed)
}

func TestCommunicator_TerminalReadError(t *testing.T) {
	port := newFakePort()
	c := NewCommunicator(port, DefaultCommunicatorConfig())
	require.NoError(t, c.Start())

	readErr := errors.New("device unplugged")
	port.failReads(readErr)

	require.Eventually(t, func() bool {
		return c.State() == StateStopped
	}, 2*time.Second, time.Millisecond)

	assert.ErrorIs(t, c.Err(), readErr)

	_, err := c.Receive(10 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTransportClosed)
	assert.ErrorIs(t, err, readErr)

	// Stop after a transport failure is still clean.
	assert.NoError(t, c.Stop())
}

func TestCommunicator_BlockedReceiveUnblocksOnFailure(t *testing.T) {
	port := newFakePort()
	c := NewCommunicator(port, DefaultCommunicatorConfig())
	require.NoError(t, c.Start())

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Receive(10 * time.Second)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond) // let the receiver park
	port.failReads(errors.New("device unplugged"))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrTransportClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked Receive did not observe the transport failure")
	}
}
