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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// State is the lifecycle state of a Communicator.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// QueuePolicy selects the behavior of the inbound queue when full.
type QueuePolicy int

const (
	// DropOldest discards the oldest queued packet to make room.
	DropOldest QueuePolicy = iota
	// BlockProducer suspends the reader until a consumer drains the queue.
	BlockProducer
)

var (
	// ErrReceiveTimeout is returned by Receive when no packet arrives in time.
	ErrReceiveTimeout = errors.New("receive timeout")
	// ErrNotRunning is returned when an operation requires a running loop.
	ErrNotRunning = errors.New("communicator is not running")
	// ErrTransportClosed is returned once the transport handle is released.
	ErrTransportClosed = errors.New("transport closed")
)

// CommunicatorConfig holds transport loop parameters.
type CommunicatorConfig struct {
	RxQueueSize      int           // bounded inbound packet queue
	TxQueueSize      int           // bounded outbound frame queue
	RxPolicy         QueuePolicy   // behavior when the inbound queue is full
	ReadChunkSize    int           // per-read buffer size
	ReadIdleDelay    time.Duration // pause after an empty read
	MinWriteInterval time.Duration // spacing enforced between outgoing frames
	Logger           zerolog.Logger
}

// DefaultCommunicatorConfig returns the default transport loop parameters.
func DefaultCommunicatorConfig() CommunicatorConfig {
	return CommunicatorConfig{
		RxQueueSize:      64,
		TxQueueSize:      16,
		RxPolicy:         DropOldest,
		ReadChunkSize:    256,
		ReadIdleDelay:    2 * time.Millisecond,
		MinWriteInterval: 10 * time.Millisecond,
		Logger:           zerolog.Nop(),
	}
}

// Communicator runs the two transport loops: a reader that frames the raw
// byte stream into validated packets on a bounded inbound queue, and a
// writer that drains the outbound queue onto the wire with a minimum
// inter-frame spacing. The port is never read and written concurrently by
// the same loop; reader and writer own their directions exclusively.
//
// A transport failure is terminal: both loops stop, the port is released and
// the error is surfaced through Err(). Stopping keeps already-queued packets
// drainable via Receive; a partially received frame is discarded.
type Communicator struct {
	cfg      CommunicatorConfig
	log      zerolog.Logger
	port     io.ReadWriteCloser
	packager *ESP3Packager

	rx chan *Packet
	tx chan []byte

	mu         sync.Mutex
	state      atomic.Int32
	cancel     context.CancelFunc
	done       chan struct{}
	wg         sync.WaitGroup
	portOnce   sync.Once
	portClosed atomic.Bool

	errMu   sync.Mutex
	termErr error

	invalidFrames  atomic.Uint64
	droppedPackets atomic.Uint64
	sentFrames     atomic.Uint64
}

// NewCommunicator creates a transport loop over an opened port. The port is
// owned by the communicator from this point on and is closed on Stop or on
// a terminal transport error.
func NewCommunicator(port io.ReadWriteCloser, cfg CommunicatorConfig) *Communicator {
	def := DefaultCommunicatorConfig()
	if cfg.RxQueueSize <= 0 {
		cfg.RxQueueSize = def.RxQueueSize
	}
	if cfg.TxQueueSize <= 0 {
		cfg.TxQueueSize = def.TxQueueSize
	}
	if cfg.ReadChunkSize <= 0 {
		cfg.ReadChunkSize = def.ReadChunkSize
	}
	if cfg.ReadIdleDelay <= 0 {
		cfg.ReadIdleDelay = def.ReadIdleDelay
	}

	return &Communicator{
		cfg:      cfg,
		log:      cfg.Logger,
		port:     port,
		packager: NewESP3Packager(),
		rx:       make(chan *Packet, cfg.RxQueueSize),
		tx:       make(chan []byte, cfg.TxQueueSize),
	}
}

// State returns the current lifecycle state.
func (c *Communicator) State() State {
	return State(c.state.Load())
}

// Err returns the terminal transport error, if any.
func (c *Communicator) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.termErr
}

// InvalidFrames returns the number of frames discarded for checksum errors.
func (c *Communicator) InvalidFrames() uint64 {
	return c.invalidFrames.Load()
}

// DroppedPackets returns the number of packets dropped under DropOldest.
func (c *Communicator) DroppedPackets() uint64 {
	return c.droppedPackets.Load()
}

// Start launches the reader and writer loops. A communicator whose port has
// been released cannot be started again; create a new one instead.
func (c *Communicator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s := State(c.state.Load()); s != StateStopped {
		return fmt.Errorf("cannot start communicator in state %s", s)
	}
	if c.portClosed.Load() {
		return ErrTransportClosed
	}
	c.state.Store(int32(StateStarting))

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	c.wg.Add(2)
	go c.readLoop(ctx)
	go c.writeLoop(ctx)

	done := c.done
	go func() {
		c.wg.Wait()
		c.closePort()
		c.state.Store(int32(StateStopped))
		close(done)
	}()

	c.state.Store(int32(StateRunning))
	c.log.Info().Int("rx_queue", c.cfg.RxQueueSize).Int("tx_queue", c.cfg.TxQueueSize).
		Msg("communicator started")
	return nil
}

// Stop cancels both loops and releases the port. It is idempotent and safe
// to call concurrently with in-flight reads and writes. Packets already in
// the inbound queue remain retrievable via Receive.
func (c *Communicator) Stop() error {
	c.mu.Lock()
	done := c.done
	if done == nil {
		// Never started.
		c.mu.Unlock()
		return nil
	}
	if s := State(c.state.Load()); s == StateRunning || s == StateStarting {
		c.state.Store(int32(StateStopping))
		c.cancel()
		c.closePort() // unblocks a reader parked in port.Read
	}
	c.mu.Unlock()

	<-done
	c.log.Info().Uint64("invalid_frames", c.invalidFrames.Load()).
		Uint64("dropped_packets", c.droppedPackets.Load()).Msg("communicator stopped")
	return nil
}

// fail records a terminal transport error and shuts both loops down.
func (c *Communicator) fail(err error) {
	c.errMu.Lock()
	if c.termErr == nil {
		c.termErr = err
	}
	c.errMu.Unlock()

	c.log.Error().Err(err).Msg("transport failure, stopping communicator")
	c.state.Store(int32(StateStopping))
	c.cancel()
	c.closePort()
}

func (c *Communicator) closePort() {
	c.portOnce.Do(func() {
		c.portClosed.Store(true)
		if err := c.port.Close(); err != nil {
			c.log.Warn().Err(err).Msg("port close failed")
		}
	})
}

// Receive returns the next inbound packet, waiting up to timeout. After the
// loop has stopped the queue drains first, then the terminal error (if any)
// or ErrTransportClosed is returned instead of waiting.
func (c *Communicator) Receive(timeout time.Duration) (*Packet, error) {
	select {
	case pkt := <-c.rx:
		return pkt, nil
	default:
	}

	if State(c.state.Load()) == StateStopped {
		return nil, c.closedErr()
	}

	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case pkt := <-c.rx:
		return pkt, nil
	case <-done:
		// The loop ended while we waited; drain anything published late.
		select {
		case pkt := <-c.rx:
			return pkt, nil
		default:
		}
		return nil, c.closedErr()
	case <-timer.C:
		return nil, ErrReceiveTimeout
	}
}

// closedErr classifies why no more packets will arrive.
func (c *Communicator) closedErr() error {
	if err := c.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTransportClosed, err)
	}
	if c.portClosed.Load() {
		return ErrTransportClosed
	}
	return ErrNotRunning
}

// Send queues an already-encoded frame for transmission. It blocks while
// the outbound queue is full and fails once the loop is no longer running.
func (c *Communicator) Send(frame []byte) error {
	if State(c.state.Load()) != StateRunning {
		return ErrNotRunning
	}
	select {
	case c.tx <- frame:
		return nil
	case <-c.done:
		return ErrNotRunning
	}
}

// SendPacket frames and queues a packet for transmission.
func (c *Communicator) SendPacket(pkt *Packet) error {
	frame, err := c.packager.PackPacket(pkt)
	if err != nil {
		return err
	}
	return c.Send(frame)
}

// readLoop pulls bytes off the port and feeds them through the incremental
// frame parser, publishing every validated packet to the inbound queue.
func (c *Communicator) readLoop(ctx context.Context) {
	defer c.wg.Done()

	buf := make([]byte, 0, 4*c.cfg.ReadChunkSize)
	chunk := make([]byte, c.cfg.ReadChunkSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := c.port.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			buf = c.drainFrames(ctx, buf)
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue // transient read timeout, poll again
			}
			c.fail(fmt.Errorf("transport read: %w", err))
			return
		}
		if n == 0 {
			time.Sleep(c.cfg.ReadIdleDelay)
		}
	}
}

// drainFrames parses as many frames as the buffer holds and returns the
// unconsumed remainder.
func (c *Communicator) drainFrames(ctx context.Context, buf []byte) []byte {
	for {
		pkt, consumed, err := c.packager.TryUnpack(buf)
		buf = buf[consumed:]
		switch {
		case err == nil:
			c.publish(ctx, pkt)
		case errors.Is(err, ErrIncompleteFrame):
			return buf
		case errors.Is(err, ErrInvalidFrame):
			c.invalidFrames.Add(1)
			c.log.Warn().Err(err).Uint64("total", c.invalidFrames.Load()).
				Msg("discarding invalid frame")
		default:
			return buf
		}
	}
}

// publish delivers a packet to the inbound queue per the configured policy.
func (c *Communicator) publish(ctx context.Context, pkt *Packet) {
	if c.cfg.RxPolicy == BlockProducer {
		select {
		case c.rx <- pkt:
		case <-ctx.Done():
		}
		return
	}

	for {
		select {
		case c.rx <- pkt:
			return
		default:
		}
		select {
		case <-c.rx:
			c.droppedPackets.Add(1)
		default:
		}
	}
}

// writeLoop drains the outbound queue onto the port, honoring the minimum
// inter-frame spacing.
func (c *Communicator) writeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-c.tx:
			if err := c.writeAll(frame); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.fail(fmt.Errorf("transport write: %w", err))
				return
			}
			c.sentFrames.Add(1)
			if c.cfg.MinWriteInterval > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(c.cfg.MinWriteInterval):
				}
			}
		}
	}
}

func (c *Communicator) writeAll(frame []byte) error {
	written := 0
	for written < len(frame) {
		n, err := c.port.Write(frame[written:])
		if err != nil {
			return fmt.Errorf("after %d of %d bytes: %w", written, len(frame), err)
		}
		written += n
	}
	return nil
}
