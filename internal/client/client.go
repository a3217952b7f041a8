// Package client implements the console client's network half: the
// post-handshake InputFrame/GameState loop, reliability bookkeeping,
// and client-side prediction with rollback-and-replay. Grounded on
// original_source's RocketConsole Client::ExecuteGame/SendGameState/
// HandleGameState.
package client

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/janne-rocket/rocket-net/internal/logging"
	"github.com/janne-rocket/rocket-net/internal/model"
	"github.com/janne-rocket/rocket-net/internal/reliability"
	"github.com/janne-rocket/rocket-net/internal/ringbuffer"
	"github.com/janne-rocket/rocket-net/internal/transport"
	"github.com/janne-rocket/rocket-net/internal/wire"
)

const (
	tickInterval  = time.Second / 60
	tickDeltaTime = float32(1.0 / 60.0)

	idleLogInterval = 5 * time.Second
	maxIdleTicks    = 20

	shutdownDisconnects = 10
)

// Client drives one established connection's post-handshake traffic.
// Exactly two goroutines touch it: Run (the network goroutine) is the
// sole writer of Incoming and sole reader of Outgoing; the frame-facing
// caller is the reverse. Neither side needs a lock, only the SPSC ring
// buffers.
type Client struct {
	sock       transport.Socket
	serverAddr *net.UDPAddr
	logger     logging.Logger

	playerID       int64
	connectionSalt uint64

	localSeqSmall  uint16
	localSeqLarge  uint64
	remoteSeqSmall uint16
	remoteSeqLarge uint64

	sendHistory reliability.SendHistory
	recvHistory reliability.RecvHistory

	history predictionHistory

	// Outgoing carries one PlayerState per frame from the render-facing
	// caller to the network goroutine. Incoming carries one player
	// roster per processed tick (predicted or reconciled) the other way.
	Outgoing *ringbuffer.Ring[model.PlayerState]
	Incoming *ringbuffer.Ring[[]model.PlayerState]

	stopping atomic.Bool
}

// New builds a Client for an already-established connection (see
// internal/handshake.ClientHandshake.Establish).
func New(sock transport.Socket, serverAddr *net.UDPAddr, logger logging.Logger, playerID int64, connectionSalt uint64) *Client {
	return &Client{
		sock:           sock,
		serverAddr:     serverAddr,
		logger:         logger,
		playerID:       playerID,
		connectionSalt: connectionSalt,
		Outgoing:       ringbuffer.New[model.PlayerState](),
		Incoming:       ringbuffer.New[[]model.PlayerState](),
	}
}

// Stop requests the network loop exit after its current iteration and
// send a Disconnect burst, without waiting for an ack that will never
// come over UDP.
func (c *Client) Stop() {
	c.stopping.Store(true)
}

// Run drives the network goroutine until Stop is called, the server
// sends Disconnect, or the idle-tick budget is exhausted.
func (c *Client) Run() {
	lastSend := time.Now()
	idleSince := time.Now()
	idleTicks := 0

	for !c.stopping.Load() {
		if now := time.Now(); now.Sub(lastSend) >= tickInterval {
			c.sendGameState()
			lastSend = now
		}

		result := c.sock.Recv()
		switch result.Outcome {
		case transport.WouldBlock:
			if time.Since(idleSince) < idleLogInterval {
				continue
			}
			idleSince = time.Now()
			idleTicks++
			c.logger.Log(logging.DEBUG, "waiting for data")
			if idleTicks > maxIdleTicks {
				c.logger.Log(logging.INFO, "no data received for a while, exiting")
				return
			}
			continue
		case transport.Errored:
			c.logger.Log(logging.EXCEPTION, "recv error", logging.KV{Key: "error", Value: result.Err})
			continue
		}

		if !sameAddr(result.Addr, c.serverAddr) {
			c.logger.Log(logging.DEBUG, "received data from unknown address")
			continue
		}
		idleTicks = 0
		idleSince = time.Now()

		if !c.handleDatagram(result.Bytes) {
			return
		}
	}

	c.disconnect()
}

// sendGameState pops the next frame-produced PlayerState (if any),
// sends it as an InputFrame, records it in send-history, and runs
// client-side prediction from it.
func (c *Client) sendGameState() {
	state, ok := c.Outgoing.Pop()
	if !ok {
		c.logger.Log(logging.DEBUG, "no player state to send")
		return
	}
	state.PlayerID = uint8(c.playerID)

	c.localSeqLarge++
	c.localSeqSmall++

	ackBits := reliability.ComputeAckBits(c.recvHistory.Seqs(), c.remoteSeqLarge+1)
	frame := wire.InputFrame{
		Header: wire.ReliabilityHeader{
			ConnectionSalt: c.connectionSalt,
			LocalSeq:       c.localSeqSmall,
			RemoteAck:      c.remoteSeqSmall,
			AckBits:        ackBits,
		},
		State: state,
	}

	if err := c.sock.Send(wire.EncodeInputFrame(frame), c.serverAddr); err != nil {
		c.logger.Log(logging.WARNING, "send InputFrame failed", logging.KV{Key: "error", Value: err})
		return
	}
	c.sendHistory.Append(c.localSeqLarge, time.Now())

	c.predict(state)

	c.logger.Log(logging.DEBUG, "SendGameState",
		logging.KV{Key: "local_seq_large", Value: c.localSeqLarge},
		logging.KV{Key: "local_seq_small", Value: c.localSeqSmall})
}

// handleDatagram validates and dispatches one inbound datagram. It
// returns false when the caller should stop the network loop (server
// disconnect).
func (c *Client) handleDatagram(data []byte) bool {
	if !wire.ValidateCRC(data) {
		c.logger.Log(logging.WARNING, "invalid packet")
		return true
	}
	header, rd, err := wire.Decode(data)
	if err != nil {
		c.logger.Log(logging.WARNING, "received too small packet")
		return true
	}

	switch header.Kind {
	case wire.KindGameState:
		c.handleGameState(rd)
	case wire.KindDisconnect:
		c.logger.Log(logging.INFO, "received disconnect packet from server")
		return false
	default:
		c.logger.Log(logging.WARNING, "unknown packet type")
	}
	return true
}

// handleGameState updates reliability counters from the server's
// authoritative tick, then reconciles the client's predicted history
// against it. Grounded on Client::HandleGameState.
func (c *Client) handleGameState(rd *wire.Reader) {
	g, err := wire.DecodeGameState(rd)
	if err != nil {
		c.logger.Log(logging.WARNING, "malformed GameState")
		return
	}
	if g.Header.ConnectionSalt != c.connectionSalt {
		c.logger.Log(logging.WARNING, "HandleGameState: incorrect salt")
		return
	}

	now := time.Now()
	forward := int16(reliability.SequenceDiff(c.remoteSeqSmall, g.Header.LocalSeq))
	switch {
	case forward > 0:
		c.remoteSeqLarge += uint64(forward)
		c.remoteSeqSmall = g.Header.LocalSeq
		c.recvHistory.Append(c.remoteSeqLarge)
	case forward < 0:
		c.logger.Log(logging.WARNING, "HandleGameState: out-of-order packets")
	default:
		c.logger.Log(logging.WARNING, "HandleGameState: duplicate packets")
	}

	ackedLocalSeqLarge := c.localSeqLarge - uint64(int16(reliability.SequenceDiff(c.localSeqSmall, g.Header.RemoteAck)))
	if rtt := c.sendHistory.ApplyAcks(ackedLocalSeqLarge, g.Header.AckBits, now); rtt > 0 {
		c.logger.Log(logging.INFO, "HandleGameState: average round trip time in ms",
			logging.KV{Key: "rtt_ms", Value: rtt.Milliseconds()})
	} else {
		c.logger.Log(logging.DEBUG, "HandleGameState: no packets acknowledged")
	}
	c.sendHistory.Prune()

	c.reconcile(model.GameStateSnapshot{SeqNum: ackedLocalSeqLarge, DeltaTime: tickDeltaTime, Players: g.Players})
}

func (c *Client) pushIncoming(players []model.PlayerState) {
	c.Incoming.Push(append([]model.PlayerState(nil), players...))
}

// disconnect sends the best-effort Disconnect burst UDP's lack of
// delivery guarantees calls for.
func (c *Client) disconnect() {
	datagram := wire.EncodeDisconnect(wire.Disconnect{ConnectionSalt: c.connectionSalt})
	for i := 0; i < shutdownDisconnects; i++ {
		_ = c.sock.Send(datagram, c.serverAddr)
	}
	c.logger.Log(logging.INFO, "client disconnected")
}

func sameAddr(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IP.Equal(b.IP) && a.Port == b.Port
}
