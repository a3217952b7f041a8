// Package server implements the authoritative, single-threaded game
// server: the player table, the handshake/clock/gameplay dispatch loop,
// and idle-peer eviction. Grounded on original_source's
// RocketServer/Server.cpp, which runs a single recvfrom loop with no
// locks; this package preserves that shape instead of fanning work out
// across goroutines; Run is not safe to call from more than one
// goroutine at a time.
package server

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/janne-rocket/rocket-net/internal/handshake"
	"github.com/janne-rocket/rocket-net/internal/logging"
	"github.com/janne-rocket/rocket-net/internal/metrics"
	"github.com/janne-rocket/rocket-net/internal/model"
	"github.com/janne-rocket/rocket-net/internal/physics"
	"github.com/janne-rocket/rocket-net/internal/reliability"
	"github.com/janne-rocket/rocket-net/internal/transport"
	"github.com/janne-rocket/rocket-net/internal/wire"
)

const (
	// idleLogInterval is how long the dispatcher waits with no datagram at
	// all before it logs an idle tick.
	idleLogInterval = 5 * time.Second

	// maxIdleTicks is how many consecutive idle-tick logs trigger a
	// graceful shutdown.
	maxIdleTicks = 20

	// evictAfter is how long a peer may go without a received datagram
	// before the dispatcher treats it as gone.
	evictAfter = 5 * time.Second

	// evictCheckInterval bounds how often eviction scans the table.
	evictCheckInterval = time.Second

	// shutdownDisconnects is how many times a Disconnect is sent to each
	// Connected peer on graceful shutdown, matching the original's
	// best-effort (UDP has no delivery guarantee) repeated send.
	shutdownDisconnects = 10

	tickDeltaTime float32 = 1.0 / 60.0
)

// Metrics is the subset of internal/metrics.Server the dispatcher drives.
// Tests that pass nil get a no-op implementation and create no collectors;
// the package still imports internal/metrics (and so prometheus) for the
// direction and drop-reason label constants.
type Metrics interface {
	SetPlayersConnected(n int)
	IncPacket(direction, kind string)
	IncDropped(reason string)
	ObserveRTT(ms float64)
}

type nopMetrics struct{}

func (nopMetrics) SetPlayersConnected(int)  {}
func (nopMetrics) IncPacket(string, string) {}
func (nopMetrics) IncDropped(string)        {}
func (nopMetrics) ObserveRTT(float64)       {}

// Dispatcher is the server's single-threaded receive loop and player
// table. It owns no locks: Run must be driven from one goroutine.
type Dispatcher struct {
	sock    transport.Socket
	logger  logging.Logger
	metrics Metrics
	hs      handshake.ServerHandshake

	players map[peerKey]*Player

	lastDatagramAt time.Time
	idleTicks      int
	lastEvictAt    time.Time

	running atomic.Bool
}

// NewDispatcher builds a Dispatcher ready to Run. A nil metrics disables
// Prometheus bookkeeping entirely rather than panicking on first use.
func NewDispatcher(sock transport.Socket, logger logging.Logger, m Metrics) *Dispatcher {
	if m == nil {
		m = nopMetrics{}
	}
	d := &Dispatcher{
		sock:           sock,
		logger:         logger,
		metrics:        m,
		players:        make(map[peerKey]*Player),
		lastDatagramAt: time.Now(),
		lastEvictAt:    time.Now(),
	}
	d.running.Store(true)
	return d
}

// Stop requests a graceful shutdown; Run returns once the current tick
// finishes and every Connected peer has been sent its Disconnect burst.
func (d *Dispatcher) Stop() {
	d.running.Store(false)
}

// Run drives the dispatch loop until Stop is called or the idle-tick
// budget is exhausted, then sends a Disconnect burst to every Connected
// peer before returning.
func (d *Dispatcher) Run() {
	for d.running.Load() {
		if !d.tick() {
			break
		}
	}
	d.shutdown()
}

// tick processes at most one inbound datagram and returns false if the
// idle budget triggered a shutdown.
func (d *Dispatcher) tick() bool {
	result := d.sock.Recv()
	switch result.Outcome {
	case transport.WouldBlock:
		return d.handleIdle()
	case transport.Errored:
		d.logger.Log(logging.EXCEPTION, "dispatcher recv error", logging.KV{Key: "error", Value: result.Err})
		return true
	}

	d.lastDatagramAt = time.Now()
	d.idleTicks = 0

	d.handleDatagram(result.Bytes, result.Addr)
	d.evictIdlePeers()
	return true
}

func (d *Dispatcher) handleIdle() bool {
	if time.Since(d.lastDatagramAt) < idleLogInterval {
		return true
	}
	d.idleTicks++
	d.logger.Log(logging.DEBUG, "idle tick", logging.KV{Key: "consecutive", Value: d.idleTicks})
	d.lastDatagramAt = time.Now()
	if d.idleTicks >= maxIdleTicks {
		d.logger.Log(logging.INFO, "idle budget exhausted, shutting down")
		return false
	}
	d.evictIdlePeers()
	return true
}

func (d *Dispatcher) handleDatagram(data []byte, addr *net.UDPAddr) {
	if !wire.ValidateCRC(data) {
		d.metrics.IncDropped(metrics.DropReasonBadCRC)
		return
	}

	header, rd, err := wire.Decode(data)
	if err != nil {
		d.metrics.IncDropped(metrics.DropReasonTooSmall)
		return
	}
	d.metrics.IncPacket(metrics.DirectionInbound, header.Kind.String())

	switch header.Kind {
	case wire.KindConnectionRequest:
		d.handleConnectionRequest(data, rd, addr)
	case wire.KindChallengeResponse:
		d.handleChallengeResponse(data, rd, addr)
	case wire.KindClock:
		d.handleClock(rd, addr)
	case wire.KindInputFrame:
		d.handleInputFrame(rd, addr)
	case wire.KindDisconnect:
		d.handleDisconnect(rd, addr)
	default:
		d.metrics.IncDropped(metrics.DropReasonUnknownKind)
	}
}

func (d *Dispatcher) handleConnectionRequest(data []byte, rd *wire.Reader, addr *net.UDPAddr) {
	if len(data) != wire.HandshakePaddedSize {
		d.metrics.IncDropped(metrics.DropReasonTooSmall)
		return
	}
	req, err := wire.DecodeConnectionRequest(rd)
	if err != nil {
		d.metrics.IncDropped(metrics.DropReasonTooSmall)
		return
	}

	key := keyFor(addr)
	if existing, ok := d.players[key]; ok && existing.State != handshake.Disconnected {
		d.resendChallenge(existing, addr)
		return
	}

	playerID, salts, reply := d.hs.AcceptRequest(req.ClientSalt, d.existingPlayerIDs())
	if playerID == 0 {
		if err := d.sock.Send(wire.EncodeConnectionDenied(), addr); err != nil {
			d.logger.Log(logging.WARNING, "send ConnectionDenied failed", logging.KV{Key: "error", Value: err})
		}
		d.metrics.IncDropped(metrics.DropReasonTableFull)
		return
	}
	now := time.Now()
	d.players[key] = &Player{
		PlayerID:  playerID,
		Address:   addr,
		State:     handshake.Connecting,
		Salts:     salts,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.sock.Send(reply, addr); err != nil {
		d.logger.Log(logging.WARNING, "send Challenge failed", logging.KV{Key: "error", Value: err})
		return
	}
	d.metrics.IncPacket(metrics.DirectionOutbound, wire.KindChallenge.String())
	d.logger.Log(logging.DEBUG, "connection requested", logging.KV{Key: "player_id", Value: playerID})
}

func (d *Dispatcher) resendChallenge(p *Player, addr *net.UDPAddr) {
	reply := wire.EncodeChallenge(wire.Challenge{ClientSalt: p.Salts.ClientSalt, ServerSalt: p.Salts.ServerSalt})
	if err := d.sock.Send(reply, addr); err != nil {
		d.logger.Log(logging.WARNING, "resend Challenge failed", logging.KV{Key: "error", Value: err})
	}
}

func (d *Dispatcher) handleChallengeResponse(data []byte, rd *wire.Reader, addr *net.UDPAddr) {
	if len(data) != wire.HandshakePaddedSize {
		d.metrics.IncDropped(metrics.DropReasonTooSmall)
		return
	}
	resp, err := wire.DecodeChallengeResponse(rd)
	if err != nil {
		d.metrics.IncDropped(metrics.DropReasonTooSmall)
		return
	}

	key := keyFor(addr)
	p, ok := d.players[key]
	if !ok {
		d.metrics.IncDropped(metrics.DropReasonUnknownPlayer)
		return
	}

	accepted, reply := d.hs.VerifyResponse(p.Salts, resp.ConnectionSalt, p.PlayerID)
	if !accepted {
		delete(d.players, key)
		if err := d.sock.Send(reply, addr); err != nil {
			d.logger.Log(logging.WARNING, "send ConnectionDenied failed", logging.KV{Key: "error", Value: err})
		}
		d.metrics.IncDropped(metrics.DropReasonBadSalt)
		return
	}

	p.State = handshake.Connected
	p.UpdatedAt = time.Now()
	if err := d.sock.Send(reply, addr); err != nil {
		d.logger.Log(logging.WARNING, "send ConnectionAccepted failed", logging.KV{Key: "error", Value: err})
		return
	}
	d.metrics.IncPacket(metrics.DirectionOutbound, wire.KindConnectionAccepted.String())
	d.metrics.SetPlayersConnected(d.countConnected())
	d.logger.Log(logging.INFO, "player connected", logging.KV{Key: "player_id", Value: p.PlayerID})
}

func (d *Dispatcher) handleClock(rd *wire.Reader, addr *net.UDPAddr) {
	probe, err := wire.DecodeClock(rd)
	if err != nil {
		d.metrics.IncDropped(metrics.DropReasonTooSmall)
		return
	}

	p := d.findBySalt(probe.ConnectionSalt)
	now := time.Now()
	if p != nil {
		p.ServerClockOffsetMs = now.UnixMilli() - probe.ClientTimeMs
		p.UpdatedAt = now
	}

	reply := wire.EncodeClockResponse(wire.ClockResponse{ServerTimeMs: now.UnixMilli()})
	if err := d.sock.Send(reply, addr); err != nil {
		d.logger.Log(logging.WARNING, "send ClockResponse failed", logging.KV{Key: "error", Value: err})
		return
	}
	d.metrics.IncPacket(metrics.DirectionOutbound, wire.KindClockResponse.String())
}

// handleInputFrame processes a client's post-handshake input packet: it
// updates reliability counters, advances that player's simulation by one
// physics step, and replies with a fresh GameState addressed to that
// peer alone, carrying every connected player's state.
func (d *Dispatcher) handleInputFrame(rd *wire.Reader, addr *net.UDPAddr) {
	frame, err := wire.DecodeInputFrame(rd)
	if err != nil {
		d.metrics.IncDropped(metrics.DropReasonTooSmall)
		return
	}
	header, state := frame.Header, frame.State

	key := keyFor(addr)
	p, ok := d.players[key]
	if !ok || p.State != handshake.Connected {
		d.metrics.IncDropped(metrics.DropReasonUnknownPlayer)
		return
	}
	if header.ConnectionSalt != p.Salts.ConnectionSalt {
		d.metrics.IncDropped(metrics.DropReasonBadSalt)
		return
	}

	now := time.Now()
	forward := int16(reliability.SequenceDiff(p.RemoteSeqSmall, header.LocalSeq))
	switch {
	case forward > 0:
		p.RemoteSeqLarge += uint64(forward)
		p.RemoteSeqSmall = header.LocalSeq
		p.RecvHistory.Append(p.RemoteSeqLarge)
	case forward < 0:
		d.metrics.IncDropped(metrics.DropReasonOutOfOrder)
		return
	default:
		d.metrics.IncDropped(metrics.DropReasonDuplicate)
		return
	}

	ackedLocalSeqLarge := p.LocalSeqLarge - uint64(int16(reliability.SequenceDiff(p.LocalSeqSmall, header.RemoteAck)))
	if rtt := p.SendHistory.ApplyAcks(ackedLocalSeqLarge, header.AckBits, now); rtt > 0 {
		d.metrics.ObserveRTT(float64(rtt.Milliseconds()))
	}
	p.SendHistory.Prune()

	p.PlayerState = physics.Step(p.PlayerState, state.Keyboard, tickDeltaTime)
	p.PlayerState.PlayerID = uint8(p.PlayerID)
	p.UpdatedAt = now

	d.replyGameState(p, now)
}

func (d *Dispatcher) replyGameState(p *Player, now time.Time) {
	p.LocalSeqSmall++
	p.LocalSeqLarge++

	players := make([]model.PlayerState, 0, len(d.players))
	for _, other := range d.players {
		if other.State == handshake.Connected {
			players = append(players, other.PlayerState)
		}
	}

	outbound := wire.GameState{
		Header: wire.ReliabilityHeader{
			ConnectionSalt: p.Salts.ConnectionSalt,
			LocalSeq:       p.LocalSeqSmall,
			RemoteAck:      p.RemoteSeqSmall,
			AckBits:        reliability.ComputeAckBits(p.RecvHistory.Seqs(), p.RemoteSeqLarge+1),
		},
		Players: players,
	}
	datagram := wire.EncodeGameState(outbound)
	if err := d.sock.Send(datagram, p.Address); err != nil {
		d.logger.Log(logging.WARNING, "send GameState failed", logging.KV{Key: "error", Value: err})
		return
	}
	d.metrics.IncPacket(metrics.DirectionOutbound, wire.KindGameState.String())
	p.SendHistory.Append(p.LocalSeqLarge, now)
}

func (d *Dispatcher) handleDisconnect(rd *wire.Reader, addr *net.UDPAddr) {
	dc, err := wire.DecodeDisconnect(rd)
	if err != nil {
		d.metrics.IncDropped(metrics.DropReasonTooSmall)
		return
	}
	key := keyFor(addr)
	p, ok := d.players[key]
	if !ok || p.Salts.ConnectionSalt != dc.ConnectionSalt {
		d.metrics.IncDropped(metrics.DropReasonBadSalt)
		return
	}
	delete(d.players, key)
	d.metrics.SetPlayersConnected(d.countConnected())
	d.logger.Log(logging.INFO, "player disconnected", logging.KV{Key: "player_id", Value: p.PlayerID})
}

// evictIdlePeers drops any peer that has gone quiet for longer than
// evictAfter, at most once per evictCheckInterval.
func (d *Dispatcher) evictIdlePeers() {
	now := time.Now()
	if now.Sub(d.lastEvictAt) < evictCheckInterval {
		return
	}
	d.lastEvictAt = now

	for key, p := range d.players {
		if now.Sub(p.UpdatedAt) > evictAfter {
			delete(d.players, key)
			d.logger.Log(logging.INFO, "player evicted (idle)", logging.KV{Key: "player_id", Value: p.PlayerID})
		}
	}
	d.metrics.SetPlayersConnected(d.countConnected())
}

// shutdown sends each Connected peer a Disconnect burst; UDP gives no
// delivery guarantee so the original repeats the send rather than
// waiting for an ack that will never come.
func (d *Dispatcher) shutdown() {
	for _, p := range d.players {
		if p.State != handshake.Connected {
			continue
		}
		datagram := wire.EncodeDisconnect(wire.Disconnect{ConnectionSalt: p.Salts.ConnectionSalt})
		for i := 0; i < shutdownDisconnects; i++ {
			_ = d.sock.Send(datagram, p.Address)
		}
	}
	d.logger.Log(logging.INFO, "dispatcher shut down")
}

func (d *Dispatcher) existingPlayerIDs() []int64 {
	ids := make([]int64, 0, len(d.players))
	for _, p := range d.players {
		ids = append(ids, p.PlayerID)
	}
	return ids
}

func (d *Dispatcher) findBySalt(connectionSalt uint64) *Player {
	for _, p := range d.players {
		if p.Salts.ConnectionSalt == connectionSalt {
			return p
		}
	}
	return nil
}

func (d *Dispatcher) countConnected() int {
	n := 0
	for _, p := range d.players {
		if p.State == handshake.Connected {
			n++
		}
	}
	return n
}

