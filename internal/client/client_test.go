package client

import (
	"net"
	"testing"

	"github.com/janne-rocket/rocket-net/internal/logging"
	"github.com/janne-rocket/rocket-net/internal/model"
	"github.com/janne-rocket/rocket-net/internal/transport"
	"github.com/janne-rocket/rocket-net/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *transport.MemorySocket, *transport.MemorySocket) {
	t.Helper()
	clientAddr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 40001}
	serverAddr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 3501}

	clientSock := transport.NewMemorySocket(clientAddr)
	serverSock := transport.NewMemorySocket(serverAddr)
	transport.Pipe(clientSock, serverSock)

	c := New(clientSock, serverAddr, logging.Nop{}, 1, 0xABCD)
	return c, clientSock, serverSock
}

func TestSendGameStatePredictsAfterBaseline(t *testing.T) {
	c, clientSock, _ := newTestClient(t)

	c.history.Append(model.GameStateSnapshot{
		SeqNum: 0,
		Players: []model.PlayerState{
			{PlayerID: 1, Keyboard: model.KeyUp},
		},
	})

	c.Outgoing.Push(model.PlayerState{PlayerID: 1, Keyboard: model.KeyUp | model.KeyLeft, DeltaTime: 1.0 / 60.0})
	c.sendGameState()

	assert.EqualValues(t, 1, c.localSeqLarge)
	assert.EqualValues(t, 1, c.localSeqSmall)

	players, ok := c.Incoming.Pop()
	require.True(t, ok)
	require.Len(t, players, 1)
	assert.Equal(t, model.KeyUp|model.KeyLeft, players[0].Keyboard)

	sent := clientSock.Sent()
	require.Len(t, sent, 1)
	header, rd, err := wire.Decode(sent[0])
	require.NoError(t, err)
	require.Equal(t, wire.KindInputFrame, header.Kind)
	frame, err := wire.DecodeInputFrame(rd)
	require.NoError(t, err)
	assert.EqualValues(t, 1, frame.Header.LocalSeq)
	assert.EqualValues(t, 0xABCD, frame.Header.ConnectionSalt)
}

func TestSendGameStateNoBaselineSkipsPrediction(t *testing.T) {
	c, _, _ := newTestClient(t)

	c.Outgoing.Push(model.PlayerState{PlayerID: 1, Keyboard: model.KeyUp})
	c.sendGameState()

	_, ok := c.Incoming.Pop()
	assert.False(t, ok, "no baseline snapshot means predict has nothing to advance from")
}

func TestReconcileFirstTickSeedsHistory(t *testing.T) {
	c, _, _ := newTestClient(t)

	server := model.GameStateSnapshot{
		SeqNum:  5,
		Players: []model.PlayerState{{PlayerID: 1, Keyboard: model.KeyUp}},
	}
	c.reconcile(server)

	got, ok := c.history.FindBySeq(5)
	require.True(t, ok)
	assert.Equal(t, server.Players, got.Players)

	players, ok := c.Incoming.Pop()
	require.True(t, ok)
	assert.Equal(t, server.Players, players)
}

func TestReconcileAgreementSkipsRollback(t *testing.T) {
	c, _, _ := newTestClient(t)

	local := model.GameStateSnapshot{
		SeqNum:  3,
		Players: []model.PlayerState{{PlayerID: 1, Keyboard: model.KeyUp, Pos: model.Vector2{X: 42}}},
	}
	c.history.Append(local)

	server := model.GameStateSnapshot{
		SeqNum:  3,
		Players: []model.PlayerState{{PlayerID: 1, Keyboard: model.KeyUp}},
	}
	c.reconcile(server)

	got, ok := c.history.FindBySeq(3)
	require.True(t, ok)
	assert.InDelta(t, 42, got.Players[0].Pos.X, 0.001, "agreement must not overwrite the predicted entry")

	_, ok = c.Incoming.Pop()
	assert.False(t, ok, "agreement does not push a roster update")
}

func TestReconcileMismatchRollsBackAndReplays(t *testing.T) {
	c, _, _ := newTestClient(t)

	c.history.Append(model.GameStateSnapshot{
		SeqNum:  1,
		Players: []model.PlayerState{{PlayerID: 1, Keyboard: model.KeyUp}},
	})
	c.history.Append(model.GameStateSnapshot{
		SeqNum:    2,
		DeltaTime: 1.0 / 60.0,
		Players:   []model.PlayerState{{PlayerID: 1, Keyboard: model.KeyUp | model.KeyRight}},
	})

	server := model.GameStateSnapshot{
		SeqNum:  1,
		Players: []model.PlayerState{{PlayerID: 1, Keyboard: model.KeyDown}},
	}
	c.reconcile(server)

	replayed, ok := c.history.FindBySeq(2)
	require.True(t, ok)
	require.Len(t, replayed.Players, 1)
	assert.Equal(t, model.KeyUp|model.KeyRight, replayed.Players[0].Keyboard,
		"replay re-applies the recorded input on top of the authoritative base")

	players, ok := c.Incoming.Pop()
	require.True(t, ok)
	assert.Equal(t, replayed.Players, players)
}

func TestHandleGameStateUpdatesSequenceAndReconciles(t *testing.T) {
	c, _, _ := newTestClient(t)
	c.localSeqSmall = 4
	c.localSeqLarge = 4

	msg := wire.GameState{
		Header: wire.ReliabilityHeader{
			ConnectionSalt: 0xABCD,
			LocalSeq:       1,
			RemoteAck:      4,
		},
		Players: []model.PlayerState{{PlayerID: 1, Keyboard: model.KeyUp}},
	}
	_, rd, err := wire.Decode(wire.EncodeGameState(msg))
	require.NoError(t, err)

	c.handleGameState(rd)

	assert.EqualValues(t, 1, c.remoteSeqLarge)
	assert.EqualValues(t, 1, c.remoteSeqSmall)

	players, ok := c.Incoming.Pop()
	require.True(t, ok)
	assert.Equal(t, msg.Players, players)
}

func TestHandleDatagramDisconnectStopsLoop(t *testing.T) {
	c, _, _ := newTestClient(t)

	datagram := wire.EncodeDisconnect(wire.Disconnect{ConnectionSalt: 0xABCD})
	assert.False(t, c.handleDatagram(datagram))
}

func TestHandleGameStateWrongSaltIgnored(t *testing.T) {
	c, _, _ := newTestClient(t)

	msg := wire.GameState{Header: wire.ReliabilityHeader{ConnectionSalt: 0xFFFF, LocalSeq: 1}}
	_, rd, err := wire.Decode(wire.EncodeGameState(msg))
	require.NoError(t, err)

	c.handleGameState(rd)
	assert.EqualValues(t, 0, c.remoteSeqLarge)
}

func TestDisconnectSendsShutdownBurst(t *testing.T) {
	c, clientSock, _ := newTestClient(t)
	c.disconnect()
	assert.Len(t, clientSock.Sent(), shutdownDisconnects)
}
