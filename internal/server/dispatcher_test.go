package server

import (
	"net"
	"testing"
	"time"

	"github.com/janne-rocket/rocket-net/internal/handshake"
	"github.com/janne-rocket/rocket-net/internal/logging"
	"github.com/janne-rocket/rocket-net/internal/transport"
	"github.com/janne-rocket/rocket-net/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(sock transport.Socket) *Dispatcher {
	return NewDispatcher(sock, logging.Nop{}, nil)
}

func newPipedSockets(t *testing.T) (*transport.MemorySocket, *transport.MemorySocket, *net.UDPAddr, *net.UDPAddr) {
	t.Helper()
	clientAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
	serverAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40001}
	clientSock := transport.NewMemorySocket(clientAddr)
	serverSock := transport.NewMemorySocket(serverAddr)
	transport.Pipe(clientSock, serverSock)
	return clientSock, serverSock, clientAddr, serverAddr
}

func TestHandshakeThenAcceptedMarksConnected(t *testing.T) {
	clientSock, serverSock, clientAddr, _ := newPipedSockets(t)
	d := newTestDispatcher(serverSock)

	req := wire.EncodeConnectionRequest(wire.ConnectionRequest{ClientSalt: 0x1111})
	require.NoError(t, clientSock.Send(req, d.sock.LocalAddr()))
	require.True(t, d.tick())

	key := keyFor(clientAddr)
	p, ok := d.players[key]
	require.True(t, ok)
	assert.Equal(t, handshake.Connecting, p.State)

	challengeBytes := serverSock.Sent()[len(serverSock.Sent())-1]
	_, rd, err := wire.Decode(challengeBytes)
	require.NoError(t, err)
	challenge, err := wire.DecodeChallenge(rd)
	require.NoError(t, err)

	resp := wire.EncodeChallengeResponse(wire.ChallengeResponse{ConnectionSalt: challenge.ClientSalt ^ challenge.ServerSalt})
	require.NoError(t, clientSock.Send(resp, d.sock.LocalAddr()))
	require.True(t, d.tick())

	assert.Equal(t, handshake.Connected, p.State)
}

func TestChallengeResponseSaltMismatchDenies(t *testing.T) {
	clientSock, serverSock, clientAddr, _ := newPipedSockets(t)
	d := newTestDispatcher(serverSock)

	key := keyFor(clientAddr)
	d.players[key] = &Player{
		PlayerID: 1,
		Address:  clientAddr,
		State:    handshake.Connecting,
		Salts:    handshake.Salts{ClientSalt: 1, ServerSalt: 2, ConnectionSalt: 3},
	}

	resp := wire.EncodeChallengeResponse(wire.ChallengeResponse{ConnectionSalt: 0xDEADBEEF})
	require.NoError(t, clientSock.Send(resp, d.sock.LocalAddr()))
	require.True(t, d.tick())

	_, stillThere := d.players[key]
	assert.False(t, stillThere)
}

func TestInputFrameSequenceWrap(t *testing.T) {
	_, serverSock, clientAddr, _ := newPipedSockets(t)
	d := newTestDispatcher(serverSock)

	key := keyFor(clientAddr)
	p := &Player{
		PlayerID:       1,
		Address:        clientAddr,
		State:          handshake.Connected,
		Salts:          handshake.Salts{ConnectionSalt: 0xABCD},
		RemoteSeqSmall: 65535,
		RemoteSeqLarge: 100000,
		UpdatedAt:      time.Now(),
	}
	d.players[key] = p

	frame := wire.EncodeInputFrame(wire.InputFrame{
		Header: wire.ReliabilityHeader{ConnectionSalt: 0xABCD, LocalSeq: 0},
	})
	_, rd, err := wire.Decode(frame)
	require.NoError(t, err)
	d.handleInputFrame(rd, clientAddr)

	assert.EqualValues(t, 100001, p.RemoteSeqLarge)
	assert.EqualValues(t, 0, p.RemoteSeqSmall)
}

func TestInputFrameDuplicateDropped(t *testing.T) {
	_, serverSock, clientAddr, _ := newPipedSockets(t)
	d := newTestDispatcher(serverSock)

	key := keyFor(clientAddr)
	p := &Player{
		PlayerID:       1,
		Address:        clientAddr,
		State:          handshake.Connected,
		Salts:          handshake.Salts{ConnectionSalt: 0xABCD},
		RemoteSeqSmall: 5,
		RemoteSeqLarge: 5,
		UpdatedAt:      time.Now(),
	}
	d.players[key] = p

	frame := wire.EncodeInputFrame(wire.InputFrame{
		Header: wire.ReliabilityHeader{ConnectionSalt: 0xABCD, LocalSeq: 5},
	})
	_, rd, err := wire.Decode(frame)
	require.NoError(t, err)
	d.handleInputFrame(rd, clientAddr)

	assert.EqualValues(t, 5, p.RemoteSeqLarge)
}

func TestEvictIdlePeers(t *testing.T) {
	_, serverSock, clientAddr, _ := newPipedSockets(t)
	d := newTestDispatcher(serverSock)
	d.lastEvictAt = time.Now().Add(-2 * evictCheckInterval)

	key := keyFor(clientAddr)
	d.players[key] = &Player{
		PlayerID:  1,
		Address:   clientAddr,
		State:     handshake.Connected,
		UpdatedAt: time.Now().Add(-2 * evictAfter),
	}

	d.evictIdlePeers()

	_, ok := d.players[key]
	assert.False(t, ok)
}

func TestConnectionRequestDeniedWhenTableFull(t *testing.T) {
	clientSock, serverSock, clientAddr, _ := newPipedSockets(t)
	d := newTestDispatcher(serverSock)

	for i := int64(1); i <= handshake.MaxPlayers; i++ {
		addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, byte(i+1)), Port: 40010 + int(i)}
		d.players[keyFor(addr)] = &Player{PlayerID: i, Address: addr, State: handshake.Connected}
	}

	req := wire.EncodeConnectionRequest(wire.ConnectionRequest{ClientSalt: 0x9999})
	require.NoError(t, clientSock.Send(req, d.sock.LocalAddr()))
	require.True(t, d.tick())

	_, ok := d.players[keyFor(clientAddr)]
	assert.False(t, ok)

	last := serverSock.Sent()[len(serverSock.Sent())-1]
	header, _, err := wire.Decode(last)
	require.NoError(t, err)
	assert.Equal(t, wire.KindConnectionDenied, header.Kind)
}
