package handshake

import (
	"net"
	"testing"

	"github.com/janne-rocket/rocket-net/internal/logging"
	"github.com/janne-rocket/rocket-net/internal/transport"
	"github.com/janne-rocket/rocket-net/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatePlayerIDLowestFree(t *testing.T) {
	assert.EqualValues(t, 1, AllocatePlayerID(nil))
	assert.EqualValues(t, 1, AllocatePlayerID([]int64{2, 3}))
	assert.EqualValues(t, 2, AllocatePlayerID([]int64{1, 3}))
	assert.EqualValues(t, 8, AllocatePlayerID([]int64{1, 2, 3, 4, 5, 6, 7}))
	assert.EqualValues(t, 0, AllocatePlayerID([]int64{1, 2, 3, 4, 5, 6, 7, 8}))
}

func TestServerHandshakeAcceptAndVerify(t *testing.T) {
	var sh ServerHandshake

	playerID, salts, challengeBytes := sh.AcceptRequest(0x1111111111111111, nil)
	assert.EqualValues(t, 1, playerID)

	_, rd, err := wire.Decode(challengeBytes)
	require.NoError(t, err)
	challenge, err := wire.DecodeChallenge(rd)
	require.NoError(t, err)
	assert.Equal(t, salts.ServerSalt, challenge.ServerSalt)

	connectionSalt := challenge.ClientSalt ^ challenge.ServerSalt
	accepted, reply := sh.VerifyResponse(salts, connectionSalt, playerID)
	assert.True(t, accepted)
	_, rd, err = wire.Decode(reply)
	require.NoError(t, err)
	acc, err := wire.DecodeConnectionAccepted(rd)
	require.NoError(t, err)
	assert.EqualValues(t, playerID, acc.PlayerID)
}

func TestServerHandshakeSaltMismatchDenies(t *testing.T) {
	var sh ServerHandshake
	playerID, salts, _ := sh.AcceptRequest(0x2222222222222222, nil)

	accepted, reply := sh.VerifyResponse(salts, 0xBADBAD, playerID)
	assert.False(t, accepted)
	header, _, err := wire.Decode(reply)
	require.NoError(t, err)
	assert.Equal(t, wire.KindConnectionDenied, header.Kind)
}

func TestClientHandshakeHappyPath(t *testing.T) {
	clientAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
	serverAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40001}

	clientSock := transport.NewMemorySocket(clientAddr)
	serverSock := transport.NewMemorySocket(serverAddr)
	transport.Pipe(clientSock, serverSock)

	ch := &ClientHandshake{Socket: clientSock, ServerAddr: serverAddr, Logger: logging.Nop{}}

	done := make(chan Result, 1)
	errs := make(chan error, 1)
	go func() {
		res, err := ch.Establish()
		if err != nil {
			errs <- err
			return
		}
		done <- res
	}()

	// Drain the ConnectionRequest and answer with a Challenge.
	var reqBytes []byte
	require.Eventually(t, func() bool {
		sent := clientSock.Sent()
		if len(sent) == 0 {
			return false
		}
		reqBytes = sent[0]
		return true
	}, legTimeout+500_000_000, 1_000_000)

	header, rd, err := wire.Decode(reqBytes)
	require.NoError(t, err)
	assert.Equal(t, wire.KindConnectionRequest, header.Kind)
	req, err := wire.DecodeConnectionRequest(rd)
	require.NoError(t, err)

	var sh ServerHandshake
	playerID, salts, challengeBytes := sh.AcceptRequest(req.ClientSalt, nil)
	require.NoError(t, serverSock.Send(challengeBytes, clientAddr))

	// Drain the ChallengeResponse and answer with ConnectionAccepted.
	var respBytes []byte
	require.Eventually(t, func() bool {
		sent := clientSock.Sent()
		if len(sent) < 2 {
			return false
		}
		respBytes = sent[1]
		return true
	}, legTimeout+500_000_000, 1_000_000)

	_, rd, err = wire.Decode(respBytes)
	require.NoError(t, err)
	resp, err := wire.DecodeChallengeResponse(rd)
	require.NoError(t, err)

	accepted, acceptBytes := sh.VerifyResponse(salts, resp.ConnectionSalt, playerID)
	require.True(t, accepted)
	require.NoError(t, serverSock.Send(acceptBytes, clientAddr))

	select {
	case res := <-done:
		assert.Equal(t, salts.ConnectionSalt, res.Salts.ConnectionSalt)
		assert.EqualValues(t, playerID, res.PlayerID)
	case err := <-errs:
		t.Fatalf("handshake failed: %v", err)
	}
}
