package handshake

import (
	"math/rand"
	"net"
	"time"

	"github.com/janne-rocket/rocket-net/internal/logging"
	"github.com/janne-rocket/rocket-net/internal/transport"
	"github.com/janne-rocket/rocket-net/internal/wire"
)

// legTimeout is how long the client waits for a reply to each handshake
// leg before giving up and returning to Disconnected.
const legTimeout = time.Second

// Backoff is the pause the caller should observe between failed
// Establish attempts.
const Backoff = 3 * time.Second

// Result carries the outcome of a successful handshake.
type Result struct {
	Salts    Salts
	PlayerID int64
}

// ClientHandshake drives the two-round handshake against a single server
// address, matching RocketConsole's EstablishConnection leg for leg:
// send ConnectionRequest, sleep for the server's reply window, validate
// and answer the Challenge, then wait for ConnectionAccepted/Denied.
type ClientHandshake struct {
	Socket     transport.Socket
	ServerAddr *net.UDPAddr
	Logger     logging.Logger
}

// Establish runs one full handshake attempt. A timeout, address mismatch,
// CRC failure, unexpected packet kind, or salt mismatch all return a
// non-nil error and leave the caller free to retry after Backoff.
func (h *ClientHandshake) Establish() (Result, error) {
	salts := Salts{ClientSalt: rand.Uint64()}

	h.Logger.Log(logging.DEBUG, "sending connection request", logging.KV{Key: "client_salt", Value: salts.ClientSalt})
	if err := h.Socket.Send(wire.EncodeConnectionRequest(wire.ConnectionRequest{ClientSalt: salts.ClientSalt}), h.ServerAddr); err != nil {
		return Result{}, err
	}

	time.Sleep(legTimeout)
	challenge, err := h.recvChallenge()
	if err != nil {
		return Result{}, err
	}
	if challenge.ClientSalt != salts.ClientSalt {
		h.Logger.Log(logging.WARNING, "client salt mismatch in challenge",
			logging.KV{Key: "sent", Value: salts.ClientSalt}, logging.KV{Key: "received", Value: challenge.ClientSalt})
		return Result{}, errSaltMismatch
	}
	salts.ServerSalt = challenge.ServerSalt
	salts.Derive()

	h.Logger.Log(logging.DEBUG, "sending challenge response", logging.KV{Key: "connection_salt", Value: salts.ConnectionSalt})
	if err := h.Socket.Send(wire.EncodeChallengeResponse(wire.ChallengeResponse{ConnectionSalt: salts.ConnectionSalt}), h.ServerAddr); err != nil {
		return Result{}, err
	}

	time.Sleep(legTimeout)
	playerID, err := h.recvAcceptedOrDenied()
	if err != nil {
		return Result{}, err
	}

	h.Logger.Log(logging.INFO, "connection accepted", logging.KV{Key: "player_id", Value: playerID})
	return Result{Salts: salts, PlayerID: playerID}, nil
}

func (h *ClientHandshake) recvChallenge() (wire.Challenge, error) {
	datagram, err := h.recvFromServer()
	if err != nil {
		return wire.Challenge{}, err
	}
	header, rd, err := wire.Decode(datagram)
	if err != nil {
		return wire.Challenge{}, err
	}
	if header.Kind != wire.KindChallenge {
		return wire.Challenge{}, errUnexpectedKind
	}
	return wire.DecodeChallenge(rd)
}

func (h *ClientHandshake) recvAcceptedOrDenied() (int64, error) {
	datagram, err := h.recvFromServer()
	if err != nil {
		return 0, err
	}
	header, rd, err := wire.Decode(datagram)
	if err != nil {
		return 0, err
	}
	switch header.Kind {
	case wire.KindConnectionAccepted:
		accepted, err := wire.DecodeConnectionAccepted(rd)
		return accepted.PlayerID, err
	case wire.KindConnectionDenied:
		return 0, errConnectionDenied
	default:
		return 0, errUnexpectedKind
	}
}

func (h *ClientHandshake) recvFromServer() ([]byte, error) {
	result := h.Socket.Recv()
	switch result.Outcome {
	case transport.Received:
		if !sameAddr(result.Addr, h.ServerAddr) {
			return nil, errUnknownSender
		}
		return result.Bytes, nil
	case transport.WouldBlock:
		return nil, errTimeout
	default:
		return nil, result.Err
	}
}

func sameAddr(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IP.Equal(b.IP) && a.Port == b.Port
}
