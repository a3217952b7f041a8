package server

import (
	"net"
	"time"

	"github.com/janne-rocket/rocket-net/internal/handshake"
	"github.com/janne-rocket/rocket-net/internal/model"
	"github.com/janne-rocket/rocket-net/internal/reliability"
)

// peerKey is a comparable, hashable value type standing in for the
// original engine's sockaddr_in equality/hash overloads, so Player
// records can live in a plain Go map keyed by address.
type peerKey struct {
	ip   [4]byte
	port int
}

func keyFor(addr *net.UDPAddr) peerKey {
	var k peerKey
	ip4 := addr.IP.To4()
	copy(k.ip[:], ip4)
	k.port = addr.Port
	return k
}

// Player is the server's per-connection record: everything needed to
// validate, advance, and reply to one peer's conversation.
type Player struct {
	PlayerID  int64
	Address   *net.UDPAddr
	State     handshake.ConnectionState
	Salts     handshake.Salts
	CreatedAt time.Time
	UpdatedAt time.Time

	ServerClockOffsetMs int64

	RemoteSeqSmall uint16
	RemoteSeqLarge uint64
	LocalSeqSmall  uint16
	LocalSeqLarge  uint64

	SendHistory reliability.SendHistory
	RecvHistory reliability.RecvHistory

	PlayerState model.PlayerState
}
