package handshake

import (
	"math/rand"

	"github.com/janne-rocket/rocket-net/internal/wire"
)

// ServerHandshake holds the pure request/response logic the dispatcher
// calls into; it owns no player table itself (the dispatcher in
// internal/server does), matching the original Server::HandleConnectionRequest/
// HandleChallengeResponse split between table lookup and protocol logic.
type ServerHandshake struct{}

// AcceptRequest allocates the lowest player ID not in existingIDs (0 if
// none is free) and derives the salts for a new handshake attempt,
// returning the Challenge datagram to send back. It does not recognise
// retried requests; the dispatcher resends the stored Challenge for those.
func (ServerHandshake) AcceptRequest(clientSalt uint64, existingIDs []int64) (playerID int64, salts Salts, reply []byte) {
	playerID = AllocatePlayerID(existingIDs)
	salts = Salts{ClientSalt: clientSalt, ServerSalt: rand.Uint64()}
	salts.Derive()
	reply = wire.EncodeChallenge(wire.Challenge{ClientSalt: clientSalt, ServerSalt: salts.ServerSalt})
	return playerID, salts, reply
}

// VerifyResponse checks the client's echoed connection salt against the
// one derived at Challenge time. On match it returns the
// ConnectionAccepted datagram; on mismatch, ConnectionDenied and the
// caller must drop the player record (original behavior: mismatched
// players are removed from the table, not merely left Connecting).
func (ServerHandshake) VerifyResponse(salts Salts, responseSalt uint64, playerID int64) (accepted bool, reply []byte) {
	if salts.ConnectionSalt == responseSalt {
		return true, wire.EncodeConnectionAccepted(wire.ConnectionAccepted{PlayerID: playerID})
	}
	return false, wire.EncodeConnectionDenied()
}
