package client

import (
	"github.com/janne-rocket/rocket-net/internal/model"
	"github.com/janne-rocket/rocket-net/internal/physics"
)

// predict runs Client-Side Prediction: given the PlayerState just sent to
// the server, simulate one step forward from the last locally-known
// snapshot for every player — the local player advances using the
// keyboard just sent, every other player advances using its own last
// known keyboard (we have no fresher input for them until the server
// says otherwise). Grounded on Client::ClientSidePrediction.
func (c *Client) predict(sent model.PlayerState) {
	previous, ok := c.history.Last()
	if !ok {
		// No baseline yet (first tick before any authoritative state has
		// arrived): nothing to predict from.
		return
	}

	next := model.GameStateSnapshot{SeqNum: c.localSeqLarge, DeltaTime: sent.DeltaTime}
	for _, prevPlayer := range previous.Players {
		input := prevPlayer.Keyboard
		if prevPlayer.PlayerID == uint8(c.playerID) {
			input = sent.Keyboard
		}
		next.Players = append(next.Players, physics.Step(prevPlayer, input, sent.DeltaTime))
	}

	c.history.Append(next)
	c.pushIncoming(next.Players)
}

// reconcile implements Apply-Authoritative-State: find the local
// snapshot at the server's seq_num and compare player_id/keyboard
// equality. A match means the prediction already agrees with what the
// server observed; a mismatch (or no local snapshot at all, e.g. the
// very first authoritative tick) triggers rollback-and-replay.
func (c *Client) reconcile(server model.GameStateSnapshot) {
	if local, ok := c.history.FindBySeq(server.SeqNum); ok && snapshotsAgree(local, server) {
		return
	}
	c.rollbackAndReplay(server)
}

func snapshotsAgree(local, server model.GameStateSnapshot) bool {
	if len(local.Players) != len(server.Players) {
		return false
	}
	for i := range local.Players {
		if local.Players[i].PlayerID != server.Players[i].PlayerID {
			return false
		}
		if local.Players[i].Keyboard != server.Players[i].Keyboard {
			return false
		}
	}
	return true
}

// rollbackAndReplay drops every local snapshot from the server's
// seq_num onward, re-seeds at that tick with the authoritative players,
// then replays the dropped ticks' recorded inputs through the physics
// step to rebuild state up to the latest local tick. Grounded on
// Client::RollbackAndReplay, with its erase-then-search-the-erased-range
// bug (the original searches for seqNum == serverState.seqNum only
// *after* already erasing every entry with seqNum >= serverState.seqNum,
// so the replay path it guards could never execute) fixed: here the
// dropped suffix is captured before history is mutated further.
func (c *Client) rollbackAndReplay(server model.GameStateSnapshot) {
	dropped := c.history.DropFrom(server.SeqNum)

	seeded := model.GameStateSnapshot{
		SeqNum:    server.SeqNum,
		DeltaTime: server.DeltaTime,
		Players:   append([]model.PlayerState(nil), server.Players...),
	}
	c.history.Append(seeded)

	previous := seeded
	for _, snap := range dropped {
		if snap.SeqNum == server.SeqNum {
			continue
		}
		replay := model.GameStateSnapshot{SeqNum: snap.SeqNum, DeltaTime: snap.DeltaTime}
		for _, p := range snap.Players {
			if base, ok := findPlayer(previous.Players, p.PlayerID); ok {
				replay.Players = append(replay.Players, physics.Step(base, p.Keyboard, snap.DeltaTime))
			} else {
				replay.Players = append(replay.Players, p)
			}
		}
		c.history.Append(replay)
		previous = replay
	}

	c.pushIncoming(previous.Players)
}

func findPlayer(players []model.PlayerState, id uint8) (model.PlayerState, bool) {
	for _, p := range players {
		if p.PlayerID == id {
			return p, true
		}
	}
	return model.PlayerState{}, false
}
