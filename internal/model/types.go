// Package model holds the plain data types shared across the protocol,
// physics, and runtime packages: vectors, keyboard state, player state, and
// world snapshots. None of these types know how to serialize themselves —
// that is internal/wire's job — so this package stays free of any network
// dependency and is trivially unit-testable.
package model

// Vector2 is a 2D position or velocity.
type Vector2 struct {
	X, Y float32
}

// Keyboard packs the five input bits the protocol understands.
type Keyboard uint8

const (
	KeyUp    Keyboard = 0x01
	KeyDown  Keyboard = 0x02
	KeyLeft  Keyboard = 0x04
	KeyRight Keyboard = 0x08
	KeySpace Keyboard = 0x10
)

// Has reports whether the given bit(s) are set.
func (k Keyboard) Has(bit Keyboard) bool {
	return k&bit != 0
}

// PlayerState is one player's game-observable state for a single tick.
// Health and DeltaTime are carried in memory for gameplay bookkeeping but
// are not part of the wire representation (see internal/wire).
type PlayerState struct {
	PlayerID  uint8
	Pos       Vector2
	Vel       Vector2
	Speed     float32
	Rotation  float32
	Health    float32
	Keyboard  Keyboard
	DeltaTime float32
}

// GameStateSnapshot is one tick of world state: every player's PlayerState
// plus the sequence number and delta-time that produced it.
type GameStateSnapshot struct {
	SeqNum    uint64
	DeltaTime float32
	Players   []PlayerState
}

// Clone returns a deep copy of the snapshot's player slice so callers can
// mutate it without aliasing history entries.
func (s GameStateSnapshot) Clone() GameStateSnapshot {
	players := make([]PlayerState, len(s.Players))
	copy(players, s.Players)
	return GameStateSnapshot{SeqNum: s.SeqNum, DeltaTime: s.DeltaTime, Players: players}
}
