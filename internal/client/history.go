package client

import "github.com/janne-rocket/rocket-net/internal/model"

// predictionHistory is the client's local record of predicted ticks,
// kept ordered ascending by SeqNum, used to reconcile against the
// server's authoritative snapshots. Grounded on original_source's
// Client::m_gameStateSnapshot; unlike the original, DropFrom returns the
// dropped suffix so the caller can replay it (see reconcile.go), since
// the original's own replay path searched the already-erased range and
// could never run.
type predictionHistory struct {
	snapshots []model.GameStateSnapshot
}

// Append records a new tick, assumed to carry a SeqNum greater than any
// previously appended (true for both straight-line prediction and the
// re-seeded/replayed snapshots reconcile.go builds).
func (h *predictionHistory) Append(s model.GameStateSnapshot) {
	h.snapshots = append(h.snapshots, s)
}

// Last returns the most recently appended snapshot.
func (h *predictionHistory) Last() (model.GameStateSnapshot, bool) {
	if len(h.snapshots) == 0 {
		return model.GameStateSnapshot{}, false
	}
	return h.snapshots[len(h.snapshots)-1], true
}

// FindBySeq looks up the snapshot with the given SeqNum.
func (h *predictionHistory) FindBySeq(seq uint64) (model.GameStateSnapshot, bool) {
	for _, s := range h.snapshots {
		if s.SeqNum == seq {
			return s, true
		}
	}
	return model.GameStateSnapshot{}, false
}

// DropFrom removes every snapshot with SeqNum >= seq and returns the
// dropped suffix, ordered ascending.
func (h *predictionHistory) DropFrom(seq uint64) []model.GameStateSnapshot {
	cut := len(h.snapshots)
	for i, s := range h.snapshots {
		if s.SeqNum >= seq {
			cut = i
			break
		}
	}
	dropped := append([]model.GameStateSnapshot(nil), h.snapshots[cut:]...)
	h.snapshots = h.snapshots[:cut]
	return dropped
}
