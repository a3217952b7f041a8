package reliability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSequenceDiffForwardAndWrap(t *testing.T) {
	// P3: forward distance within half-space is literal.
	assert.Equal(t, uint16(1), SequenceDiff(10, 11))
	assert.Equal(t, uint16(100), SequenceDiff(1000, 1100))

	// S3: wraps at 65535 -> 0 yields a diff of 1.
	assert.Equal(t, uint16(1), SequenceDiff(65535, 0))
}

func TestComputeAckBitsLiteral(t *testing.T) {
	// S4: history {95,97,99}, ack 100 -> 0xA800_0000.
	history := []uint64{95, 97, 99}
	assert.Equal(t, uint32(0xA8000000), ComputeAckBits(history, 100))
}

func TestComputeAckBitsEmptyHistory(t *testing.T) {
	assert.Equal(t, uint32(0), ComputeAckBits(nil, 100))
}

func TestApplyAcksFirstAckWins(t *testing.T) {
	now := time.Now()
	var h SendHistory
	h.Append(95, now.Add(-30*time.Millisecond))
	h.Append(97, now.Add(-20*time.Millisecond))
	h.Append(99, now.Add(-10*time.Millisecond))
	h.Append(100, now)

	mean := h.ApplyAcks(100, 0xA8000000, now)
	assert.Greater(t, mean, time.Duration(0))

	for _, e := range h.Entries() {
		switch e.SeqNum {
		case 95, 97, 99, 100:
			assert.True(t, e.Acknowledged, "seq %d should be acknowledged", e.SeqNum)
		case 96, 98:
			assert.False(t, e.Acknowledged)
		}
	}

	// Re-applying the same ack must not double-count (first-ack-wins).
	mean2 := h.ApplyAcks(100, 0xA8000000, now.Add(time.Second))
	assert.Equal(t, time.Duration(0), mean2)
}

func TestSendHistoryEvictionCountsLoss(t *testing.T) {
	var h SendHistory
	base := time.Now()
	for i := 0; i < HistoryCap+5; i++ {
		h.Append(uint64(i), base.Add(time.Duration(i)*time.Millisecond))
	}
	assert.Len(t, h.Entries(), HistoryCap)
	assert.Equal(t, uint64(5), h.LostCount)
}

func TestRecvHistoryBoundedWindow(t *testing.T) {
	var h RecvHistory
	for i := 0; i < HistoryCap+5; i++ {
		h.Append(uint64(i))
	}
	assert.Len(t, h.Seqs(), HistoryCap)
	assert.False(t, h.Contains(0))
	assert.True(t, h.Contains(uint64(HistoryCap+4)))
}
