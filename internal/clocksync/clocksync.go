// Package clocksync implements the client-driven wall-clock
// synchronization exchange: five Clock/ClockResponse round trips,
// averaged into a single offset and RTT estimate. Grounded on
// original_source's RocketConsole Client::SyncClock.
package clocksync

import (
	"net"
	"time"

	"github.com/janne-rocket/rocket-net/internal/logging"
	"github.com/janne-rocket/rocket-net/internal/transport"
	"github.com/janne-rocket/rocket-net/internal/wire"
)

// Samples is the number of round trips SyncClock attempts.
const Samples = 5

// roundTimeout bounds how long each sample waits for a reply before
// moving on without contributing a sample.
const roundTimeout = time.Second

// Result is the averaged outcome of a synchronization run.
type Result struct {
	ServerOffsetMs int64
	RoundTripMs    int64
	SamplesTaken   int
}

// Sync runs up to Samples round trips against serverAddr over sock,
// tagging every probe with connectionSalt. A round that times out or
// fails validation contributes no sample but does not abort the run;
// Sync only fails if every round comes up empty.
func Sync(sock transport.Socket, serverAddr *net.UDPAddr, connectionSalt uint64, logger logging.Logger) (Result, error) {
	var offsets []int64
	var roundTrips []int64

	for i := 0; i < Samples; i++ {
		offset, rtt, ok := sampleOnce(sock, serverAddr, connectionSalt, logger)
		if !ok {
			continue
		}
		offsets = append(offsets, offset)
		roundTrips = append(roundTrips, rtt)
	}

	if len(offsets) == 0 {
		return Result{}, errNoSamples
	}

	var offsetSum, rttSum int64
	for i := range offsets {
		offsetSum += offsets[i]
		rttSum += roundTrips[i]
	}

	result := Result{
		ServerOffsetMs: offsetSum / int64(len(offsets)),
		RoundTripMs:    rttSum / int64(len(roundTrips)),
		SamplesTaken:   len(offsets),
	}
	logger.Log(logging.DEBUG, "clock synchronized",
		logging.KV{Key: "offset_ms", Value: result.ServerOffsetMs},
		logging.KV{Key: "rtt_ms", Value: result.RoundTripMs},
		logging.KV{Key: "samples", Value: result.SamplesTaken})
	return result, nil
}

func sampleOnce(sock transport.Socket, serverAddr *net.UDPAddr, connectionSalt uint64, logger logging.Logger) (offsetMs, rttMs int64, ok bool) {
	sendAt := time.Now()
	sendEpochMs := sendAt.UnixMilli()

	datagram := wire.EncodeClock(wire.Clock{ConnectionSalt: connectionSalt, ClientTimeMs: sendEpochMs})
	if err := sock.Send(datagram, serverAddr); err != nil {
		logger.Log(logging.DEBUG, "clock sync send failed", logging.KV{Key: "error", Value: err})
		return 0, 0, false
	}

	deadline := sendAt.Add(roundTimeout)
	for time.Now().Before(deadline) {
		result := sock.Recv()
		switch result.Outcome {
		case transport.Received:
			if !sameAddr(result.Addr, serverAddr) {
				continue
			}
			header, rd, err := wire.Decode(result.Bytes)
			if err != nil || header.Kind != wire.KindClockResponse {
				continue
			}
			resp, err := wire.DecodeClockResponse(rd)
			if err != nil {
				continue
			}

			receiveAt := time.Now()
			receiveEpochMs := receiveAt.UnixMilli()
			rtt := receiveEpochMs - sendEpochMs

			offset1 := resp.ServerTimeMs - sendEpochMs - rtt/2
			offset2 := resp.ServerTimeMs - receiveEpochMs - rtt/2
			return (offset1 + offset2) / 2, rtt, true
		case transport.WouldBlock:
			time.Sleep(time.Millisecond)
			continue
		default:
			return 0, 0, false
		}
	}
	return 0, 0, false
}

func sameAddr(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IP.Equal(b.IP) && a.Port == b.Port
}

// Respond builds the server's reply to a Clock probe, stamping the
// server's own current wall-clock reading.
func Respond(now time.Time) []byte {
	return wire.EncodeClockResponse(wire.ClockResponse{ServerTimeMs: now.UnixMilli()})
}
