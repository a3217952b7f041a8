package clocksync

import (
	"net"
	"testing"
	"time"

	"github.com/janne-rocket/rocket-net/internal/logging"
	"github.com/janne-rocket/rocket-net/internal/transport"
	"github.com/janne-rocket/rocket-net/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncAveragesOverSamples(t *testing.T) {
	clientAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 41000}
	serverAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 41001}

	clientSock := transport.NewMemorySocket(clientAddr)
	serverSock := transport.NewMemorySocket(serverAddr)
	transport.Pipe(clientSock, serverSock)

	done := make(chan Result, 1)
	errs := make(chan error, 1)
	go func() {
		res, err := Sync(clientSock, serverAddr, 0xABCD, logging.Nop{})
		if err != nil {
			errs <- err
			return
		}
		done <- res
	}()

	for i := 0; i < Samples; i++ {
		var probeBytes []byte
		require.Eventually(t, func() bool {
			sent := clientSock.Sent()
			if len(sent) <= i {
				return false
			}
			probeBytes = sent[i]
			return true
		}, 2*time.Second, time.Millisecond)

		_, rd, err := wire.Decode(probeBytes)
		require.NoError(t, err)
		probe, err := wire.DecodeClock(rd)
		require.NoError(t, err)
		assert.EqualValues(t, 0xABCD, probe.ConnectionSalt)

		require.NoError(t, serverSock.Send(Respond(time.Now()), clientAddr))
	}

	select {
	case res := <-done:
		assert.Equal(t, Samples, res.SamplesTaken)
	case err := <-errs:
		t.Fatalf("sync failed: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for Sync to return")
	}
}
