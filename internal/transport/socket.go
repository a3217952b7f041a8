// Package transport provides a non-blocking datagram socket abstraction so
// the reliability/handshake/dispatcher packages never touch net.UDPConn
// directly. The dispatcher is generic over the Socket interface; tests use
// an in-memory fake (see memory.go) in place of a real kernel socket.
package transport

import (
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// recvBufferSize is the scratch allocation reused across Recv calls.
// Payloads larger than this are truncated and discarded per spec.
const recvBufferSize = 1024

// pollInterval is how far in the future we set the read deadline, so
// ReadFromUDP waits at most this long instead of blocking indefinitely; the
// resulting timeout stands in for the platform's EAGAIN/WSAEWOULDBLOCK and
// is reported as our WouldBlock sentinel.
const pollInterval = time.Millisecond

// Outcome tags the result of a Recv call.
type Outcome int

const (
	// Received indicates Bytes/Addr are populated with a valid datagram.
	Received Outcome = iota
	// WouldBlock indicates no datagram was waiting.
	WouldBlock
	// Errored indicates a transport-level failure occurred.
	Errored
)

// RecvResult is the outcome of a single Recv call.
type RecvResult struct {
	Outcome Outcome
	Bytes   []byte
	Addr    *net.UDPAddr
	Err     error
}

// Socket is the capability every component needing datagram I/O depends on.
// A real socket wraps *net.UDPConn; tests can substitute an in-memory
// implementation with the same shape.
type Socket interface {
	Send(b []byte, addr *net.UDPAddr) error
	Recv() RecvResult
	Close() error
	LocalAddr() *net.UDPAddr
}

// UDPSocket is the concrete Socket backed by a real kernel UDP socket.
type UDPSocket struct {
	conn   *net.UDPConn
	scratch []byte
}

// NewServerSocket binds to all local addresses on the given port.
func NewServerSocket(port int) (*UDPSocket, error) {
	addr := &net.UDPAddr{Port: port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "transport: bind port %d", port)
	}
	return newUDPSocket(conn), nil
}

// NewClientSocket resolves host:port into a peer address and creates an
// unconnected client socket on an ephemeral local port; callers pass the
// returned peer address to Send.
func NewClientSocket(host string, port int) (*UDPSocket, *net.UDPAddr, error) {
	peer, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "transport: resolve peer %s:%d", host, port)
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "transport: create client socket")
	}
	return newUDPSocket(conn), peer, nil
}

func newUDPSocket(conn *net.UDPConn) *UDPSocket {
	return &UDPSocket{conn: conn, scratch: make([]byte, recvBufferSize)}
}

// Send writes a full datagram. A short write is surfaced as an error since
// UDP sends are atomic and a partial write indicates an OS-level fault.
func (s *UDPSocket) Send(b []byte, addr *net.UDPAddr) error {
	n, err := s.conn.WriteToUDP(b, addr)
	if err != nil {
		return errors.Wrap(err, "transport: send")
	}
	if n != len(b) {
		return errors.Errorf("transport: partial write %d/%d bytes", n, len(b))
	}
	return nil
}

// Recv polls for one datagram, waiting at most pollInterval. A
// recvBufferSize scratch buffer is reused across calls; each datagram is
// copied out of it, so the returned slice stays valid after later Recv
// calls.
func (s *UDPSocket) Recv() RecvResult {
	if err := s.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
		return RecvResult{Outcome: Errored, Err: errors.Wrap(err, "transport: set deadline")}
	}

	n, addr, err := s.conn.ReadFromUDP(s.scratch)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return RecvResult{Outcome: WouldBlock}
		}
		return RecvResult{Outcome: Errored, Err: errors.Wrap(err, "transport: recv")}
	}

	out := make([]byte, n)
	copy(out, s.scratch[:n])
	return RecvResult{Outcome: Received, Bytes: out, Addr: addr}
}

func (s *UDPSocket) Close() error {
	return s.conn.Close()
}

func (s *UDPSocket) LocalAddr() *net.UDPAddr {
	addr, _ := s.conn.LocalAddr().(*net.UDPAddr)
	return addr
}
