package transport

import "net"

// MemorySocket is an in-memory Socket used by tests to exercise the
// handshake/reliability/dispatcher packages without a real kernel socket.
// Two MemorySockets can be wired together with Pipe so packets sent on one
// are observed by Recv on the other.
type MemorySocket struct {
	self  *net.UDPAddr
	peer  *MemorySocket
	inbox chan RecvResult
	sent  []sentPacket
}

type sentPacket struct {
	bytes []byte
	addr  *net.UDPAddr
}

// NewMemorySocket creates a standalone in-memory socket bound to addr.
func NewMemorySocket(addr *net.UDPAddr) *MemorySocket {
	return &MemorySocket{self: addr, inbox: make(chan RecvResult, 256)}
}

// Pipe connects a and b so that sends on one arrive as Recv results on the
// other, addressed from the sender's own local address.
func Pipe(a, b *MemorySocket) {
	a.peer = b
	b.peer = a
}

func (m *MemorySocket) Send(b []byte, addr *net.UDPAddr) error {
	out := make([]byte, len(b))
	copy(out, b)
	m.sent = append(m.sent, sentPacket{bytes: out, addr: addr})
	if m.peer != nil && addrEqual(addr, m.peer.self) {
		m.peer.inbox <- RecvResult{Outcome: Received, Bytes: out, Addr: m.self}
	}
	return nil
}

func (m *MemorySocket) Recv() RecvResult {
	select {
	case r := <-m.inbox:
		return r
	default:
		return RecvResult{Outcome: WouldBlock}
	}
}

func (m *MemorySocket) Close() error {
	return nil
}

func (m *MemorySocket) LocalAddr() *net.UDPAddr {
	return m.self
}

// Sent returns every datagram passed to Send, for assertions in tests.
func (m *MemorySocket) Sent() []([]byte) {
	out := make([][]byte, len(m.sent))
	for i, p := range m.sent {
		out[i] = p.bytes
	}
	return out
}

func addrEqual(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IP.Equal(b.IP) && a.Port == b.Port
}
