package wire

import "github.com/janne-rocket/rocket-net/internal/model"

// ConnectionRequest is the client's first handshake leg.
type ConnectionRequest struct {
	ClientSalt uint64
}

// EncodeConnectionRequest builds a ConnectionRequest packet padded to
// HandshakePaddedSize bytes.
func EncodeConnectionRequest(r ConnectionRequest) []byte {
	w := NewWriter(KindConnectionRequest)
	w.WriteUint64(r.ClientSalt)
	w.Pad(HandshakePaddedSize)
	return w.Finish()
}

func DecodeConnectionRequest(rd *Reader) (ConnectionRequest, error) {
	salt, err := rd.ReadUint64()
	return ConnectionRequest{ClientSalt: salt}, err
}

// Challenge is the server's reply to ConnectionRequest.
type Challenge struct {
	ClientSalt uint64
	ServerSalt uint64
}

func EncodeChallenge(c Challenge) []byte {
	w := NewWriter(KindChallenge)
	w.WriteUint64(c.ClientSalt)
	w.WriteUint64(c.ServerSalt)
	return w.Finish()
}

func DecodeChallenge(rd *Reader) (Challenge, error) {
	clientSalt, err := rd.ReadUint64()
	if err != nil {
		return Challenge{}, err
	}
	serverSalt, err := rd.ReadUint64()
	return Challenge{ClientSalt: clientSalt, ServerSalt: serverSalt}, err
}

// ChallengeResponse is the client's reply to Challenge.
type ChallengeResponse struct {
	ConnectionSalt uint64
}

func EncodeChallengeResponse(c ChallengeResponse) []byte {
	w := NewWriter(KindChallengeResponse)
	w.WriteUint64(c.ConnectionSalt)
	w.Pad(HandshakePaddedSize)
	return w.Finish()
}

func DecodeChallengeResponse(rd *Reader) (ChallengeResponse, error) {
	salt, err := rd.ReadUint64()
	return ChallengeResponse{ConnectionSalt: salt}, err
}

// ConnectionAccepted finalizes a successful handshake.
type ConnectionAccepted struct {
	PlayerID int64
}

func EncodeConnectionAccepted(c ConnectionAccepted) []byte {
	w := NewWriter(KindConnectionAccepted)
	w.WriteInt64(c.PlayerID)
	return w.Finish()
}

func DecodeConnectionAccepted(rd *Reader) (ConnectionAccepted, error) {
	id, err := rd.ReadInt64()
	return ConnectionAccepted{PlayerID: id}, err
}

// EncodeConnectionDenied builds a payload-less denial packet.
func EncodeConnectionDenied() []byte {
	return NewWriter(KindConnectionDenied).Finish()
}

// Clock is the client's clock-sync probe.
type Clock struct {
	ConnectionSalt uint64
	ClientTimeMs   int64
}

func EncodeClock(c Clock) []byte {
	w := NewWriter(KindClock)
	w.WriteUint64(c.ConnectionSalt)
	w.WriteInt64(c.ClientTimeMs)
	return w.Finish()
}

func DecodeClock(rd *Reader) (Clock, error) {
	salt, err := rd.ReadUint64()
	if err != nil {
		return Clock{}, err
	}
	t, err := rd.ReadInt64()
	return Clock{ConnectionSalt: salt, ClientTimeMs: t}, err
}

// ClockResponse carries the server's wall-clock reading.
type ClockResponse struct {
	ServerTimeMs int64
}

func EncodeClockResponse(c ClockResponse) []byte {
	w := NewWriter(KindClockResponse)
	w.WriteInt64(c.ServerTimeMs)
	return w.Finish()
}

func DecodeClockResponse(rd *Reader) (ClockResponse, error) {
	t, err := rd.ReadInt64()
	return ClockResponse{ServerTimeMs: t}, err
}

// Disconnect carries only the connection salt; sent ten times on shutdown.
type Disconnect struct {
	ConnectionSalt uint64
}

func EncodeDisconnect(d Disconnect) []byte {
	w := NewWriter(KindDisconnect)
	w.WriteUint64(d.ConnectionSalt)
	return w.Finish()
}

func DecodeDisconnect(rd *Reader) (Disconnect, error) {
	salt, err := rd.ReadUint64()
	return Disconnect{ConnectionSalt: salt}, err
}

// ReliabilityHeader is the connection salt plus the three reliability
// fields every post-handshake packet carries.
type ReliabilityHeader struct {
	ConnectionSalt uint64
	LocalSeq       uint16
	RemoteAck      uint16
	AckBits        uint32
}

func writeReliabilityHeader(w *Writer, h ReliabilityHeader) {
	w.WriteUint64(h.ConnectionSalt)
	w.WriteUint16(h.LocalSeq)
	w.WriteUint16(h.RemoteAck)
	w.WriteUint32(h.AckBits)
}

func readReliabilityHeader(rd *Reader) (ReliabilityHeader, error) {
	var h ReliabilityHeader
	var err error
	if h.ConnectionSalt, err = rd.ReadUint64(); err != nil {
		return h, err
	}
	if h.LocalSeq, err = rd.ReadUint16(); err != nil {
		return h, err
	}
	if h.RemoteAck, err = rd.ReadUint16(); err != nil {
		return h, err
	}
	if h.AckBits, err = rd.ReadUint32(); err != nil {
		return h, err
	}
	return h, nil
}

func writePlayerState(w *Writer, s model.PlayerState) {
	w.WriteUint8(s.PlayerID)
	w.WriteFixed(s.Pos.X)
	w.WriteFixed(s.Pos.Y)
	w.WriteFixed(s.Vel.X)
	w.WriteFixed(s.Vel.Y)
	w.WriteFixed(s.Speed)
	w.WriteFixed(s.Rotation)
	w.WriteUint8(uint8(s.Keyboard))
}

func readPlayerState(rd *Reader) (model.PlayerState, error) {
	var s model.PlayerState
	var err error
	if s.PlayerID, err = rd.ReadUint8(); err != nil {
		return s, err
	}
	if s.Pos.X, err = rd.ReadFixed(); err != nil {
		return s, err
	}
	if s.Pos.Y, err = rd.ReadFixed(); err != nil {
		return s, err
	}
	if s.Vel.X, err = rd.ReadFixed(); err != nil {
		return s, err
	}
	if s.Vel.Y, err = rd.ReadFixed(); err != nil {
		return s, err
	}
	if s.Speed, err = rd.ReadFixed(); err != nil {
		return s, err
	}
	if s.Rotation, err = rd.ReadFixed(); err != nil {
		return s, err
	}
	kb, err := rd.ReadUint8()
	if err != nil {
		return s, err
	}
	s.Keyboard = model.Keyboard(kb)
	return s, nil
}

// InputFrame is a client->server reliability-header-plus-state packet.
type InputFrame struct {
	Header ReliabilityHeader
	State  model.PlayerState
}

func EncodeInputFrame(f InputFrame) []byte {
	w := NewWriter(KindInputFrame)
	writeReliabilityHeader(w, f.Header)
	writePlayerState(w, f.State)
	return w.Finish()
}

func DecodeInputFrame(rd *Reader) (InputFrame, error) {
	h, err := readReliabilityHeader(rd)
	if err != nil {
		return InputFrame{}, err
	}
	s, err := readPlayerState(rd)
	if err != nil {
		return InputFrame{}, err
	}
	return InputFrame{Header: h, State: s}, nil
}

// GameState is a server->client reliability-header-plus-roster packet.
type GameState struct {
	Header  ReliabilityHeader
	Players []model.PlayerState
}

func EncodeGameState(g GameState) []byte {
	w := NewWriter(KindGameState)
	writeReliabilityHeader(w, g.Header)
	w.WriteUint8(uint8(len(g.Players)))
	for _, p := range g.Players {
		writePlayerState(w, p)
	}
	return w.Finish()
}

func DecodeGameState(rd *Reader) (GameState, error) {
	h, err := readReliabilityHeader(rd)
	if err != nil {
		return GameState{}, err
	}
	n, err := rd.ReadUint8()
	if err != nil {
		return GameState{}, err
	}
	players := make([]model.PlayerState, 0, n)
	for i := 0; i < int(n); i++ {
		p, err := readPlayerState(rd)
		if err != nil {
			return GameState{}, err
		}
		players = append(players, p)
	}
	return GameState{Header: h, Players: players}, nil
}
