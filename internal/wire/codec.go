// Package wire implements the CRC32-protected datagram framing shared by the client, server, and echo processes.
//
// Layout: CRC32 (4B, big-endian) | Kind (1B) | payload. The CRC covers a
// fixed 0xFE magic byte followed by everything after the CRC field itself,
// so random non-protocol traffic is rejected rather than mistaken for a
// malformed packet.
package wire

import (
	"encoding/binary"
	"hash/crc32"
	"math"

	"github.com/pkg/errors"
)

const (
	crcSize = 4
	magic   = 0xFE

	// HandshakePaddedSize is the total wire size of ConnectionRequest and
	// ChallengeResponse packets, padded to defeat amplification.
	HandshakePaddedSize = 1000
)

// ErrShortPacket is returned when a reader runs past the end of the buffer.
var ErrShortPacket = errors.New("wire: read past end of packet")

// ErrCRCMismatch is returned when a packet's CRC does not validate.
var ErrCRCMismatch = errors.New("wire: crc mismatch")

var crcTable = crc32.MakeTable(crc32.IEEE)

func computeCRC(rest []byte) uint32 {
	h := crc32.New(crcTable)
	h.Write([]byte{magic})
	h.Write(rest)
	return h.Sum32()
}

// ValidateCRC reports whether data carries a CRC32 matching
// CRC32(magic || data[4:]).
func ValidateCRC(data []byte) bool {
	if len(data) < crcSize {
		return false
	}
	want := binary.BigEndian.Uint32(data[:crcSize])
	return want == computeCRC(data[crcSize:])
}

// Writer builds a single outbound packet: a reserved 4-byte CRC slot
// followed by appended fields. Finish computes and fills in the CRC.
type Writer struct {
	buf []byte
}

// NewWriter starts a packet of the given kind.
func NewWriter(kind Kind) *Writer {
	w := &Writer{buf: make([]byte, crcSize, 64)}
	w.WriteUint8(uint8(kind))
	return w
}

// Clear truncates the writer back to the reserved CRC slot and writes the
// given kind byte, ready for reuse (mirrors the teacher's buffer-reuse pattern instead of allocating a
// fresh writer per outbound packet).
func (w *Writer) Clear(kind Kind) {
	w.buf = w.buf[:crcSize]
	w.WriteUint8(uint8(kind))
}

func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteUint16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *Writer) WriteUint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteUint64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *Writer) WriteInt64(v int64) {
	w.WriteUint64(uint64(v))
}

// WriteFixed writes a float32 as a fixed-point i32 (value * 1000, rounded).
func (w *Writer) WriteFixed(v float32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(EncodeFixed(v)))
}

func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Pad appends zero bytes until the packet reaches exactly total bytes. It is
// a no-op (not a truncation) if the packet is already that size or larger.
func (w *Writer) Pad(total int) {
	for len(w.buf) < total {
		w.buf = append(w.buf, 0)
	}
}

// Len returns the current packet size, including the CRC slot.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Finish computes the CRC over the assembled packet and returns the final
// wire bytes. The writer should not be reused after calling Finish without
// first calling Clear.
func (w *Writer) Finish() []byte {
	crc := computeCRC(w.buf[crcSize:])
	binary.BigEndian.PutUint32(w.buf[:crcSize], crc)
	return w.buf
}

// Reader walks a received datagram with a cursor, after CRC validation and
// kind extraction have already happened via Decode.
type Reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte, pos int) *Reader {
	return &Reader{buf: buf, pos: pos}
}

func (r *Reader) require(n int) error {
	if r.pos+n > len(r.buf) {
		return ErrShortPacket
	}
	return nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	if err := r.require(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.require(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.require(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.require(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadFixed reads a fixed-point i32 and returns it as a float32 (value /
// 1000).
func (r *Reader) ReadFixed() (float32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return DecodeFixed(int32(v)), nil
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// EncodeFixed converts a float32 into the wire fixed-point representation
// (multiply by 1000, round to the nearest integer).
func EncodeFixed(v float32) int32 {
	return int32(math.Round(float64(v) * 1000))
}

// DecodeFixed converts a wire fixed-point integer back into a float32
// (divide by 1000).
func DecodeFixed(v int32) float32 {
	return float32(v) / 1000.0
}

// Header is the result of decoding a datagram's envelope: CRC validated,
// kind extracted.
type Header struct {
	Kind Kind
}

// Decode validates a datagram's CRC and extracts its packet kind, returning
// a Reader positioned just after the kind byte. Per spec, any CRC mismatch
// or undersized datagram is a decode failure; the caller drops the packet.
func Decode(data []byte) (Header, *Reader, error) {
	if len(data) < crcSize+1 {
		return Header{}, nil, ErrShortPacket
	}
	if !ValidateCRC(data) {
		return Header{}, nil, ErrCRCMismatch
	}
	kind := Kind(data[crcSize])
	return Header{Kind: kind}, newReader(data, crcSize+1), nil
}
