// Package ledserial implements the LED serial protocol spoken between the
// meter and the microcontroller driving the LED bars.
//
// Every packet is a type byte followed by the packet body and a CRC32 (IEEE)
// checksum of the type byte and body. All integers are little endian.
package ledserial

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

// Endianness defines the endianness of the protocol.
var Endianness = binary.LittleEndian

// IncomingPacketType is a type of packet sent from the host to the device.
type IncomingPacketType uint8

const (
	TypeInitializePacket IncomingPacketType = iota
	TypeClearPacket
	TypeSetPacket
)

// String returns a string representation of the packet type.
func (t IncomingPacketType) String() string {
	switch t {
	case TypeInitializePacket:
		return "initialize"
	case TypeClearPacket:
		return "clear"
	case TypeSetPacket:
		return "set"
	default:
		return fmt.Sprintf("IncomingPacketType(%d)", t)
	}
}

// IncomingPacket is a packet sent from the host to the device.
type IncomingPacket interface {
	// Type returns the type of packet.
	Type() IncomingPacketType
}

// InitializePacket is a packet that initializes the LED strip.
type InitializePacket struct {
	NumLEDs uint16
}

// ClearPacket is a packet that clears the LED strip.
type ClearPacket struct{}

// SetPacket is a packet that sets the LED strip to the given colors. Pix has
// three bytes per LED.
type SetPacket struct {
	Pix []uint8
}

func (p InitializePacket) Type() IncomingPacketType { return TypeInitializePacket }
func (p ClearPacket) Type() IncomingPacketType      { return TypeClearPacket }
func (p SetPacket) Type() IncomingPacketType        { return TypeSetPacket }

// OutgoingPacketType is a type of packet sent from the device to the host.
type OutgoingPacketType uint8

const (
	TypeErrorPacket OutgoingPacketType = iota
	TypePanicPacket
	TypeLogPacket
	TypeAckPacket
)

// String returns a string representation of the packet type.
func (t OutgoingPacketType) String() string {
	switch t {
	case TypeErrorPacket:
		return "error"
	case TypePanicPacket:
		return "panic"
	case TypeLogPacket:
		return "log"
	case TypeAckPacket:
		return "ack"
	default:
		return fmt.Sprintf("OutgoingPacketType(%d)", t)
	}
}

// OutgoingPacket is a packet sent from the device to the host.
type OutgoingPacket interface {
	// Type returns the type of packet.
	Type() OutgoingPacketType
}

// ErrorPacket is a packet that indicates an error occurred.
type ErrorPacket struct {
	Message string
}

// PanicPacket is a packet that indicates the program cannot recover.
type PanicPacket struct {
	Message string
}

// LogPacket is a packet that contains a log message.
type LogPacket struct {
	Message string
}

// AckPacket is sent by the device once it has handled an incoming packet.
// For a SetPacket, this means the colors have been pushed out to the LEDs.
type AckPacket struct {
	IncomingPacketType IncomingPacketType
}

func (p ErrorPacket) Type() OutgoingPacketType { return TypeErrorPacket }
func (p PanicPacket) Type() OutgoingPacketType { return TypePanicPacket }
func (p LogPacket) Type() OutgoingPacketType   { return TypeLogPacket }
func (p AckPacket) Type() OutgoingPacketType   { return TypeAckPacket }

// ReadContext is the state of the LED strip. Data in this structure are
// required for the device to read incoming packets.
type ReadContext struct {
	// NumLEDs is the number of LEDs in the strip.
	NumLEDs uint16
}

// ChecksumError is returned when a packet's checksum does not match its
// contents.
type ChecksumError struct {
	Got, Want uint32
}

func (err *ChecksumError) Error() string {
	return fmt.Sprintf("packet checksum mismatch: got %08x, want %08x", err.Got, err.Want)
}

// ReadIncomingPacket reads an incoming packet from the given reader.
func ReadIncomingPacket(r io.Reader, context ReadContext) (IncomingPacket, error) {
	pr := newPacketReader(r)

	ptype, err := pr.readType()
	if err != nil {
		return nil, fmt.Errorf("failed to read incoming packet type: %w", err)
	}

	var packet IncomingPacket

	switch ptype := IncomingPacketType(ptype); ptype {
	case TypeInitializePacket:
		var p InitializePacket
		if err := binary.Read(pr, Endianness, &p); err != nil {
			return nil, fmt.Errorf("failed to read number of LEDs: %w", err)
		}
		packet = p

	case TypeClearPacket:
		packet = ClearPacket{}

	case TypeSetPacket:
		p := SetPacket{Pix: make([]uint8, 3*int(context.NumLEDs))}
		if _, err := io.ReadFull(pr, p.Pix); err != nil {
			return nil, fmt.Errorf("failed to read pixel data: %w", err)
		}
		packet = p

	default:
		return nil, fmt.Errorf("unknown packet type: %s", ptype)
	}

	if err := pr.verify(); err != nil {
		return nil, err
	}

	return packet, nil
}

// WriteIncomingPacket writes an incoming packet to the given writer.
func WriteIncomingPacket(w io.Writer, p IncomingPacket) error {
	pw := newPacketWriter(w)

	switch p := p.(type) {
	case InitializePacket:
		pw.write(TypeInitializePacket)
		pw.write(p)
	case ClearPacket:
		pw.write(TypeClearPacket)
	case SetPacket:
		pw.write(TypeSetPacket)
		pw.write(p.Pix)
	default:
		return fmt.Errorf("unknown packet type: %T", p)
	}

	return pw.finish()
}

// ReadOutgoingPacket reads an outgoing packet from the given reader.
func ReadOutgoingPacket(r io.Reader, context ReadContext) (OutgoingPacket, error) {
	pr := newPacketReader(r)

	ptype, err := pr.readType()
	if err != nil {
		return nil, fmt.Errorf("failed to read outgoing packet type: %w", err)
	}

	var packet OutgoingPacket

	switch ptype := OutgoingPacketType(ptype); ptype {
	case TypeErrorPacket:
		msg, err := pr.readString()
		if err != nil {
			return nil, fmt.Errorf("failed to read error message: %w", err)
		}
		packet = ErrorPacket{Message: msg}

	case TypePanicPacket:
		msg, err := pr.readString()
		if err != nil {
			return nil, fmt.Errorf("failed to read panic message: %w", err)
		}
		packet = PanicPacket{Message: msg}

	case TypeLogPacket:
		msg, err := pr.readString()
		if err != nil {
			return nil, fmt.Errorf("failed to read log message: %w", err)
		}
		packet = LogPacket{Message: msg}

	case TypeAckPacket:
		var p AckPacket
		if err := binary.Read(pr, Endianness, &p.IncomingPacketType); err != nil {
			return nil, fmt.Errorf("failed to read acked packet type: %w", err)
		}
		packet = p

	default:
		return nil, fmt.Errorf("unknown packet type: %s", ptype)
	}

	if err := pr.verify(); err != nil {
		return nil, err
	}

	return packet, nil
}

// WriteOutgoingPacket writes an outgoing packet to the given writer.
func WriteOutgoingPacket(w io.Writer, p OutgoingPacket) error {
	pw := newPacketWriter(w)

	switch p := p.(type) {
	case ErrorPacket:
		pw.write(TypeErrorPacket)
		pw.writeString(p.Message)
	case PanicPacket:
		pw.write(TypePanicPacket)
		pw.writeString(p.Message)
	case LogPacket:
		pw.write(TypeLogPacket)
		pw.writeString(p.Message)
	case AckPacket:
		pw.write(TypeAckPacket)
		pw.write(p.IncomingPacketType)
	default:
		return fmt.Errorf("unknown packet type: %T", p)
	}

	return pw.finish()
}

type packetReader struct {
	io.Reader
	raw  io.Reader
	hash hash.Hash32
}

func newPacketReader(r io.Reader) *packetReader {
	hash := crc32.NewIEEE()
	return &packetReader{
		Reader: io.TeeReader(r, hash),
		raw:    r,
		hash:   hash,
	}
}

func (r *packetReader) readType() (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *packetReader) readString() (string, error) {
	var length uint16
	if err := binary.Read(r, Endianness, &length); err != nil {
		return "", fmt.Errorf("failed to read length: %w", err)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// verify reads the trailing checksum. The checksum itself is not hashed.
func (r *packetReader) verify() error {
	want := r.hash.Sum32()

	var got uint32
	if err := binary.Read(r.raw, Endianness, &got); err != nil {
		return fmt.Errorf("failed to read packet checksum: %w", err)
	}

	if got != want {
		return &ChecksumError{Got: got, Want: want}
	}
	return nil
}

// packetWriter writes a packet while hashing it. The first error is kept and
// returned by finish.
type packetWriter struct {
	w    io.Writer
	hash hash.Hash32
	err  error
}

func newPacketWriter(w io.Writer) *packetWriter {
	hash := crc32.NewIEEE()
	return &packetWriter{
		w:    io.MultiWriter(w, hash),
		hash: hash,
	}
}

func (w *packetWriter) write(v any) {
	if w.err != nil {
		return
	}
	if b, ok := v.([]byte); ok {
		_, w.err = w.w.Write(b)
	} else {
		w.err = binary.Write(w.w, Endianness, v)
	}
	if w.err != nil {
		w.err = fmt.Errorf("failed to write packet: %w", w.err)
	}
}

func (w *packetWriter) writeString(s string) {
	if len(s) > 0xFFFF {
		s = s[:0xFFFF]
	}
	w.write(uint16(len(s)))
	w.write([]byte(s))
}

func (w *packetWriter) finish() error {
	if w.err != nil {
		return w.err
	}
	// Sum32 is taken before the checksum itself goes through the hash.
	if err := binary.Write(w.w, Endianness, w.hash.Sum32()); err != nil {
		return fmt.Errorf("failed to write packet checksum: %w", err)
	}
	return nil
}
