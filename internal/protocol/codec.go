package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxPayloadBytes bounds the declared payload length of a frame. A
// stream that desynchronizes would otherwise ask us to allocate an
// arbitrary amount of memory from garbage length bytes.
const MaxPayloadBytes = 1 << 20 // 1 MiB

// headerBytes is the fixed frame header size: 1 type byte + 4 length bytes.
const headerBytes = 5

// ErrProtocol is returned when a frame is structurally invalid: unknown
// type byte, negative length, or length above MaxPayloadBytes. The
// stream position is undefined after this error; callers must treat the
// connection as dead. Resynchronizing by skipping bytes is unsafe and
// deliberately unsupported.
var ErrProtocol = errors.New("protocol error")

// Encode writes m as a single frame to w.
//
// Postcondition: Exactly 5+len(m.Data) bytes are written, or an error
// is returned with the stream in an undefined state.
func Encode(w io.Writer, m Message) error {
	if len(m.Data) > MaxPayloadBytes {
		return fmt.Errorf("%w: payload %d bytes exceeds cap %d", ErrProtocol, len(m.Data), MaxPayloadBytes)
	}

	buf := make([]byte, headerBytes+len(m.Data))
	buf[0] = byte(m.Type)
	binary.BigEndian.PutUint32(buf[1:headerBytes], uint32(len(m.Data)))
	copy(buf[headerBytes:], m.Data)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// Reader decodes frames from a stream and supports a non-blocking
// probe for a complete buffered frame.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r for frame decoding.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 8192)}
}

// Decode blocks until one full frame has been read or the stream ends.
//
// Postcondition: Returns the decoded message; ErrProtocol (wrapped) on
// a malformed frame; io.EOF if the stream ended cleanly between
// frames; io.ErrUnexpectedEOF if it ended mid-frame.
func (r *Reader) Decode() (Message, error) {
	typeByte, err := r.br.ReadByte()
	if err != nil {
		return Message{}, err
	}

	t := MsgType(typeByte)
	if !t.Valid() {
		return Message{}, fmt.Errorf("%w: unknown message type %d", ErrProtocol, typeByte)
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(r.br, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Message{}, err
	}

	length := int32(binary.BigEndian.Uint32(lenBuf[:]))
	if length < 0 || length > MaxPayloadBytes {
		return Message{}, fmt.Errorf("%w: invalid payload length %d", ErrProtocol, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Message{}, err
	}

	return Message{Type: t, Data: string(payload)}, nil
}

// HasFrame reports whether a complete frame is already buffered, so a
// subsequent Decode will not block on the underlying stream. It never
// reads from the underlying stream itself.
//
// A buffered frame with a malformed header still reports true: Decode
// must run to surface the ErrProtocol.
func (r *Reader) HasFrame() bool {
	buffered := r.br.Buffered()
	if buffered < headerBytes {
		return false
	}

	header, err := r.br.Peek(headerBytes)
	if err != nil {
		return false
	}

	if !MsgType(header[0]).Valid() {
		return true
	}
	length := int32(binary.BigEndian.Uint32(header[1:headerBytes]))
	if length < 0 || length > MaxPayloadBytes {
		return true
	}
	return buffered >= headerBytes+int(length)
}
