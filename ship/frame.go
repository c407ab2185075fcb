package ship

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including the
	// length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size.
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// FrameShipper writes records as length-prefixed msgpack frames, one
// frame per record. Suitable for piping sampled output to a collector
// process over a byte stream.
type FrameShipper struct {
	mu sync.Mutex
	w  io.Writer
}

// NewFrameShipper creates a frame shipper writing to w.
func NewFrameShipper(w io.Writer) *FrameShipper {
	return &FrameShipper{w: w}
}

// Ship encodes and writes each record as one frame. Frames within a
// batch are written in order; batches from concurrent emissions are
// serialized so frames never interleave.
func (f *FrameShipper) Ship(_ context.Context, records []Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range records {
		payload, err := msgpack.Marshal(&records[i])
		if err != nil {
			return fmt.Errorf("ship: encode record: %w", err)
		}
		if len(payload) > MaxPayloadSize {
			return fmt.Errorf("ship: record payload %d exceeds maximum %d", len(payload), MaxPayloadSize)
		}
		if _, err := f.w.Write(EncodeFrame(payload)); err != nil {
			return fmt.Errorf("ship: write frame: %w", err)
		}
	}
	return nil
}

// Close closes the underlying writer when it is an io.Closer.
func (f *FrameShipper) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Verify FrameShipper implements Shipper.
var _ Shipper = (*FrameShipper)(nil)

// EncodeFrame prefixes a payload with its 4-byte big-endian length.
func EncodeFrame(payload []byte) []byte {
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf
}

// FrameDecoder reads length-prefixed msgpack record frames from a
// stream. Counterpart to FrameShipper for collector processes.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a frame decoder. Wraps the reader with
// bufio.Reader to reduce syscall overhead on unbuffered sources.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &FrameDecoder{reader: br}
}

// ReadRecord reads and decodes a single record frame.
//
// Returns io.EOF when the stream ends cleanly between frames; a
// truncated or oversized frame is an error.
func (d *FrameDecoder) ReadRecord() (*Record, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(d.reader, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("ship: read length prefix: %w", err)
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, fmt.Errorf("ship: payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize)
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(d.reader, payload); err != nil {
		return nil, fmt.Errorf("ship: read payload: %w", err)
	}

	var rec Record
	if err := msgpack.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("ship: decode record: %w", err)
	}
	return &rec, nil
}
