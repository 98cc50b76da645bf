package hci

import (
	"encoding/binary"
	"fmt"

	"github.com/smallnest/ringbuffer"
)

// DefaultFramerCapacity holds a handful of maximum-size event packets.
const DefaultFramerCapacity = 4096

// Framer reassembles whole H4 packets from a byte stream that may split or
// coalesce them arbitrarily.
type Framer struct {
	buf     *ringbuffer.RingBuffer
	partial []byte
}

// NewFramer creates a framer buffering up to capacity bytes.
func NewFramer(capacity int) *Framer {
	if capacity <= 0 {
		capacity = DefaultFramerCapacity
	}
	return &Framer{buf: ringbuffer.New(capacity)}
}

// Write queues raw bytes read from the transport.
func (f *Framer) Write(p []byte) (int, error) {
	n, err := f.buf.Write(p)
	if n < len(p) {
		if err == nil {
			err = ringbuffer.ErrIsFull
		}
		return n, fmt.Errorf("hci framer overflow: dropped %d of %d bytes: %w", len(p)-n, len(p), err)
	}
	return n, nil
}

// Next returns the next complete packet, or ok=false if more bytes are needed.
// An unknown packet indicator desynchronises the stream; the framer drops
// everything buffered and returns ErrMalformedPacket.
func (f *Framer) Next() (pkt []byte, ok bool, err error) {
	if !f.fill(1) {
		return nil, false, nil
	}

	hdr, lenOff, lenSize := headerLayout(f.partial[0])
	if hdr == 0 {
		typ := f.partial[0]
		f.reset()
		return nil, false, fmt.Errorf("%w: packet indicator 0x%02X", ErrMalformedPacket, typ)
	}
	if !f.fill(hdr) {
		return nil, false, nil
	}

	var plen int
	if lenSize == 2 {
		plen = int(binary.LittleEndian.Uint16(f.partial[lenOff:]))
	} else {
		plen = int(f.partial[lenOff])
	}
	if !f.fill(hdr + plen) {
		return nil, false, nil
	}

	pkt = f.partial
	f.partial = nil
	return pkt, true, nil
}

// headerLayout returns the header size (indicator included) and where the
// payload length lives for each H4 packet type.
func headerLayout(indicator byte) (hdr, lenOff, lenSize int) {
	switch indicator {
	case PacketCommand:
		return 4, 3, 1
	case PacketACL:
		return 5, 3, 2
	case PacketSCO:
		return 4, 3, 1
	case PacketEvent:
		return 3, 2, 1
	default:
		return 0, 0, 0
	}
}

// fill grows partial to n bytes from the ring buffer. It reports whether
// partial now holds n bytes.
func (f *Framer) fill(n int) bool {
	for len(f.partial) < n {
		chunk := make([]byte, n-len(f.partial))
		got, err := f.buf.TryRead(chunk)
		if got > 0 {
			f.partial = append(f.partial, chunk[:got]...)
		}
		if got == 0 || err != nil {
			return len(f.partial) >= n
		}
	}
	return true
}

func (f *Framer) reset() {
	f.partial = nil
	f.buf.Reset()
}
