package frame

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
)

// HeaderLen is the size of the big-endian length prefix on every frame.
const HeaderLen = 4

var (
	ErrShortHeader     = errors.New("frame: short length header")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrDetached        = errors.New("frame: stream detached")
	ErrNotDetached     = errors.New("frame: stream still attached")
)

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: 64 * 1024 * 1024}
}

// ReadFrame reads one length-prefixed payload.
func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	var hdr [HeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortHeader
		}
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > limits.MaxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// WriteFrame writes payload behind its length prefix in a single Write call.
func WriteFrame(w io.Writer, payload []byte, limits Limits) error {
	if uint64(len(payload)) > uint64(limits.MaxPayloadBytes) {
		return ErrPayloadTooLarge
	}
	buf := make([]byte, HeaderLen+len(payload))
	binary.BigEndian.PutUint32(buf[:HeaderLen], uint32(len(payload)))
	copy(buf[HeaderLen:], payload)
	_, err := w.Write(buf)
	return err
}

// Conn frames a duplex stream whose read and write ends can be swapped
// mid-connection, e.g. for a TLS upgrade after a plaintext handshake.
//
// ReadFrame must only be called from one goroutine. Detach and Attach are
// expected on that same goroutine between reads.
type Conn struct {
	limits Limits

	mu       sync.Mutex
	r        *bufio.Reader
	w        io.Writer
	detached bool
}

func NewConn(r io.Reader, w io.Writer, limits Limits) *Conn {
	return &Conn{
		limits: limits,
		r:      bufio.NewReader(r),
		w:      w,
	}
}

func (c *Conn) reader() (*bufio.Reader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		return nil, ErrDetached
	}
	return c.r, nil
}

func (c *Conn) ReadFrame() ([]byte, error) {
	r, err := c.reader()
	if err != nil {
		return nil, err
	}
	return ReadFrame(r, c.limits)
}

func (c *Conn) WriteFrame(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		return ErrDetached
	}
	return WriteFrame(c.w, payload, c.limits)
}

// Detach releases the current stream and returns any bytes already read
// from it but not yet consumed as frames. Reads and writes fail with
// ErrDetached until Attach.
func (c *Conn) Detach() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		return nil, ErrDetached
	}
	var pending []byte
	if n := c.r.Buffered(); n > 0 {
		pending = make([]byte, n)
		_, _ = io.ReadFull(c.r, pending)
	}
	c.detached = true
	c.r = nil
	c.w = nil
	return pending, nil
}

// Attach installs a new stream after Detach.
func (c *Conn) Attach(r io.Reader, w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.detached {
		return ErrNotDetached
	}
	c.r = bufio.NewReader(r)
	c.w = w
	c.detached = false
	return nil
}

// Replay returns conn with pending served ahead of any further reads.
func Replay(conn net.Conn, pending []byte) net.Conn {
	if len(pending) == 0 {
		return conn
	}
	return &replayConn{Conn: conn, r: io.MultiReader(bytes.NewReader(pending), conn)}
}

type replayConn struct {
	net.Conn
	r io.Reader
}

func (c *replayConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
