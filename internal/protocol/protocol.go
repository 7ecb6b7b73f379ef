package protocol

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	logs "github.com/danmuck/libquassel/internal/logging"
	"github.com/danmuck/libquassel/internal/observability"
	"github.com/danmuck/libquassel/internal/protocol/frame"
)

// Protocol is the shared contract of the wire variants. Write, SetFlush,
// SendHeartbeat and SendInitRequest are safe for concurrent use; Run must be
// called exactly once.
type Protocol interface {
	ID() uint8
	Features() uint16
	Name() string

	Write(msg any) error
	SetFlush(flush bool)
	SendHeartbeat(at time.Time, reply bool) error
	SendInitRequest(className, objectName string) error

	Run(ctx context.Context) error
	Events() <-chan Event
	Close() error
}

// Options configures a Protocol at construction.
type Options struct {
	UseCompression bool
	UseTLS         bool
	// TLSConfig is used for the client side of the upgrade; nil accepts any
	// certificate.
	TLSConfig *tls.Config
	Limits    frame.Limits
	// ConnID tags log lines; optional.
	ConnID      string
	EventBuffer int
}

func (o Options) withDefaults() Options {
	if o.Limits.MaxPayloadBytes == 0 {
		o.Limits = frame.DefaultLimits()
	}
	if o.TLSConfig == nil {
		o.TLSConfig = &tls.Config{
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS10,
		}
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 64
	}
	return o
}

// base carries the state both variants share: the owned stream, its framing,
// the event channel, and the write lock that also guards stream upgrades and
// flush mode changes.
type base struct {
	name string
	opts Options
	log  logs.Scope

	streamMu sync.Mutex
	stream   net.Conn

	fc      *frame.Conn
	writeMu sync.Mutex
	// afterWrite runs under writeMu after every frame, e.g. a deflate flush.
	afterWrite func() error

	events    chan Event
	runOnce   sync.Once
	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

func (b *base) init(name string, stream net.Conn, opts Options) {
	connID := opts.ConnID
	if connID == "" {
		connID = stream.RemoteAddr().String()
	}
	b.name = name
	b.opts = opts
	b.log = logs.With("conn", connID)
	b.stream = stream
	b.events = make(chan Event, opts.EventBuffer)
	b.closed = make(chan struct{})
}

func (b *base) Name() string { return b.name }

func (b *base) Events() <-chan Event { return b.events }

func (b *base) currentStream() net.Conn {
	b.streamMu.Lock()
	defer b.streamMu.Unlock()
	return b.stream
}

func (b *base) swapStream(s net.Conn) {
	b.streamMu.Lock()
	b.stream = s
	b.streamMu.Unlock()
}

// Close tears down the stream and any codec or TLS session layered on it.
func (b *base) Close() error {
	b.closeOnce.Do(func() {
		close(b.closed)
		b.closeErr = b.currentStream().Close()
	})
	return b.closeErr
}

func (b *base) isClosed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}

func (b *base) writePayload(payload []byte, kind string) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if b.isClosed() {
		return ErrClosed
	}
	if err := b.fc.WriteFrame(payload); err != nil {
		return err
	}
	if b.afterWrite != nil {
		if err := b.afterWrite(); err != nil {
			return err
		}
	}
	observability.RecordFrame(b.name, "out", kind, len(payload))
	return nil
}

func (b *base) emit(ctx context.Context, ev Event) {
	select {
	case b.events <- ev:
	case <-ctx.Done():
	}
}

// run is the read pipeline: frames are decoded and classified one at a time
// on the calling goroutine, so emitted events keep wire order. It returns
// when the stream ends, fails, or ctx is cancelled, and always closes the
// stream and the event channel.
func (b *base) run(ctx context.Context, process func(ctx context.Context, payload []byte) error) error {
	started := false
	b.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("protocol: Run called twice")
	}
	defer close(b.events)
	stop := context.AfterFunc(ctx, func() { _ = b.Close() })
	defer stop()

	for {
		payload, err := b.fc.ReadFrame()
		if err != nil {
			return b.finish(ctx, err)
		}
		if err := process(ctx, payload); err != nil {
			return b.finish(ctx, err)
		}
	}
}

func (b *base) finish(ctx context.Context, err error) error {
	defer b.Close()
	switch {
	case ctx.Err() != nil:
		b.trySend(Event{Kind: EventClose})
		return ctx.Err()
	case errors.Is(err, io.EOF):
		b.log.Debugf("protocol.run stream ended proto=%s", b.name)
		b.emit(ctx, Event{Kind: EventEnd})
		b.emit(ctx, Event{Kind: EventClose})
		return nil
	case b.isClosed() || errors.Is(err, net.ErrClosed):
		b.emit(ctx, Event{Kind: EventClose})
		return nil
	default:
		b.log.Warnf("protocol.run stream error proto=%s err=%v", b.name, err)
		b.emit(ctx, Event{Kind: EventError, Err: err})
		b.emit(ctx, Event{Kind: EventClose})
		return err
	}
}

func (b *base) trySend(ev Event) {
	select {
	case b.events <- ev:
	default:
	}
}

func (b *base) decodeFailed(kind string, err error) {
	b.log.Warnf("protocol.decode dropped frame proto=%s err=%v", b.name, err)
	observability.RecordProtocolWarning(b.name, kind)
}

// upgradeTLS performs a client handshake over raw and returns the encrypted
// stream. It is not cancellable; closing the raw stream aborts it.
func upgradeTLS(name string, raw net.Conn, cfg *tls.Config) (net.Conn, error) {
	tc := tls.Client(raw, cfg)
	if err := tc.Handshake(); err != nil {
		observability.RecordTLSUpgrade(name, false)
		return nil, errors.Join(ErrTLSHandshake, err)
	}
	observability.RecordTLSUpgrade(name, true)
	return tc, nil
}
