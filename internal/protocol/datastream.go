package protocol

import (
	"compress/zlib"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/danmuck/libquassel/internal/observability"
	"github.com/danmuck/libquassel/internal/protocol/frame"
	"github.com/danmuck/libquassel/internal/protocol/qtds"
)

const (
	DatastreamID       uint8  = 0x02
	DatastreamFeatures uint16 = 0
)

// Datastream is the newer variant. Frames carry a bare QVariantList; field
// maps travel as flat key/value lists. TLS is negotiated in the constructor
// and compression, when enabled, sits between the stream and framing.
type Datastream struct {
	base
	deflate *zlib.Writer
	// flush is guarded by writeMu.
	flush bool
}

var _ Protocol = (*Datastream)(nil)

// NewDatastream takes ownership of stream. On error the stream is left open.
func NewDatastream(stream net.Conn, opts Options) (*Datastream, error) {
	if stream == nil {
		return nil, ErrNilStream
	}
	opts = opts.withDefaults()
	conn := stream
	if opts.UseTLS {
		tc, err := upgradeTLS("datastream", stream, opts.TLSConfig)
		if err != nil {
			return nil, err
		}
		conn = tc
	}

	d := &Datastream{flush: true}
	d.init("datastream", conn, opts)
	if opts.UseCompression {
		d.deflate = zlib.NewWriter(conn)
		d.fc = frame.NewConn(&lazyInflater{src: conn}, d.deflate, opts.Limits)
		d.afterWrite = d.flushIfEnabled
	} else {
		d.fc = frame.NewConn(conn, conn, opts.Limits)
	}
	d.log.Debugf("protocol.NewDatastream using datastream protocol tls=%v compression=%v", opts.UseTLS, opts.UseCompression)
	return d, nil
}

func (d *Datastream) ID() uint8        { return DatastreamID }
func (d *Datastream) Features() uint16 { return DatastreamFeatures }

// Write flattens field maps into key/value lists. Lists that do not start
// with a number are logged and still written.
func (d *Datastream) Write(msg any) error {
	var list []any
	switch m := msg.(type) {
	case map[string]any:
		list = mapToList(m)
	case []any:
		if len(m) == 0 || !IsNumeric(m[0]) {
			d.log.Warnf("protocol.Datastream.Write list has to start with a number len=%d", len(m))
			observability.RecordProtocolWarning(d.name, "list_not_numeric")
		}
		list = m
	default:
		d.log.Warnf("protocol.Datastream.Write tried to write unknown value type=%T", msg)
		observability.RecordProtocolWarning(d.name, "unsupported_value")
		return fmt.Errorf("%w: %T", ErrUnsupportedMessage, msg)
	}
	payload, err := qtds.MarshalList(list)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedMessage, err)
	}
	return d.writePayload(payload, outboundKind(msg))
}

// SetFlush switches between flushing the deflate stream after every message
// and leaving output buffered. Turning flush on also flushes pending output.
func (d *Datastream) SetFlush(flush bool) {
	if d.deflate == nil {
		return
	}
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	d.flush = flush
	if flush && !d.isClosed() {
		if err := d.deflate.Flush(); err != nil {
			d.log.Warnf("protocol.Datastream.SetFlush flush failed err=%v", err)
		}
	}
}

// Flushing reports the current flush mode.
func (d *Datastream) Flushing() bool {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return d.deflate == nil || d.flush
}

func (d *Datastream) flushIfEnabled() error {
	if !d.flush {
		return nil
	}
	return d.deflate.Flush()
}

// SendHeartbeat sends a full date-time.
func (d *Datastream) SendHeartbeat(at time.Time, reply bool) error {
	return d.Write([]any{int32(heartbeatType(reply)), at})
}

func (d *Datastream) SendInitRequest(className, objectName string) error {
	return d.Write([]any{int32(InitRequest), className, []byte(objectName)})
}

func (d *Datastream) Run(ctx context.Context) error {
	return d.run(ctx, d.process)
}

func (d *Datastream) process(ctx context.Context, payload []byte) error {
	list, err := qtds.UnmarshalList(payload)
	if err != nil {
		d.decodeFailed("decode", err)
		return nil
	}
	if len(list) > 0 && IsNumeric(list[0]) {
		ev := classifyList(list, false)
		observability.RecordFrame(d.name, "in", string(ev.Kind), len(payload))
		d.emit(ctx, ev)
		return nil
	}
	m := listToMap(list)
	if _, ok := m["MsgType"]; ok {
		observability.RecordFrame(d.name, "in", string(EventMsgType), len(payload))
		d.emit(ctx, Event{Kind: EventMsgType, Message: m})
		return nil
	}
	d.log.Debugf("protocol.Datastream unclassified frame len=%d", len(list))
	observability.RecordProtocolWarning(d.name, "unclassified")
	return nil
}
