package protocol

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/danmuck/libquassel/internal/observability"
	"github.com/danmuck/libquassel/internal/protocol/frame"
	"github.com/danmuck/libquassel/internal/protocol/qtds"
)

const (
	LegacyID       uint8  = 0x01
	LegacyFeatures uint16 = 0
)

// Legacy is the older uncompressed variant. Each frame carries one QVariant
// and TLS, when enabled, is negotiated after the plaintext ClientInitAck.
type Legacy struct {
	base
	upgraded bool
}

var _ Protocol = (*Legacy)(nil)

func NewLegacy(stream net.Conn, opts Options) (*Legacy, error) {
	if stream == nil {
		return nil, ErrNilStream
	}
	if opts.UseCompression {
		return nil, ErrCompressionUnsupported
	}
	opts = opts.withDefaults()
	l := &Legacy{}
	l.init("legacy", stream, opts)
	l.fc = frame.NewConn(stream, stream, opts.Limits)
	l.log.Debugf("protocol.NewLegacy using legacy protocol tls=%v", opts.UseTLS)
	return l, nil
}

func (l *Legacy) ID() uint8        { return LegacyID }
func (l *Legacy) Features() uint16 { return LegacyFeatures }

func (l *Legacy) Write(msg any) error {
	payload, err := qtds.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedMessage, err)
	}
	return l.writePayload(payload, outboundKind(msg))
}

// SetFlush is a no-op: the legacy stream is never compressed.
func (l *Legacy) SetFlush(bool) {}

// SendHeartbeat sends the wall-clock time of day at second precision.
func (l *Legacy) SendHeartbeat(at time.Time, reply bool) error {
	return l.Write([]any{int32(heartbeatType(reply)), qtds.SecondsOfDay(at)})
}

func (l *Legacy) SendInitRequest(className, objectName string) error {
	return l.Write([]any{int32(InitRequest), className, objectName})
}

func (l *Legacy) Run(ctx context.Context) error {
	return l.run(ctx, l.process)
}

func (l *Legacy) process(ctx context.Context, payload []byte) error {
	v, err := qtds.Unmarshal(payload)
	if err != nil {
		l.decodeFailed("decode", err)
		return nil
	}
	switch m := v.(type) {
	case nil:
		l.log.Debugf("protocol.Legacy received null object")
		return nil
	case map[string]any:
		if _, ok := m["MsgType"]; ok {
			if m["MsgType"] == "ClientInitAck" {
				supported, _ := m["SupportsSSL"].(bool)
				if err := l.StartTLS(supported); err != nil {
					return err
				}
			}
			observability.RecordFrame(l.name, "in", string(EventMsgType), len(payload))
			l.emit(ctx, Event{Kind: EventMsgType, Message: m})
			return nil
		}
	case []any:
		if len(m) > 0 && IsNumeric(m[0]) {
			ev := classifyList(m, true)
			observability.RecordFrame(l.name, "in", string(ev.Kind), len(payload))
			l.emit(ctx, ev)
			return nil
		}
	}
	l.log.Debugf("protocol.Legacy unclassified frame type=%T", v)
	observability.RecordProtocolWarning(l.name, "unclassified")
	return nil
}

// StartTLS upgrades the live stream in place when TLS was requested and the
// core advertised support. Writes block until the upgrade completes; bytes
// already buffered by framing are handed to the TLS layer.
func (l *Legacy) StartTLS(supported bool) error {
	if !l.opts.UseTLS {
		return nil
	}
	if !supported {
		l.log.Warnf("protocol.Legacy.StartTLS core does not support TLS, staying in plaintext")
		observability.RecordProtocolWarning(l.name, "tls_not_offered")
		return nil
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if l.upgraded {
		return nil
	}
	pending, err := l.fc.Detach()
	if err != nil {
		return err
	}
	tc, err := upgradeTLS(l.name, frame.Replay(l.currentStream(), pending), l.opts.TLSConfig)
	if err != nil {
		return err
	}
	l.swapStream(tc)
	l.upgraded = true
	l.log.Infof("protocol.Legacy.StartTLS stream upgraded")
	return l.fc.Attach(tc, tc)
}

// Upgraded reports whether the stream is encrypted.
func (l *Legacy) Upgraded() bool {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return l.upgraded
}

func heartbeatType(reply bool) RequestType {
	if reply {
		return HeartBeatReply
	}
	return HeartBeat
}

func outboundKind(msg any) string {
	switch m := msg.(type) {
	case map[string]any:
		return string(EventMsgType)
	case []any:
		if len(m) > 0 {
			if n, ok := AsInt(m[0]); ok {
				return RequestType(n).String()
			}
		}
	}
	return "other"
}
