package protocol

import (
	"crypto/tls"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/danmuck/libquassel/internal/protocol/qtds"
	"github.com/danmuck/libquassel/internal/testutil/testlog"
	"github.com/danmuck/libquassel/internal/testutil/tlstest"
)

func TestLegacyRejectsCompression(t *testing.T) {
	testlog.Start(t)
	client, _ := pipe(t)
	p, err := NewLegacy(client, Options{UseCompression: true})
	if !errors.Is(err, ErrCompressionUnsupported) {
		t.Fatalf("expected ErrCompressionUnsupported, got %v", err)
	}
	if p != nil {
		t.Fatalf("expected no protocol on configuration error")
	}
}

func TestLegacyClassifiesFrames(t *testing.T) {
	testlog.Start(t)
	client, core := pipe(t)
	p, err := NewLegacy(client, Options{})
	if err != nil {
		t.Fatalf("new legacy: %v", err)
	}
	startRun(t, p)

	go func() {
		_ = sendVariant(core, map[string]any{"MsgType": "ClientInitAck", "SupportsSSL": true})
		_ = sendVariant(core, []any{
			int32(InitData), []byte("BufferSyncer"), nil,
			map[string]any{"LastSeenMsg": []any{}},
		})
		_ = sendVariant(core, []any{
			int32(Sync), []byte("IrcUser"), []byte("1/nick"), []byte("setAway"), true,
		})
		_ = sendVariant(core, []any{int32(HeartBeat), qtds.Time(3600000)})
	}()

	ev := nextEvent(t, p)
	if ev.Kind != EventMsgType || ev.MsgType() != "ClientInitAck" {
		t.Fatalf("unexpected event %+v", ev)
	}
	ev = nextEvent(t, p)
	if ev.Kind != EventInitData || ev.ClassName != "BufferSyncer" || ev.ObjectName != "" {
		t.Fatalf("unexpected initdata %+v", ev)
	}
	if _, ok := ev.Raw.(map[string]any); !ok || ev.Params == nil {
		t.Fatalf("expected raw map params, got %T", ev.Raw)
	}
	ev = nextEvent(t, p)
	if ev.Kind != EventStruct || len(ev.Frame) != 5 {
		t.Fatalf("unexpected struct %+v", ev)
	}
	ev = nextEvent(t, p)
	if rt, _ := ev.RequestType(); rt != HeartBeat {
		t.Fatalf("expected heartbeat struct, got %+v", ev)
	}
}

func TestLegacyHeartbeatUsesTimeOfDay(t *testing.T) {
	testlog.Start(t)
	client, core := pipe(t)
	p, err := NewLegacy(client, Options{})
	if err != nil {
		t.Fatalf("new legacy: %v", err)
	}
	at := time.Date(2024, 5, 1, 1, 2, 3, 400*int(time.Millisecond), time.UTC)

	got := readAsync(core)
	if err := p.SendHeartbeat(at, false); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	v, err := qtds.Unmarshal(await(t, got))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []any{int32(HeartBeat), qtds.Time(3723000)}
	if !reflect.DeepEqual(v, want) {
		t.Fatalf("expected %v, got %v", want, v)
	}

	got = readAsync(core)
	if err := p.SendInitRequest("Network", "1"); err != nil {
		t.Fatalf("init request: %v", err)
	}
	v, _ = qtds.Unmarshal(await(t, got))
	if !reflect.DeepEqual(v, []any{int32(InitRequest), "Network", "1"}) {
		t.Fatalf("unexpected init request %v", v)
	}
}

func TestLegacyStartTLSAfterClientInitAck(t *testing.T) {
	testlog.Start(t)
	client, core := pipe(t)
	ca := tlstest.NewCA(t)
	serverCfg := ca.ServerConfig(t, "core.local")

	p, err := NewLegacy(client, Options{UseTLS: true})
	if err != nil {
		t.Fatalf("new legacy: %v", err)
	}
	startRun(t, p)

	coreErr := make(chan error, 1)
	go func() {
		if err := sendVariant(core, map[string]any{"MsgType": "ClientInitAck", "SupportsSSL": true}); err != nil {
			coreErr <- err
			return
		}
		srv := tls.Server(core, serverCfg)
		if err := srv.Handshake(); err != nil {
			coreErr <- err
			return
		}
		coreErr <- sendVariant(srv, map[string]any{"MsgType": "ClientLoginAck"})
	}()

	ev := nextEvent(t, p)
	if ev.MsgType() != "ClientInitAck" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if !p.Upgraded() {
		t.Fatalf("expected stream to be upgraded before msgtype is emitted")
	}
	ev = nextEvent(t, p)
	if ev.MsgType() != "ClientLoginAck" {
		t.Fatalf("expected encrypted ClientLoginAck, got %+v", ev)
	}
	if err := <-coreErr; err != nil {
		t.Fatalf("core side: %v", err)
	}
}

func TestLegacyStartTLSNoopWhenDisabledOrUnsupported(t *testing.T) {
	testlog.Start(t)
	client, _ := pipe(t)
	p, err := NewLegacy(client, Options{})
	if err != nil {
		t.Fatalf("new legacy: %v", err)
	}
	if err := p.StartTLS(true); err != nil || p.Upgraded() {
		t.Fatalf("expected no-op without TLS requested, err=%v", err)
	}

	client2, _ := pipe(t)
	p2, err := NewLegacy(client2, Options{UseTLS: true})
	if err != nil {
		t.Fatalf("new legacy: %v", err)
	}
	if err := p2.StartTLS(false); err != nil || p2.Upgraded() {
		t.Fatalf("expected no-op when core lacks TLS, err=%v", err)
	}
}
