package session

import (
	"bytes"
	"crypto/tls"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/libquassel/internal/testutil/testlog"
	"github.com/danmuck/libquassel/internal/testutil/tlstest"
)

func TestProbeWireLayout(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	offers := []Offer{{ID: 0x02}, {ID: 0x01}}
	if err := WriteProbe(&buf, FeatureTLS|FeatureCompression, offers); err != nil {
		t.Fatalf("write probe: %v", err)
	}
	want := []byte{
		0x42, 0xb3, 0x3f, 0x03,
		0x00, 0x00, 0x00, 0x02,
		0x80, 0x00, 0x00, 0x01,
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("expected %x, got %x", want, buf.Bytes())
	}

	features, got, err := ReadProbe(&buf)
	if err != nil {
		t.Fatalf("read probe: %v", err)
	}
	if !features.Has(FeatureTLS) || !features.Has(FeatureCompression) {
		t.Fatalf("unexpected features %x", features)
	}
	if len(got) != 2 || got[0].ID != 0x02 || got[1].ID != 0x01 {
		t.Fatalf("unexpected offers %+v", got)
	}
}

func TestProbeReplyRoundTrip(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	in := ProbeReply{Protocol: 0x02, ProtocolFeatures: 0x0102, ConnFeatures: FeatureCompression}
	if err := WriteProbeReply(&buf, in); err != nil {
		t.Fatalf("write reply: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0x02, 0x01, 0x02, 0x02}) {
		t.Fatalf("unexpected reply bytes %x", buf.Bytes())
	}
	out, err := ReadProbeReply(&buf)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if out != in {
		t.Fatalf("expected %+v, got %+v", in, out)
	}
}

func TestProbeRejectsBadMagic(t *testing.T) {
	testlog.Start(t)
	_, _, err := ReadProbe(bytes.NewReader([]byte{0xde, 0xad, 0xbe, 0xef}))
	if !errors.Is(err, ErrBadProbeMagic) {
		t.Fatalf("expected ErrBadProbeMagic, got %v", err)
	}
	if err := WriteProbe(&bytes.Buffer{}, 0, nil); !errors.Is(err, ErrNoOffers) {
		t.Fatalf("expected ErrNoOffers, got %v", err)
	}
}

func TestConfigFeatures(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	if cfg.Features() != FeatureTLS|FeatureCompression {
		t.Fatalf("unexpected default features %x", cfg.Features())
	}
	cfg.TLS.Enabled = false
	cfg.Compression = false
	if cfg.Features() != 0 {
		t.Fatalf("expected no features, got %x", cfg.Features())
	}
}

func TestValidateClientTransport(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	if err := cfg.ValidateClientTransport(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	cfg.TLS.InsecureSkipVerify = false
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSCAFileRequired) {
		t.Fatalf("expected ErrTLSCAFileRequired, got %v", err)
	}
	cfg = DefaultConfig()
	cfg.HeartbeatInterval = -1
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrInvalidTimeout) {
		t.Fatalf("expected ErrInvalidTimeout, got %v", err)
	}
}

func TestClientTLSConfigInsecureAllowsLegacyVersions(t *testing.T) {
	testlog.Start(t)
	cfg, err := ClientTLSConfig(TLSSettings{Enabled: true, InsecureSkipVerify: true})
	if err != nil {
		t.Fatalf("client tls config: %v", err)
	}
	if !cfg.InsecureSkipVerify || cfg.MinVersion != tls.VersionTLS10 {
		t.Fatalf("unexpected tls config: insecure=%v min=%x", cfg.InsecureSkipVerify, cfg.MinVersion)
	}
}

func TestClientTLSConfigLoadsCA(t *testing.T) {
	testlog.Start(t)
	ca := tlstest.NewCA(t)
	path := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(path, ca.CertPEM, 0o600); err != nil {
		t.Fatalf("write ca: %v", err)
	}
	cfg, err := ClientTLSConfig(TLSSettings{Enabled: true, CAFile: path, ServerName: "core.local"})
	if err != nil {
		t.Fatalf("client tls config: %v", err)
	}
	if cfg.RootCAs == nil || cfg.ServerName != "core.local" {
		t.Fatalf("expected root CAs and server name to be set")
	}

	bad := filepath.Join(t.TempDir(), "bad.pem")
	_ = os.WriteFile(bad, []byte("not a cert"), 0o600)
	if _, err := ClientTLSConfig(TLSSettings{Enabled: true, CAFile: bad}); !errors.Is(err, ErrTLSCAInvalid) {
		t.Fatalf("expected ErrTLSCAInvalid, got %v", err)
	}
}
