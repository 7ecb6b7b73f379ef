package session

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrTLSCAFileRequired = errors.New("session: tls ca file required when verification is enabled")
	ErrTLSCAInvalid      = errors.New("session: tls ca file contains no certificates")
	ErrInvalidTimeout    = errors.New("session: timeouts must not be negative")
)

func (c Config) ValidateClientTransport() error {
	if c.ConnectTimeout < 0 || c.HandshakeTimeout < 0 || c.HeartbeatInterval < 0 || c.IdleFlushAfter < 0 {
		return ErrInvalidTimeout
	}
	if c.TLS.Enabled && !c.TLS.InsecureSkipVerify && strings.TrimSpace(c.TLS.CAFile) == "" {
		return ErrTLSCAFileRequired
	}
	return nil
}

// ClientTLSConfig builds the client side of an in-place TLS upgrade. The
// minimum version is lowered to TLS 1.0 so older cores can still negotiate.
func ClientTLSConfig(s TLSSettings) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS10,
		InsecureSkipVerify: s.InsecureSkipVerify,
		ServerName:         strings.TrimSpace(s.ServerName),
	}
	if s.InsecureSkipVerify {
		return cfg, nil
	}
	caPath := strings.TrimSpace(s.CAFile)
	if caPath == "" {
		return nil, ErrTLSCAFileRequired
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("session: read tls ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, ErrTLSCAInvalid
	}
	cfg.RootCAs = pool
	return cfg, nil
}
