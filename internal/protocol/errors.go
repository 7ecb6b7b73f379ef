package protocol

import "errors"

var (
	ErrCompressionUnsupported = errors.New("protocol: compression is not supported by the legacy protocol")
	ErrUnsupportedMessage     = errors.New("protocol: unsupported outbound message")
	ErrUnknownProtocol        = errors.New("protocol: unknown protocol id")
	ErrNilStream              = errors.New("protocol: nil stream")
	ErrTLSHandshake           = errors.New("protocol: tls handshake failed")
	ErrClosed                 = errors.New("protocol: closed")
)
