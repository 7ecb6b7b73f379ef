package session

import "time"

// TLSSettings controls transport security toward a core.
type TLSSettings struct {
	Enabled bool
	// InsecureSkipVerify defaults to true: cores commonly present self-signed
	// certificates.
	InsecureSkipVerify bool
	ServerName         string
	CAFile             string
}

// Config defines connection timing and negotiated features.
type Config struct {
	ConnectTimeout    time.Duration
	HandshakeTimeout  time.Duration
	HeartbeatInterval time.Duration
	// IdleFlushAfter batches the snapshot burst after login: compressed
	// streams stop flushing per message when the session starts and resume
	// this long afterwards. Zero keeps flushing on every write.
	IdleFlushAfter time.Duration
	Compression    bool
	TLS            TLSSettings
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:    10 * time.Second,
		HandshakeTimeout:  30 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		IdleFlushAfter:    2 * time.Second,
		Compression:       true,
		TLS: TLSSettings{
			Enabled:            true,
			InsecureSkipVerify: true,
		},
	}
}

// Features returns the connection features to advertise in the probe.
func (c Config) Features() ConnFeature {
	var f ConnFeature
	if c.TLS.Enabled {
		f |= FeatureTLS
	}
	if c.Compression {
		f |= FeatureCompression
	}
	return f
}
