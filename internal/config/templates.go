package config

import (
	"fmt"
	"os"
)

// WriteTemplate writes a starter config to path.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(Template), 0o600)
}

const Template = `addr = "localhost:4242"
user = "quassel"
password = "change-me"

tls = true
tls_insecure = true
compression = true
protocols = ["datastream", "legacy"]

connect_timeout = "10s"
handshake_timeout = "30s"
heartbeat_interval = "30s"
idle_flush_after = "2s"
backlog_limit = 50

client_version = "quasselctl"
metrics_addr = ":9464"

[log]
level = "info"
json = false
no_color = false
timestamp = true
`
