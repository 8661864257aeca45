package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/printlink-core/internal/infrastructure/config"
	"github.com/nerrad567/printlink-core/internal/printer"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for the CONNACK.
	defaultConnectTimeout = 10 * time.Second

	// defaultAckTimeout bounds SUBACK/PUBACK waits when the caller's
	// context has no deadline.
	defaultAckTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is used when the configured keepalive is not positive.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// maxPayloadSize caps outbound payloads (1MB).
	maxPayloadSize = 1 << 20

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12

	// clientIDPrefix prefixes the random per-session client ID.
	clientIDPrefix = "printlink-"
)

// buildClientOptions creates paho options for one cloud session.
//
// This configures:
//   - Broker URL (ssl:// or tcp:// based on the TLS setting)
//   - A fresh random client ID, so a stale session never collides
//   - Device-scoped credentials
//   - Clean session, no auto-reconnect (the printer link owns reconnects)
//   - Ordered delivery, one message at a time
func buildClientOptions(cfg config.MQTTConfig, creds printer.Credentials) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port))

	opts.SetClientID(clientIDPrefix + uuid.NewString())
	opts.SetUsername(creds.Username)
	opts.SetPassword(creds.Password)

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetOrderMatters(true)
	opts.SetConnectTimeout(defaultConnectTimeout)

	keepAlive := time.Duration(cfg.KeepAlive) * time.Second
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	opts.SetKeepAlive(keepAlive)

	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
			ServerName: cfg.Host,
		})
	}

	return opts
}
