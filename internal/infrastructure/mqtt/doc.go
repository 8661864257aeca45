// Package mqtt implements the printer's cloud transport on paho.mqtt.golang.
//
// Each Dial opens one clean MQTT session with a fresh client ID and the
// device-scoped credentials supplied by the caller. Sessions never
// reconnect on their own: a lost link is reported once through the Offline
// callback and the printer link decides when to dial again.
//
// # Delivery
//
// Inbound messages are delivered one at a time, in arrival order. Handler
// panics are recovered and logged. Nothing is delivered after Close.
//
// # Security Considerations
//
//   - The cloud broker requires TLS; the minimum version is 1.2
//   - Credentials are never logged
//
// # Usage
//
//	transport := mqtt.NewTransport(cfg.Cloud.MQTT, log)
//	session, err := transport.Dial(ctx, creds, printer.SessionEvents{
//	    Offline: func(err error) { ... },
//	})
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
package mqtt
