package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/printlink-core/internal/infrastructure/config"
	"github.com/nerrad567/printlink-core/internal/printer"
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Transport dials paho sessions against the cloud broker.
// It implements printer.Transport.
type Transport struct {
	cfg    config.MQTTConfig
	logger Logger

	// newClient is swapped in tests.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client
}

var _ printer.Transport = (*Transport)(nil)

// NewTransport creates a transport for the configured broker.
// A nil logger discards handler errors.
func NewTransport(cfg config.MQTTConfig, logger Logger) *Transport {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Transport{
		cfg:       cfg,
		logger:    logger,
		newClient: pahomqtt.NewClient,
	}
}

// Dial connects a new session with creds.
//
// Parameters:
//   - ctx: Bounds the wait for the broker's CONNACK
//   - creds: Device-scoped username and password
//   - events: Loss callbacks; Offline fires when the link drops
//
// Returns:
//   - printer.Session: Connected session with no subscriptions
//   - error: ErrConnectionFailed wrapping the broker or network error
func (t *Transport) Dial(ctx context.Context, creds printer.Credentials, events printer.SessionEvents) (printer.Session, error) {
	opts := buildClientOptions(t.cfg, creds)

	s := &Session{
		events: events,
		logger: t.logger,
	}
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		s.lost(err)
	})

	s.client = t.newClient(opts)
	if err := waitToken(ctx, s.client.Connect(), defaultConnectTimeout); err != nil {
		s.client.Disconnect(0)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return s, nil
}

// Session is one paho connection. It implements printer.Session.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - After Close, no handler or loss callback fires.
type Session struct {
	client pahomqtt.Client
	events printer.SessionEvents
	logger Logger

	closed atomic.Bool

	mu     sync.Mutex
	topics []string
}

// Subscribe registers handler for topic and waits for the SUBACK.
//
// paho delivers messages for this client from one goroutine in arrival
// order (OrderMatters), which is what printer.MessageHandler requires.
func (s *Session) Subscribe(ctx context.Context, topic string, qos byte, handler printer.MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if s.closed.Load() {
		return ErrSessionClosed
	}

	if err := waitToken(ctx, s.client.Subscribe(topic, qos, s.wrapHandler(handler)), defaultAckTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	s.mu.Lock()
	s.topics = append(s.topics, topic)
	s.mu.Unlock()
	return nil
}

// Publish sends payload and waits for transport-level delivery.
// Messages are never retained.
func (s *Session) Publish(ctx context.Context, topic string, payload []byte, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if s.closed.Load() {
		return ErrSessionClosed
	}

	if err := waitToken(ctx, s.client.Publish(topic, qos, false, payload), defaultAckTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Close unsubscribes every topic and disconnects. Calling Close more than
// once is safe.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.mu.Lock()
	topics := s.topics
	s.topics = nil
	s.mu.Unlock()

	if len(topics) > 0 && s.client.IsConnectionOpen() {
		token := s.client.Unsubscribe(topics...)
		if !token.WaitTimeout(defaultAckTimeout) {
			s.logger.Warn("mqtt unsubscribe timed out", "topics", topics)
		} else if err := token.Error(); err != nil {
			s.logger.Warn("mqtt unsubscribe failed", "error", err)
		}
	}

	s.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

// lost forwards a dropped connection to the Offline callback.
//
// paho reports keepalive failures, broker disconnects and read errors
// through the same connection-lost hook, so Error is never raised here.
func (s *Session) lost(err error) {
	if s.closed.Load() || s.events.Offline == nil {
		return
	}
	s.events.Offline(err)
}

// wrapHandler wraps a handler with panic recovery and drops messages that
// arrive after Close.
func (s *Session) wrapHandler(handler printer.MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		if s.closed.Load() {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("mqtt handler panic recovered",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}()
		handler(msg.Topic(), msg.Payload())
	}
}

// waitToken waits for token, ctx, or fallback, whichever ends first.
// fallback only applies when ctx carries no deadline.
func waitToken(ctx context.Context, token pahomqtt.Token, fallback time.Duration) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, fallback)
		defer cancel()
	}

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return ErrTimeout
		}
		return ctx.Err()
	}
}
