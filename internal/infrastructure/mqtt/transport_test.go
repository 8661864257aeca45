package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/printlink-core/internal/infrastructure/config"
	"github.com/nerrad567/printlink-core/internal/printer"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeToken struct {
	err  error
	done chan struct{}
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func pendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeClient struct {
	opts *pahomqtt.ClientOptions

	connectToken   pahomqtt.Token
	subscribeToken pahomqtt.Token
	publishToken   pahomqtt.Token

	mu           sync.Mutex
	handlers     map[string]pahomqtt.MessageHandler
	published    []string
	unsubscribed []string
	disconnected bool
}

func (c *fakeClient) IsConnected() bool      { return !c.disconnected }
func (c *fakeClient) IsConnectionOpen() bool { return !c.disconnected }
func (c *fakeClient) Connect() pahomqtt.Token {
	if c.connectToken != nil {
		return c.connectToken
	}
	return doneToken(nil)
}
func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}
func (c *fakeClient) Publish(topic string, _ byte, _ bool, _ interface{}) pahomqtt.Token {
	c.mu.Lock()
	c.published = append(c.published, topic)
	c.mu.Unlock()
	if c.publishToken != nil {
		return c.publishToken
	}
	return doneToken(nil)
}
func (c *fakeClient) Subscribe(topic string, _ byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	if c.subscribeToken != nil {
		return c.subscribeToken
	}
	c.mu.Lock()
	c.handlers[topic] = cb
	c.mu.Unlock()
	return doneToken(nil)
}
func (c *fakeClient) SubscribeMultiple(map[string]byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return doneToken(nil)
}
func (c *fakeClient) Unsubscribe(topics ...string) pahomqtt.Token {
	c.mu.Lock()
	c.unsubscribed = append(c.unsubscribed, topics...)
	c.mu.Unlock()
	return doneToken(nil)
}
func (c *fakeClient) AddRoute(string, pahomqtt.MessageHandler) {}
func (c *fakeClient) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.ClientOptionsReader{}
}

func (c *fakeClient) deliver(topic string, payload string) {
	c.mu.Lock()
	h := c.handlers[topic]
	c.mu.Unlock()
	if h != nil {
		h(c, fakeMessage{topic: topic, payload: []byte(payload)})
	}
}

func testMQTTConfig() config.MQTTConfig {
	return config.MQTTConfig{Host: "us.mqtt.bambulab.com", Port: 8883, TLS: true, KeepAlive: 30}
}

func newFakeTransport(client *fakeClient) *Transport {
	tr := NewTransport(testMQTTConfig(), nil)
	tr.newClient = func(opts *pahomqtt.ClientOptions) pahomqtt.Client {
		client.opts = opts
		if client.handlers == nil {
			client.handlers = make(map[string]pahomqtt.MessageHandler)
		}
		return client
	}
	return tr
}

var testCreds = printer.Credentials{Username: "u_1234", Password: "token"}

// =============================================================================
// Options
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	opts := buildClientOptions(testMQTTConfig(), testCreds)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://us.mqtt.bambulab.com:8883" {
		t.Errorf("Servers = %v, want ssl://us.mqtt.bambulab.com:8883", opts.Servers)
	}
	if !strings.HasPrefix(opts.ClientID, clientIDPrefix) {
		t.Errorf("ClientID = %q, want prefix %q", opts.ClientID, clientIDPrefix)
	}
	if opts.Username != "u_1234" || opts.Password != "token" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if opts.AutoReconnect || opts.ConnectRetry {
		t.Error("auto reconnect must be disabled")
	}
	if !opts.CleanSession {
		t.Error("CleanSession = false, want true")
	}
	if opts.KeepAlive != 30 {
		t.Errorf("KeepAlive = %d, want 30", opts.KeepAlive)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS 1.2 minimum not configured")
	}

	other := buildClientOptions(testMQTTConfig(), testCreds)
	if other.ClientID == opts.ClientID {
		t.Error("client IDs must be unique per session")
	}
}

func TestBuildClientOptionsPlainTCP(t *testing.T) {
	cfg := testMQTTConfig()
	cfg.TLS = false
	cfg.KeepAlive = 0

	opts := buildClientOptions(cfg, testCreds)
	if opts.Servers[0].Scheme != "tcp" {
		t.Errorf("scheme = %q, want tcp", opts.Servers[0].Scheme)
	}
	if opts.KeepAlive != int64(defaultKeepAlive/time.Second) {
		t.Errorf("KeepAlive = %d, want default", opts.KeepAlive)
	}
}

// =============================================================================
// Session
// =============================================================================

func TestDialFailure(t *testing.T) {
	client := &fakeClient{connectToken: doneToken(errors.New("not authorised"))}
	tr := newFakeTransport(client)

	_, err := tr.Dial(context.Background(), testCreds, printer.SessionEvents{})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Dial() error = %v, want ErrConnectionFailed", err)
	}
	if !client.disconnected {
		t.Error("failed dial must release the client")
	}
}

func TestDialHonoursContext(t *testing.T) {
	client := &fakeClient{connectToken: pendingToken()}
	tr := newFakeTransport(client)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := tr.Dial(ctx, testCreds, printer.SessionEvents{})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Dial() error = %v, want ErrTimeout", err)
	}
}

func TestSessionSubscribeAndDeliver(t *testing.T) {
	client := &fakeClient{}
	tr := newFakeTransport(client)

	session, err := tr.Dial(context.Background(), testCreds, printer.SessionEvents{})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	var got []string
	handler := func(topic string, payload []byte) {
		got = append(got, topic+"="+string(payload))
	}
	if err := session.Subscribe(context.Background(), "device/x/report", 1, handler); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	client.deliver("device/x/report", "a")
	client.deliver("device/x/report", "b")
	if len(got) != 2 || got[0] != "device/x/report=a" || got[1] != "device/x/report=b" {
		t.Errorf("delivered = %v", got)
	}

	if err := session.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	client.deliver("device/x/report", "c")
	if len(got) != 2 {
		t.Error("message delivered after Close")
	}
	if len(client.unsubscribed) != 1 || client.unsubscribed[0] != "device/x/report" {
		t.Errorf("unsubscribed = %v", client.unsubscribed)
	}
	if !client.disconnected {
		t.Error("Close() did not disconnect")
	}
	if err := session.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestSessionHandlerPanicRecovered(t *testing.T) {
	client := &fakeClient{}
	tr := newFakeTransport(client)

	session, err := tr.Dial(context.Background(), testCreds, printer.SessionEvents{})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer session.Close()

	if err := session.Subscribe(context.Background(), "t", 0, func(string, []byte) { panic("boom") }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	client.deliver("t", "x")
}

func TestSessionValidation(t *testing.T) {
	client := &fakeClient{}
	tr := newFakeTransport(client)
	ctx := context.Background()

	session, err := tr.Dial(ctx, testCreds, printer.SessionEvents{})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	noop := func(string, []byte) {}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"subscribe empty topic", session.Subscribe(ctx, "", 1, noop), ErrInvalidTopic},
		{"subscribe bad qos", session.Subscribe(ctx, "t", 3, noop), ErrInvalidQoS},
		{"subscribe nil handler", session.Subscribe(ctx, "t", 1, nil), ErrSubscribeFailed},
		{"publish empty topic", session.Publish(ctx, "", nil, 1), ErrInvalidTopic},
		{"publish bad qos", session.Publish(ctx, "t", nil, 3), ErrInvalidQoS},
		{"publish oversized", session.Publish(ctx, "t", make([]byte, maxPayloadSize+1), 1), ErrPublishFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}

	session.Close()
	if err := session.Publish(ctx, "t", []byte("{}"), 1); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Publish() after Close error = %v, want ErrSessionClosed", err)
	}
	if err := session.Subscribe(ctx, "t", 1, noop); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Subscribe() after Close error = %v, want ErrSessionClosed", err)
	}
}

func TestSessionPublishFailure(t *testing.T) {
	client := &fakeClient{publishToken: doneToken(errors.New("broken pipe"))}
	tr := newFakeTransport(client)

	session, err := tr.Dial(context.Background(), testCreds, printer.SessionEvents{})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer session.Close()

	if err := session.Publish(context.Background(), "device/x/request", []byte("{}"), 1); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
	}
}

func TestSessionSubscribeFailure(t *testing.T) {
	client := &fakeClient{subscribeToken: doneToken(errors.New("not authorised"))}
	tr := newFakeTransport(client)

	session, err := tr.Dial(context.Background(), testCreds, printer.SessionEvents{})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer session.Close()

	err = session.Subscribe(context.Background(), "t", 1, func(string, []byte) {})
	if !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe() error = %v, want ErrSubscribeFailed", err)
	}
}

func TestSessionConnectionLost(t *testing.T) {
	client := &fakeClient{}
	tr := newFakeTransport(client)

	var lost []error
	session, err := tr.Dial(context.Background(), testCreds, printer.SessionEvents{
		Offline: func(err error) { lost = append(lost, err) },
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	client.opts.OnConnectionLost(client, errors.New("pingresp not received"))
	if len(lost) != 1 {
		t.Fatalf("Offline calls = %d, want 1", len(lost))
	}

	session.Close()
	client.opts.OnConnectionLost(client, errors.New("late"))
	if len(lost) != 1 {
		t.Error("Offline fired after Close")
	}
}
