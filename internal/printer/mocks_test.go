package printer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

// mockStore records provisioning and value writes.
type mockStore struct {
	mu          sync.Mutex
	provisioned map[string]CapabilityMeta
	addCalls    map[string]int
	values      map[string]any
	writes      map[string]int
	failSet     map[string]error
	failAdd     map[string]error
}

func newMockStore() *mockStore {
	return &mockStore{
		provisioned: make(map[string]CapabilityMeta),
		addCalls:    make(map[string]int),
		values:      make(map[string]any),
		writes:      make(map[string]int),
		failSet:     make(map[string]error),
		failAdd:     make(map[string]error),
	}
}

func (m *mockStore) HasCapability(field string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.provisioned[field]
	return ok
}

func (m *mockStore) AddCapability(_ context.Context, field string, meta CapabilityMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls[field]++
	if err := m.failAdd[field]; err != nil {
		return err
	}
	m.provisioned[field] = meta
	return nil
}

func (m *mockStore) SetCapabilityValue(_ context.Context, field string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes[field]++
	if err := m.failSet[field]; err != nil {
		return err
	}
	m.values[field] = value
	return nil
}

func (m *mockStore) value(field string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[field]
	return v, ok
}

func (m *mockStore) adds(field string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addCalls[field]
}

// mockTasks serves a fixed task list and cover images.
type mockTasks struct {
	mu         sync.Mutex
	tasks      []Task
	err        error
	images     map[string][]byte
	fetchErr   error
	calls      int
	fetchCalls int
	release    chan struct{} // when set, GetTasks blocks until closed
}

func (m *mockTasks) GetTasks(ctx context.Context, _ string, _ int) ([]Task, error) {
	m.mu.Lock()
	m.calls++
	release := m.release
	m.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]Task, len(m.tasks))
	copy(out, m.tasks)
	return out, nil
}

func (m *mockTasks) FetchBinary(_ context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	data, ok := m.images[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (m *mockTasks) lookups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockDispatcher captures fired trigger events.
type mockDispatcher struct {
	mu     sync.Mutex
	events []TriggerEvent
}

func (m *mockDispatcher) Fire(_ context.Context, event TriggerEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockDispatcher) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.events))
	for i, e := range m.events {
		names[i] = e.Name
	}
	return names
}

// mockAvailability records availability changes.
type mockAvailability struct {
	mu      sync.Mutex
	changes []bool
	reasons []string
}

func (m *mockAvailability) AvailabilityChanged(_ string, available bool, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, available)
	m.reasons = append(m.reasons, reason)
}

type staticCredentials struct {
	creds Credentials
	err   error
}

func (s staticCredentials) Credentials(context.Context) (Credentials, error) {
	return s.creds, s.err
}

// published is one message sent through a mock session.
type published struct {
	Topic   string
	Payload map[string]any
	QoS     byte
}

// mockSession is a fake pub/sub session.
type mockSession struct {
	mu         sync.Mutex
	creds      Credentials
	events     SessionEvents
	handlers   map[string]MessageHandler
	published  []published
	closed     bool
	publishErr error
}

func (s *mockSession) Subscribe(_ context.Context, topic string, _ byte, handler MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[topic] = handler
	return nil
}

func (s *mockSession) Publish(_ context.Context, topic string, payload []byte, qos byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("session closed")
	}
	if s.publishErr != nil {
		return s.publishErr
	}
	var parsed map[string]any
	_ = json.Unmarshal(payload, &parsed)
	s.published = append(s.published, published{Topic: topic, Payload: parsed, QoS: qos})
	return nil
}

func (s *mockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// deliver simulates an inbound message on topic.
func (s *mockSession) deliver(topic, payload string) {
	s.mu.Lock()
	handler := s.handlers[topic]
	s.mu.Unlock()
	if handler != nil {
		handler(topic, []byte(payload))
	}
}

func (s *mockSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *mockSession) messages() []published {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]published, len(s.published))
	copy(out, s.published)
	return out
}

// mockTransport hands out mock sessions.
type mockTransport struct {
	mu           sync.Mutex
	sessions     []*mockSession
	dialErr      error
	subscribeErr error
}

func (t *mockTransport) Dial(_ context.Context, creds Credentials, events SessionEvents) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dialErr != nil {
		return nil, t.dialErr
	}
	s := &mockSession{creds: creds, events: events, handlers: make(map[string]MessageHandler)}
	t.sessions = append(t.sessions, s)
	if t.subscribeErr != nil {
		return &failingSubscribe{mockSession: s, err: t.subscribeErr}, nil
	}
	return s, nil
}

func (t *mockTransport) setDialErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dialErr = err
}

func (t *mockTransport) dials() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

func (t *mockTransport) session(i int) *mockSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions[i]
}

type failingSubscribe struct {
	*mockSession
	err error
}

func (f *failingSubscribe) Subscribe(context.Context, string, byte, MessageHandler) error {
	return f.err
}

// ─── Helpers ────────────────────────────────────────────────────────────────

const testDeviceID = "01S00C123456789"

type testRig struct {
	device       *Device
	transport    *mockTransport
	store        *mockStore
	tasks        *mockTasks
	dispatcher   *mockDispatcher
	availability *mockAvailability
}

func newTestRig(t *testing.T, tasks *mockTasks) *testRig {
	t.Helper()
	rig := &testRig{
		transport:    &mockTransport{},
		store:        newMockStore(),
		tasks:        tasks,
		dispatcher:   &mockDispatcher{},
		availability: &mockAvailability{},
	}
	opts := DeviceOptions{
		DeviceID:       testDeviceID,
		Transport:      rig.transport,
		Credentials:    staticCredentials{creds: Credentials{Username: "u_1", Password: "token"}},
		Capabilities:   rig.store,
		Triggers:       rig.dispatcher,
		Availability:   rig.availability,
		ReconnectDelay: 20 * time.Millisecond,
	}
	if tasks != nil {
		opts.Tasks = tasks
	}
	dev, err := NewDevice(opts)
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}
	t.Cleanup(func() { dev.Close() })
	rig.device = dev
	return rig
}

// report delivers payload on the report topic of the latest session.
func (r *testRig) report(t *testing.T, payload string) {
	t.Helper()
	n := r.transport.dials()
	if n == 0 {
		t.Fatal("no session dialled")
	}
	r.transport.session(n-1).deliver(ReportTopic(testDeviceID), payload)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
