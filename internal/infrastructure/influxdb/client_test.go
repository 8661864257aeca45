package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/printlink-core/internal/infrastructure/config"
	"github.com/nerrad567/printlink-core/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and records line protocol posted to /api/v2/write.
type fakeInflux struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping":
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			if line != "" {
				f.lines = append(f.lines, line)
			}
		}
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeInflux) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "printlink",
		Bucket:        "printlink",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func connect(t *testing.T) (*influxdb.Client, *fakeInflux) {
	t.Helper()

	fake := &fakeInflux{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := influxdb.Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, fake
}

func TestConnectDisabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnectUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := influxdb.Connect(context.Background(), testConfig(url))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestCapabilityChanged(t *testing.T) {
	client, fake := connect(t)

	client.CapabilityChanged("dev1", "progress_percentage", 42.0)
	client.CapabilityChanged("dev1", "light_chamber_state", true)
	client.CapabilityChanged("dev1", "bambu_print_speed", "sport")
	client.CapabilityChanged("dev1", "ignored", []any{1})
	client.Flush()

	lines := fake.written()
	if len(lines) != 3 {
		t.Fatalf("wrote %d lines, want 3: %v", len(lines), lines)
	}
	want := []string{
		"printer_capability,device_id=dev1,field=progress_percentage value=42",
		"printer_capability,device_id=dev1,field=light_chamber_state value=1",
		`printer_capability,device_id=dev1,field=bambu_print_speed state="sport"`,
	}
	for i, prefix := range want {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], prefix)
		}
	}
}

func TestWritePrintEventAndAMS(t *testing.T) {
	client, fake := connect(t)

	humidity := 2.0
	client.WritePrintEvent("dev1", "bambu_print_finished", "FINISH", "100")
	client.WriteAMSMetric("dev1", "0", &humidity, nil)
	client.WriteAMSMetric("dev1", "1", nil, nil)
	client.Flush()

	lines := fake.written()
	if len(lines) != 2 {
		t.Fatalf("wrote %d lines, want 2: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "print_event,device_id=dev1,event=bambu_print_finished ") ||
		!strings.Contains(lines[0], `job_id="100"`) {
		t.Errorf("event line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "ams,device_id=dev1,unit=0 humidity=2") {
		t.Errorf("ams line = %q", lines[1])
	}
}

func TestHealthCheck(t *testing.T) {
	client, _ := connect(t)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClose(t *testing.T) {
	client, fake := connect(t)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	client.WritePrinterMetric("dev1", "progress_percentage", 1)
	client.Flush()
	if n := len(fake.written()); n != 0 {
		t.Errorf("wrote %d lines after Close", n)
	}
}

func TestNilClient(t *testing.T) {
	var client *influxdb.Client
	if client.IsConnected() {
		t.Error("nil client reports connected")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	client.CapabilityChanged("dev1", "x", 1.0)
}
