package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementCapability = "printer_capability"
	measurementPrintEvent = "print_event"
	measurementAMS        = "ams"
)

// WritePrinterMetric records one numeric capability sample.
//
// Parameters:
//   - deviceID: Printer serial
//   - field: Capability field (e.g., "progress_percentage")
//   - value: The sample
func (c *Client) WritePrinterMetric(deviceID, field string, value float64) {
	c.write(measurementCapability,
		map[string]string{"device_id": deviceID, "field": field},
		map[string]any{"value": value},
	)
}

// WritePrinterState records a non-numeric capability sample, such as the
// print speed level.
func (c *Client) WritePrinterState(deviceID, field, state string) {
	c.write(measurementCapability,
		map[string]string{"device_id": deviceID, "field": field},
		map[string]any{"state": state},
	)
}

// WritePrintEvent records a fired print trigger.
func (c *Client) WritePrintEvent(deviceID, event, state, jobID string) {
	fields := map[string]any{"state": state}
	if jobID != "" {
		fields["job_id"] = jobID
	}
	c.write(measurementPrintEvent,
		map[string]string{"device_id": deviceID, "event": event},
		fields,
	)
}

// WriteAMSMetric records the climate of one AMS unit. Nil readings are
// omitted; nothing is written when both are nil.
func (c *Client) WriteAMSMetric(deviceID, unitID string, humidity, temperature *float64) {
	fields := make(map[string]any, 2)
	if humidity != nil {
		fields["humidity"] = *humidity
	}
	if temperature != nil {
		fields["temperature"] = *temperature
	}
	if len(fields) == 0 {
		return
	}
	c.write(measurementAMS,
		map[string]string{"device_id": deviceID, "unit": unitID},
		fields,
	)
}

// CapabilityChanged records a changed capability value. Numbers are
// written as metrics, booleans as 0 or 1, strings as states. Other
// values are ignored.
func (c *Client) CapabilityChanged(deviceID, field string, value any) {
	switch v := value.(type) {
	case float64:
		c.WritePrinterMetric(deviceID, field, v)
	case int:
		c.WritePrinterMetric(deviceID, field, float64(v))
	case bool:
		n := 0.0
		if v {
			n = 1
		}
		c.WritePrinterMetric(deviceID, field, n)
	case string:
		c.WritePrinterState(deviceID, field, v)
	}
}

func (c *Client) write(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
