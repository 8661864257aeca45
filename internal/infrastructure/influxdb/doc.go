// Package influxdb records printer telemetry in InfluxDB v2.
//
// Capability changes, AMS climate readings and fired print events are
// written through the client's non-blocking batched write API. Telemetry
// is optional: when disabled, Connect returns ErrDisabled and the caller
// runs without it.
//
// Measurements:
//
//	printer_capability  tags: device_id, field   fields: value | state
//	print_event         tags: device_id, event   fields: state, job_id
//	ams                 tags: device_id, unit    fields: humidity, temperature
package influxdb
