package printer

import (
	"context"
	"fmt"
)

// Capability field identifiers.
const (
	CapabilityLightChamber     = "onoff.light_chamber"
	CapabilityLightWork        = "onoff.light_work"
	CapabilityTempNozzle       = "measure_temperature.nozzle"
	CapabilityTempBed          = "measure_temperature.bed"
	CapabilityTempChamber      = "measure_temperature.chamber"
	CapabilityProgressPercent  = "bambu_progress_percentage"
	CapabilityProgressTimeLeft = "bambu_progress_time_remaining"
	CapabilityPrintLayers      = "bambu_print_layers"
	CapabilityPrintSpeed       = "bambu_print_speed"
)

const unitCelsius = "°C"

// capabilitySpec maps one capability field to its source in the snapshot.
type capabilitySpec struct {
	field  string
	meta   CapabilityMeta
	derive func(Snapshot) (any, bool)
}

// capabilityCatalogue lists every field the materializer knows, in the order
// they are written on each reaction.
var capabilityCatalogue = []capabilitySpec{
	{
		field:  CapabilityLightChamber,
		meta:   CapabilityMeta{Title: "Chamber Light"},
		derive: lightDerivation(LightChamber),
	},
	{
		field:  CapabilityLightWork,
		meta:   CapabilityMeta{Title: "Work Light"},
		derive: lightDerivation(LightWork),
	},
	{
		field:  CapabilityTempNozzle,
		meta:   CapabilityMeta{Title: "Nozzle Temperature", Unit: unitCelsius},
		derive: numberDerivation(fieldNozzleTemp),
	},
	{
		field:  CapabilityTempBed,
		meta:   CapabilityMeta{Title: "Bed Temperature", Unit: unitCelsius},
		derive: numberDerivation(fieldBedTemp),
	},
	{
		field:  CapabilityTempChamber,
		meta:   CapabilityMeta{Title: "Chamber Temperature", Unit: unitCelsius},
		derive: numberDerivation(fieldChamberTemp),
	},
	{
		field:  CapabilityProgressPercent,
		meta:   CapabilityMeta{Title: "Progress", Unit: "%"},
		derive: numberDerivation(fieldPercent),
	},
	{
		field: CapabilityProgressTimeLeft,
		meta:  CapabilityMeta{Title: "Time Remaining"},
		derive: func(s Snapshot) (any, bool) {
			minutes, ok := s.Number(sectionPrint, fieldRemainingTime)
			if !ok {
				return nil, false
			}
			return formatNumber(minutes) + " min", true
		},
	},
	{
		field: CapabilityPrintLayers,
		meta:  CapabilityMeta{Title: "Layers"},
		derive: func(s Snapshot) (any, bool) {
			layer, ok := s.Number(sectionPrint, fieldLayer)
			if !ok {
				return nil, false
			}
			total, ok := s.Number(sectionPrint, fieldTotalLayers)
			if !ok {
				return nil, false
			}
			return formatNumber(layer) + " / " + formatNumber(total), true
		},
	},
	{
		field: CapabilityPrintSpeed,
		meta:  CapabilityMeta{Title: "Print Speed"},
		derive: func(s Snapshot) (any, bool) {
			level, ok := s.Number(sectionPrint, fieldSpeedLevel)
			if !ok {
				return nil, false
			}
			return formatNumber(level), true
		},
	},
}

func numberDerivation(field string) func(Snapshot) (any, bool) {
	return func(s Snapshot) (any, bool) {
		n, ok := s.Number(sectionPrint, field)
		if !ok {
			return nil, false
		}
		return n, true
	}
}

func lightDerivation(node LightNode) func(Snapshot) (any, bool) {
	return func(s Snapshot) (any, bool) {
		mode, ok := lightMode(s, node)
		if !ok {
			return nil, false
		}
		return mode == "on", true
	}
}

// lightMode finds node in print.lights_report and returns its mode string.
func lightMode(s Snapshot, node LightNode) (string, bool) {
	lights, ok := s.Slice(sectionPrint, fieldLightsReport)
	if !ok {
		return "", false
	}
	for _, item := range lights {
		light, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if name, _ := light["node"].(string); name != string(node) {
			continue
		}
		mode, ok := light["mode"].(string)
		return mode, ok
	}
	return "", false
}

// Materializer provisions capability fields the first time their source data
// appears and writes current values on every reaction.
//
// It is driven only from the Device's message pipeline, which is serialised,
// so it keeps no locks of its own.
type Materializer struct {
	deviceID string
	store    CapabilityStore
	logger   Logger
	metrics  *deviceMetrics
}

// NewMaterializer creates a materializer writing to store.
func NewMaterializer(deviceID string, store CapabilityStore, logger Logger) *Materializer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Materializer{
		deviceID: deviceID,
		store:    store,
		logger:   logger,
		metrics:  metricsFor(deviceID),
	}
}

// Apply runs one materialization pass over the snapshot, writing the current
// value of every field whose source is present.
//
// Fields whose source is missing or mistyped are skipped. Store failures are
// logged per field and never stop the remaining fields.
func (m *Materializer) Apply(ctx context.Context, snapshot Snapshot) {
	for _, spec := range capabilityCatalogue {
		value, ok := spec.derive(snapshot)
		if !ok {
			continue
		}

		if !m.store.HasCapability(spec.field) {
			if err := m.store.AddCapability(ctx, spec.field, spec.meta); err != nil {
				m.fail("provisioning capability", spec.field, err)
				continue
			}
			m.logger.Info("capability provisioned", "device_id", m.deviceID, "capability", spec.field)
		}

		if err := m.store.SetCapabilityValue(ctx, spec.field, value); err != nil {
			m.fail("writing capability value", spec.field, err)
		}
	}
}

func (m *Materializer) fail(action, field string, err error) {
	m.metrics.storeFailures.Inc()
	m.logger.Error(action+" failed",
		"device_id", m.deviceID,
		"capability", field,
		"error", fmt.Errorf("%w: %w", ErrStore, err),
	)
}
