package printer

import "fmt"

// Report field names used by the reaction pipeline.
const (
	sectionPrint = "print"

	fieldGcodeState    = "gcode_state"
	fieldJobID         = "job_id"
	fieldSubtaskName   = "subtask_name"
	fieldLightsReport  = "lights_report"
	fieldNozzleTemp    = "nozzle_temper"
	fieldBedTemp       = "bed_temper"
	fieldChamberTemp   = "chamber_temper"
	fieldPercent       = "mc_percent"
	fieldRemainingTime = "mc_remaining_time"
	fieldLayer         = "layer_num"
	fieldTotalLayers   = "total_layer_num"
	fieldSpeedLevel    = "spd_lvl"
	fieldAMS           = "ams"
)

// ReportTopic returns the topic the printer publishes its reports on.
//
// Example: device/01S00C123456789/report
func ReportTopic(deviceID string) string {
	return fmt.Sprintf("device/%s/report", deviceID)
}

// RequestTopic returns the topic commands are published to.
//
// Example: device/01S00C123456789/request
func RequestTopic(deviceID string) string {
	return fmt.Sprintf("device/%s/request", deviceID)
}
