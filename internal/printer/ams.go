package printer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AMS snapshot fields, under print.ams.
const (
	fieldAMSUnits   = "ams"
	fieldTrayNow    = "tray_now"
	amsHumidityBase = 6
)

// AMSTray is one filament slot of an AMS unit.
type AMSTray struct {
	ID    string `json:"id"`
	Color string `json:"color"`
	Type  string `json:"type"`
}

// AMSStatus is the view of one AMS unit.
type AMSStatus struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Humidity     *float64  `json:"humidity"`
	Temperature  *float64  `json:"temperature"`
	TrayLoadedID string    `json:"tray_loaded_id,omitempty"`
	Trays        []AMSTray `json:"trays"`
}

// AMSUnits returns every AMS unit present in the snapshot, in report order.
func AMSUnits(s Snapshot) []AMSStatus {
	units, ok := s.Slice(sectionPrint, fieldAMS, fieldAMSUnits)
	if !ok {
		return nil
	}
	trayNow, _ := s.Identifier(sectionPrint, fieldAMS, fieldTrayNow)

	out := make([]AMSStatus, 0, len(units))
	for i, item := range units {
		unit, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, amsStatus(i, unit, trayNow))
	}
	return out
}

// AMSUnit returns the AMS unit at index, or ErrAMSNotFound.
func AMSUnit(s Snapshot, index int) (AMSStatus, error) {
	units, _ := s.Slice(sectionPrint, fieldAMS, fieldAMSUnits)
	if index < 0 || index >= len(units) {
		return AMSStatus{}, fmt.Errorf("%w: %d", ErrAMSNotFound, index)
	}
	unit, ok := units[index].(map[string]any)
	if !ok {
		return AMSStatus{}, fmt.Errorf("%w: %d", ErrAMSNotFound, index)
	}
	trayNow, _ := s.Identifier(sectionPrint, fieldAMS, fieldTrayNow)
	return amsStatus(index, unit, trayNow), nil
}

func amsStatus(index int, unit map[string]any, trayNow string) AMSStatus {
	status := AMSStatus{
		ID:           identifierString(unit["id"]),
		Name:         "AMS " + strconv.Itoa(index+1),
		TrayLoadedID: trayNow,
		Trays:        []AMSTray{},
	}
	if status.ID == "" {
		status.ID = strconv.Itoa(index)
	}

	// The printer reports humidity as a 1 (wet) to 5 (dry) index; invert it
	// so a higher number means more humid.
	if h, ok := looseNumber(unit["humidity"]); ok {
		inverted := amsHumidityBase - h
		status.Humidity = &inverted
	}
	if t, ok := looseNumber(unit["temp"]); ok {
		status.Temperature = &t
	}

	trays, _ := unit["tray"].([]any)
	for _, item := range trays {
		tray, ok := item.(map[string]any)
		if !ok {
			continue
		}
		color, _ := tray["tray_color"].(string)
		if len(color) > 6 {
			color = color[:6]
		}
		trayType, _ := tray["tray_type"].(string)
		status.Trays = append(status.Trays, AMSTray{
			ID:    identifierString(tray["id"]),
			Color: "#" + color,
			Type:  trayType,
		})
	}
	return status
}

// looseNumber accepts a JSON number or a numeric string.
func looseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
