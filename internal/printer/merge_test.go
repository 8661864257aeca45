package printer

import (
	"errors"
	"reflect"
	"testing"
)

func mustParse(t *testing.T, payload string) map[string]any {
	t.Helper()
	fragment, err := ParseFragment([]byte(payload))
	if err != nil {
		t.Fatalf("ParseFragment(%s) error = %v", payload, err)
	}
	return fragment
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name   string
		target string
		source string
		want   string
	}{
		{
			name:   "first merge copies fragment",
			target: `{}`,
			source: `{"print":{"mc_percent":5,"gcode_state":"RUNNING"}}`,
			want:   `{"print":{"mc_percent":5,"gcode_state":"RUNNING"}}`,
		},
		{
			name:   "nested keys merge recursively",
			target: `{"print":{"mc_percent":5,"bed_temper":60}}`,
			source: `{"print":{"mc_percent":6}}`,
			want:   `{"print":{"mc_percent":6,"bed_temper":60}}`,
		},
		{
			name:   "sequences replace wholesale",
			target: `{"print":{"lights_report":[{"node":"chamber_light","mode":"on"},{"node":"work_light","mode":"on"}]}}`,
			source: `{"print":{"lights_report":[{"node":"chamber_light","mode":"off"}]}}`,
			want:   `{"print":{"lights_report":[{"node":"chamber_light","mode":"off"}]}}`,
		},
		{
			name:   "null replaces value",
			target: `{"print":{"job_id":"100"}}`,
			source: `{"print":{"job_id":null}}`,
			want:   `{"print":{"job_id":null}}`,
		},
		{
			name:   "mapping replaces scalar",
			target: `{"print":"legacy"}`,
			source: `{"print":{"mc_percent":1}}`,
			want:   `{"print":{"mc_percent":1}}`,
		},
		{
			name:   "scalar replaces mapping",
			target: `{"print":{"mc_percent":1}}`,
			source: `{"print":3}`,
			want:   `{"print":3}`,
		},
		{
			name:   "absent keys untouched",
			target: `{"print":{"mc_percent":1},"info":{"module":[]}}`,
			source: `{"print":{}}`,
			want:   `{"print":{"mc_percent":1},"info":{"module":[]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := mustParse(t, tt.target)
			Merge(target, mustParse(t, tt.source))
			if want := mustParse(t, tt.want); !reflect.DeepEqual(target, want) {
				t.Errorf("Merge() = %v, want %v", target, want)
			}
		})
	}
}

func TestMerge_Idempotent(t *testing.T) {
	fragment := `{"print":{"mc_percent":42,"lights_report":[{"node":"chamber_light","mode":"on"}],"ams":{"tray_now":"1"}}}`

	once := map[string]any{}
	Merge(once, mustParse(t, fragment))

	twice := map[string]any{}
	Merge(twice, mustParse(t, fragment))
	Merge(twice, mustParse(t, fragment))

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merging twice = %v, want %v", twice, once)
	}
}

func TestMerge_SequentialEqualsCombined(t *testing.T) {
	parts := []string{
		`{"print":{"nozzle_temper":210}}`,
		`{"print":{"bed_temper":60,"ams":{"tray_now":"2"}}}`,
		`{"print":{"mc_percent":10},"info":{"sn":"X"}}`,
	}
	combined := `{"print":{"nozzle_temper":210,"bed_temper":60,"ams":{"tray_now":"2"},"mc_percent":10},"info":{"sn":"X"}}`

	sequential := map[string]any{}
	for _, p := range parts {
		Merge(sequential, mustParse(t, p))
	}

	single := map[string]any{}
	Merge(single, mustParse(t, combined))

	if !reflect.DeepEqual(sequential, single) {
		t.Errorf("sequential = %v, combined = %v", sequential, single)
	}
}

func TestMerge_NilTarget(t *testing.T) {
	// Must not panic.
	Merge(nil, map[string]any{"a": 1.0})
}

func TestParseFragment_Rejects(t *testing.T) {
	for _, payload := range []string{``, `not json`, `[1,2]`, `"text"`, `null`, `{"print":`, `{"a":1} {"b":2}`} {
		if _, err := ParseFragment([]byte(payload)); !errors.Is(err, ErrParse) {
			t.Errorf("ParseFragment(%q) error = %v, want ErrParse", payload, err)
		}
	}
}

func TestParseFragment_Numbers(t *testing.T) {
	s := Snapshot(mustParse(t, `{"print":{"job_id":9007199254740993,"mc_percent":42,"nozzle_temper":210.5}}`))

	if id, _ := s.Identifier(sectionPrint, fieldJobID); id != "9007199254740993" {
		t.Errorf("Identifier(job_id) = %q, want every digit kept", id)
	}
	if v, _ := s.Lookup(sectionPrint, fieldPercent); v != 42.0 {
		t.Errorf("mc_percent = %#v, want float64 42", v)
	}
	if n, ok := s.Number(sectionPrint, "nozzle_temper"); !ok || n != 210.5 {
		t.Errorf("Number(nozzle_temper) = %v, %v", n, ok)
	}
	if n, ok := s.Number(sectionPrint, fieldJobID); !ok || n < 9e15 {
		t.Errorf("Number(job_id) = %v, %v", n, ok)
	}
}

func TestNormaliseFragment(t *testing.T) {
	fragment := mustParse(t, `{"print":{"gcode_state":" running "}}`)
	normaliseFragment(fragment)

	got, _ := Snapshot(fragment).String(sectionPrint, fieldGcodeState)
	if got != StateRunning {
		t.Errorf("gcode_state = %q, want %q", got, StateRunning)
	}
}

func TestSnapshot_Accessors(t *testing.T) {
	s := Snapshot(mustParse(t, `{"print":{"job_id":100,"task_id":"abc","mc_percent":0,"gcode_state":"IDLE","empty":""}}`))

	if id, ok := s.Identifier(sectionPrint, fieldJobID); !ok || id != "100" {
		t.Errorf("Identifier(job_id) = %q, %v; want \"100\", true", id, ok)
	}
	if id, ok := s.Identifier(sectionPrint, "task_id"); !ok || id != "abc" {
		t.Errorf("Identifier(task_id) = %q, %v", id, ok)
	}
	if _, ok := s.Identifier(sectionPrint, "empty"); ok {
		t.Error("Identifier(empty) should report not present")
	}
	if n, ok := s.Number(sectionPrint, fieldPercent); !ok || n != 0 {
		t.Errorf("Number(mc_percent) = %v, %v; want 0, true", n, ok)
	}
	if _, ok := s.Number(sectionPrint, fieldGcodeState); ok {
		t.Error("Number() on a string should report not present")
	}
	if _, ok := s.Lookup(sectionPrint, fieldGcodeState, "deeper"); ok {
		t.Error("Lookup() through a scalar should report not present")
	}
}

func TestSnapshot_CloneIsDeep(t *testing.T) {
	s := Snapshot(mustParse(t, `{"print":{"lights_report":[{"node":"chamber_light","mode":"on"}]}}`))
	clone := s.Clone()

	Merge(s, mustParse(t, `{"print":{"mc_percent":1}}`))
	lights, _ := s.Slice(sectionPrint, fieldLightsReport)
	lights[0].(map[string]any)["mode"] = "off"

	if _, ok := clone.Number(sectionPrint, fieldPercent); ok {
		t.Error("clone picked up a later merge")
	}
	if mode, _ := lightMode(clone, LightChamber); mode != "on" {
		t.Errorf("clone light mode = %q, want on", mode)
	}
}
