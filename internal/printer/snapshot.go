package printer

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Snapshot is the cumulative, always-current view of a printer's state.
//
// It mirrors the report payload shape (for example a "print" section holding
// temperatures, progress and job fields). Values are what ParseFragment
// produced: map[string]any, []any, float64, string, bool or nil, plus
// json.Number for integers beyond float64 precision.
//
// The accessors never fail: an absent or mistyped field simply reports
// ok == false, which callers treat as "not reported yet".
type Snapshot map[string]any

// Lookup walks the nested mappings along path and returns the value found.
func (s Snapshot) Lookup(path ...string) (any, bool) {
	var current any = map[string]any(s)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Map returns the mapping at path.
func (s Snapshot) Map(path ...string) (map[string]any, bool) {
	v, ok := s.Lookup(path...)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// Slice returns the sequence at path.
func (s Snapshot) Slice(path ...string) ([]any, bool) {
	v, ok := s.Lookup(path...)
	if !ok {
		return nil, false
	}
	items, ok := v.([]any)
	return items, ok
}

// Number returns the numeric value at path.
func (s Snapshot) Number(path ...string) (float64, bool) {
	v, ok := s.Lookup(path...)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// String returns the string value at path.
func (s Snapshot) String(path ...string) (string, bool) {
	v, ok := s.Lookup(path...)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// Identifier returns the value at path rendered as a string.
// The cloud is inconsistent about sending identifiers as numbers or strings,
// so both are accepted; empty strings report ok == false.
func (s Snapshot) Identifier(path ...string) (string, bool) {
	v, ok := s.Lookup(path...)
	if !ok {
		return "", false
	}
	id := identifierString(v)
	return id, id != ""
}

// Clone returns a deep copy of the mapping structure.
// Sequences are copied element by element so the clone shares nothing
// mutable with the original.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	return Snapshot(cloneValue(map[string]any(s)).(map[string]any))
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// identifierString normalises a JSON scalar identifier to its string form.
func identifierString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// formatNumber renders a report number without a trailing ".0".
func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// normaliseFragment applies ingestion-time normalisation to a freshly parsed
// fragment. The discrete print state is upper-cased once here so every
// later comparison can assume one casing.
func normaliseFragment(fragment map[string]any) {
	section, ok := fragment[sectionPrint].(map[string]any)
	if !ok {
		return
	}
	if state, ok := section[fieldGcodeState].(string); ok {
		section[fieldGcodeState] = strings.ToUpper(strings.TrimSpace(state))
	}
}
