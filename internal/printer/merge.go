package printer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Merge folds source into target in place.
//
// For every key in source:
//   - a mapping value is merged recursively; target[key] is replaced by an
//     empty mapping first if it is missing or not a mapping
//   - any other value (scalar, null, sequence) replaces target[key] wholesale
//
// Keys absent from source are left untouched. Merge never fails and applying
// the same source twice yields the same target as applying it once.
func Merge(target, source map[string]any) {
	if target == nil {
		return
	}

	for key, sourceValue := range source {
		sourceMap, ok := sourceValue.(map[string]any)
		if !ok {
			target[key] = sourceValue
			continue
		}

		targetMap, ok := target[key].(map[string]any)
		if !ok {
			targetMap = make(map[string]any, len(sourceMap))
			target[key] = targetMap
		}
		Merge(targetMap, sourceMap)
	}
}

// ParseFragment decodes a raw report payload into a fragment.
// Anything other than a JSON object is rejected with ErrParse.
//
// Numbers decode to float64, except integers too large for float64 to hold
// exactly; those stay json.Number so identifiers keep every digit.
func ParseFragment(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var fragment map[string]any
	if err := dec.Decode(&fragment); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if fragment == nil {
		return nil, fmt.Errorf("%w: payload is not an object", ErrParse)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after object", ErrParse)
	}

	for key, value := range fragment {
		fragment[key] = settleNumbers(value)
	}
	return fragment, nil
}

func settleNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for key, item := range t {
			t[key] = settleNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = settleNumbers(item)
		}
		return t
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t
		}
		text := t.String()
		if !strings.ContainsAny(text, ".eE") && strconv.FormatFloat(f, 'f', -1, 64) != text {
			return t
		}
		return f
	default:
		return v
	}
}
