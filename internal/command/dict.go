// Package command implements the executable side of a turn: the CommandDict
// wire format parsers emit, its schema validator, the command factory, the
// twelve command variants, batch analysis, and the executor that runs a
// batch under one database transaction.
package command

import (
	"math"

	"github.com/ordervox/ordervox/internal/dialog"
)

// Dict is the wire format between parsers and the executor: a tagged intent
// with free-form slots. Slots hold JSON-decoded values, so numbers arrive as
// float64.
type Dict struct {
	Intent     dialog.IntentType `json:"intent"`
	Confidence float64           `json:"confidence"`
	Slots      map[string]any    `json:"slots,omitempty"`
}

// IntSlot returns the named slot as an int. JSON numbers (float64) convert
// when integral; everything else reports false.
func (d Dict) IntSlot(name string) (int, bool) {
	v, ok := d.Slots[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// StringSlot returns the named slot as a string.
func (d Dict) StringSlot(name string) (string, bool) {
	s, ok := d.Slots[name].(string)
	return s, ok
}

// StringsSlot returns the named slot as a string slice, accepting both
// []string and JSON-decoded []any.
func (d Dict) StringsSlot(name string) ([]string, bool) {
	switch v := d.Slots[name].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
