package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
)

// Values are arguments after validation: strings are trimmed, ints are int,
// numbers are float64 and temporal arguments are normalised.
type Values map[string]any

func (v Values) Has(name string) bool {
	_, ok := v[name]
	return ok
}

func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

func (v Values) Int(name string) int {
	n, _ := v[name].(int)
	return n
}

func (v Values) Float(name string) float64 {
	f, _ := v[name].(float64)
	return f
}

func bind(spec Spec, raw map[string]any, now time.Time) (Values, error) {
	out := make(Values, len(spec.Args))
	for _, a := range spec.Args {
		v, present := raw[a.Name]
		if present && isBlank(v) {
			present = false
		}
		if !present {
			if a.Required {
				return nil, fmt.Errorf("%w: missing required argument %s", contractx.ErrValidation, a.Name)
			}
			if a.Default != nil {
				out[a.Name] = a.Default
			}
			continue
		}

		val, err := coerce(a, v)
		if err != nil {
			return nil, err
		}

		switch a.temporal {
		case temporalDate:
			if val, err = NormalizeDate(val.(string), now); err != nil {
				return nil, err
			}
		case temporalTime:
			if val, err = NormalizeTime(val.(string)); err != nil {
				return nil, err
			}
		}
		out[a.Name] = val
	}
	return out, nil
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}

func coerce(a ArgSpec, v any) (any, error) {
	switch a.Type {
	case ArgString:
		switch t := v.(type) {
		case string:
			return strings.TrimSpace(t), nil
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), nil
		case int:
			return strconv.Itoa(t), nil
		case json.Number:
			return t.String(), nil
		default:
			return nil, fmt.Errorf("%w: %s must be a string", contractx.ErrValidation, a.Name)
		}

	case ArgInt:
		f, ok := toFloat(v)
		if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %s must be an integer, got %v", contractx.ErrValidation, a.Name, v)
		}
		n := int(f)
		if a.positive && n <= 0 {
			return nil, fmt.Errorf("%w: %s must be greater than zero", contractx.ErrValidation, a.Name)
		}
		return n, nil

	case ArgNumber:
		f, ok := toFloat(v)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %s must be a number, got %v", contractx.ErrValidation, a.Name, v)
		}
		return f, nil
	}
	return nil, fmt.Errorf("%w: %s has an unsupported type", contractx.ErrValidation, a.Name)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(t)
		s = strings.TrimPrefix(strings.ToUpper(s), "GF-")
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
