package platform

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Capability names every adapter maps its vendor representation into.
const (
	CapMeasureTemperature = "measure_temperature"
	CapMeasureHumidity    = "measure_humidity"
	CapMeasureLuminance   = "measure_luminance"
	CapAlarmMotion        = "alarm_motion"
	CapOnOff              = "onoff"
	CapDim                = "dim"
	CapTargetTemperature  = "target_temperature"
	CapThermostatMode     = "thermostat_mode"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindBool ValueKind = iota + 1
	KindNumber
	KindEnum
)

func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// Value is a capability value: exactly one of bool, number or enum is meaningful,
// selected by Kind.
type Value struct {
	Kind ValueKind
	b    bool
	num  float64
	str  string
}

// BoolValue wraps b.
func BoolValue(b bool) Value { return Value{Kind: KindBool, b: b} }

// NumberValue wraps f.
func NumberValue(f float64) Value { return Value{Kind: KindNumber, num: f} }

// EnumValue wraps s.
func EnumValue(s string) Value { return Value{Kind: KindEnum, str: s} }

// Bool returns the boolean variant.
func (v Value) Bool() (bool, bool) { return v.b, v.Kind == KindBool }

// Enum returns the enum variant.
func (v Value) Enum() (string, bool) { return v.str, v.Kind == KindEnum }

// Number returns the numeric variant.
func (v Value) Number() (float64, bool) { return v.num, v.Kind == KindNumber }

// Float coerces bools to 1/0 and returns numbers unchanged; enums do not coerce.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.num, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Interface returns the held variant as a plain Go value, for JSON payloads.
func (v Value) Interface() any {
	switch v.Kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindEnum:
		return v.str
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindEnum:
		return v.str
	default:
		return ""
	}
}

// ValueFromAny translates a decoded JSON value into a Value.
func ValueFromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case bool:
		return BoolValue(x), nil
	case float64:
		return NumberValue(x), nil
	case int:
		return NumberValue(float64(x)), nil
	case string:
		return EnumValue(x), nil
	default:
		return Value{}, fmt.Errorf("unsupported capability value %T", raw)
	}
}

// Capability is a named value with an optional unit.
type Capability struct {
	Key   string `json:"key"`
	Value Value  `json:"-"`
	Unit  string `json:"unit,omitempty"`
}

// Capabilities is keyed by capability name.
type Capabilities map[string]Capability

// Set stores a capability under its key.
func (c Capabilities) Set(key string, v Value, unit string) {
	c[key] = Capability{Key: key, Value: v, Unit: unit}
}

// Number returns the numeric value of key, if present and numeric.
func (c Capabilities) Number(key string) (float64, bool) {
	cp, ok := c[key]
	if !ok {
		return 0, false
	}
	return cp.Value.Number()
}

// Bool returns the boolean value of key, if present and boolean.
func (c Capabilities) Bool(key string) (bool, bool) {
	cp, ok := c[key]
	if !ok {
		return false, false
	}
	return cp.Value.Bool()
}

// MarshalJSON renders the capability as {"value": x, "kind": k, "unit": u}.
func (c Capability) MarshalJSON() ([]byte, error) {
	type wire struct {
		Value any    `json:"value"`
		Kind  string `json:"kind"`
		Unit  string `json:"unit,omitempty"`
	}
	return json.Marshal(wire{Value: c.Value.Interface(), Kind: c.Value.Kind.String(), Unit: c.Unit})
}
