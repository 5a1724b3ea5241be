package homeassistant

import (
	"strconv"
	"time"

	"smarthome_collector/internal/platform"
)

// haState is one element of GET /api/states.
type haState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged string         `json:"last_changed"`
	LastUpdated string         `json:"last_updated"`
}

// sensorCapabilities maps sensor device classes to measure capabilities.
var sensorCapabilities = map[string]string{
	"temperature": platform.CapMeasureTemperature,
	"humidity":    platform.CapMeasureHumidity,
	"illuminance": platform.CapMeasureLuminance,
}

var motionClasses = map[string]struct{}{"motion": {}, "occupancy": {}, "presence": {}}

// onOffDomains are domains whose state is plain on/off.
var onOffDomains = map[string]struct{}{
	"switch": {}, "fan": {}, "input_boolean": {}, "humidifier": {}, "light": {},
}

func (s haState) normalize() platform.DeviceState {
	domain, _, _ := platform.SplitEntityID(s.EntityID)
	caps := platform.Capabilities{}

	deviceClass := stringAttr(s.Attributes, "device_class")
	if deviceClass == "" {
		deviceClass = domain
	}
	unit := stringAttr(s.Attributes, "unit_of_measurement")

	switch domain {
	case "sensor":
		if capName, ok := sensorCapabilities[deviceClass]; ok {
			if v, err := strconv.ParseFloat(s.State, 64); err == nil {
				caps.Set(capName, platform.NumberValue(v), unit)
			}
		}
	case "binary_sensor":
		if _, ok := motionClasses[deviceClass]; ok {
			caps.Set(platform.CapAlarmMotion, platform.BoolValue(s.State == platform.StateOn), "")
		}
	case "climate":
		if v, ok := numberAttr(s.Attributes, "temperature"); ok {
			caps.Set(platform.CapTargetTemperature, platform.NumberValue(v), "°C")
		}
		if v, ok := numberAttr(s.Attributes, "current_temperature"); ok {
			caps.Set(platform.CapMeasureTemperature, platform.NumberValue(v), "°C")
		}
		if v, ok := numberAttr(s.Attributes, "current_humidity"); ok {
			caps.Set(platform.CapMeasureHumidity, platform.NumberValue(v), "%")
		}
		if s.State != "" && s.State != platform.StateUnavailable {
			caps.Set(platform.CapThermostatMode, platform.EnumValue(s.State), "")
		}
	}

	if _, ok := onOffDomains[domain]; ok && (s.State == platform.StateOn || s.State == platform.StateOff) {
		caps.Set(platform.CapOnOff, platform.BoolValue(s.State == platform.StateOn), "")
	}
	if domain == "light" {
		if b, ok := numberAttr(s.Attributes, "brightness"); ok {
			caps.Set(platform.CapDim, platform.NumberValue(b/255), "")
		}
	}

	return platform.DeviceState{
		ID:    s.EntityID,
		State: s.State,
		Attributes: platform.Attributes{
			FriendlyName: stringAttr(s.Attributes, "friendly_name"),
			DeviceClass:  deviceClass,
			Capabilities: caps,
			Available:    s.State != platform.StateUnavailable,
		},
		LastChanged: parseTime(s.LastChanged),
		LastUpdated: parseTime(s.LastUpdated),
	}
}

func stringAttr(attrs map[string]any, key string) string {
	if v, ok := attrs[key].(string); ok {
		return v
	}
	return ""
}

func numberAttr(attrs map[string]any, key string) (float64, bool) {
	switch v := attrs[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
