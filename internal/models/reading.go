package models

import "time"

// Sensor types persisted by the collector.
const (
	SensorTemperature       = "temperature"
	SensorHumidity          = "humidity"
	SensorBrightness        = "brightness"
	SensorMotion            = "motion"
	SensorLightState        = "light_state"
	SensorTargetTemperature = "target_temperature"
)

// External data types.
const (
	ExternalWeather  = "weather"
	ExternalPresence = "presence"
)

// SensorReading is one observed capability of one device in one poll cycle.
type SensorReading struct {
	Timestamp  time.Time      `json:"timestamp"`
	SensorID   string         `json:"sensor_id"`
	SensorType string         `json:"sensor_type"` // temperature | humidity | brightness | motion | light_state | target_temperature
	Value      float64        `json:"value"`
	Unit       string         `json:"unit,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ExternalReading is a platform-wide observation such as aggregated weather.
type ExternalReading struct {
	Timestamp time.Time `json:"timestamp"`
	DataType  string    `json:"data_type"` // weather | presence
	Payload   any       `json:"payload"`
}
