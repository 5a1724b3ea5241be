package service

import "time"

// LogFilter supports history filtering by time range, automation and event type.
type LogFilter struct {
	From       time.Time // inclusive; zero means no lower bound
	To         time.Time // inclusive; zero means no upper bound
	Automation string    // "" for all automations
	Type       string    // "", "TURN_ON", "TURN_OFF", "TIMER_ARMED", "TIMER_CANCELLED", "COMMAND_FAILED"
}

// Command actions emitted by automations.
const (
	ActionTurnOn  = "turn_on"
	ActionTurnOff = "turn_off"
)

// Command describes one device command an automation decided to send.
type Command struct {
	Action   string `json:"action"`
	DeviceID string `json:"device_id"`
	Reason   string `json:"reason"`
}

// ClimateSnapshot is the input of one dehumidifier decision.
type ClimateSnapshot struct {
	Humidity    *float64 `json:"humidity"`
	Temperature *float64 `json:"temperature"`
	DeviceOn    bool     `json:"device_on"`
}

// DehumidifierStatus is the read-only view served to the status endpoint.
type DehumidifierStatus struct {
	Enabled            bool       `json:"enabled"`
	Device             string     `json:"device"`
	Humidity           *float64   `json:"humidity"`
	Temperature        *float64   `json:"temperature"`
	DeviceOn           bool       `json:"device_on"`
	ThresholdHigh      float64    `json:"humidity_threshold_high"`
	ThresholdLow       float64    `json:"humidity_threshold_low"`
	DelaySeconds       float64    `json:"delay_seconds"`
	TimerArmed         bool       `json:"timer_armed"`
	ThresholdCrossedAt *time.Time `json:"threshold_crossed_at,omitempty"`
	SecondsRemaining   *float64   `json:"seconds_remaining,omitempty"`
	Error              string     `json:"error,omitempty"`
	CheckedAt          time.Time  `json:"checked_at"`
}

// CollectorStats summarizes the collector and what it has stored.
type CollectorStats struct {
	Running          bool       `json:"running"`
	IntervalSeconds  float64    `json:"interval_seconds"`
	SensorReadings   int64      `json:"sensor_readings"`
	ExternalReadings int64      `json:"external_readings"`
	LastReadingAt    *time.Time `json:"last_reading_at"`
}

// CycleReport describes one collection cycle.
type CycleReport struct {
	StartedAt        time.Time `json:"started_at"`
	Devices          int       `json:"devices"`
	SensorReadings   int       `json:"sensor_readings"`
	ExternalReadings int       `json:"external_readings"`
	DeviceFailures   int       `json:"device_failures"`
	StoreFailures    int       `json:"store_failures"`
}

// TurnOnParams carries the optional brightness of a manual turn-on.
type TurnOnParams struct {
	Brightness *int
}

// DeviceList is the answer of a device listing.
type DeviceList struct {
	Platform string   `json:"platform"`
	Domain   string   `json:"domain,omitempty"`
	Devices  []string `json:"devices"`
}
