package models

import "time"

// Automation event types.
const (
	EventTurnOn         = "TURN_ON"
	EventTurnOff        = "TURN_OFF"
	EventTimerArmed     = "TIMER_ARMED"
	EventTimerCancelled = "TIMER_CANCELLED"
	EventCommandFailed  = "COMMAND_FAILED"
)

// AutomationEvent is a single entry of the automation audit log.
type AutomationEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Automation  string    `json:"automation"`
	Type        string    `json:"type"`        // TURN_ON | TURN_OFF | TIMER_ARMED | TIMER_CANCELLED | COMMAND_FAILED
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
