package models

import "time"

// AutomationState is the persisted timer of one automation.
// ThresholdCrossedAt is nil while no shutdown countdown is pending.
type AutomationState struct {
	Name               string     `json:"name"`
	ThresholdCrossedAt *time.Time `json:"threshold_crossed_at,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
