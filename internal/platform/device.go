package platform

import (
	"strings"
	"time"
)

// Primary states shared by both platforms.
const (
	StateOn          = "on"
	StateOff         = "off"
	StateUnavailable = "unavailable"
	StateUnknown     = "unknown"
)

// DeviceState is the vendor-independent snapshot of one device. Adapters build a new
// value on every query; callers must not expect it to change after it is returned.
type DeviceState struct {
	ID          string     `json:"id"`
	State       string     `json:"state"`
	Attributes  Attributes `json:"attributes"`
	LastChanged time.Time  `json:"last_changed"`
	LastUpdated time.Time  `json:"last_updated"`
}

// Attributes holds the descriptive part of a DeviceState.
type Attributes struct {
	FriendlyName string       `json:"friendly_name"`
	Zone         string       `json:"zone,omitempty"`
	DeviceClass  string       `json:"device_class,omitempty"`
	Capabilities Capabilities `json:"capabilities"`
	Available    bool         `json:"available"`
}

// IsOn reports the on/off state, preferring the onoff capability.
func (d DeviceState) IsOn() bool {
	if on, ok := d.Attributes.Capabilities.Bool(CapOnOff); ok {
		return on
	}
	return d.State == StateOn
}

// Brightness returns the 0-255 brightness derived from the dim capability.
func (d DeviceState) Brightness() (int, bool) {
	dim, ok := d.Attributes.Capabilities.Number(CapDim)
	if !ok {
		return 0, false
	}
	return DimToBrightness(dim), true
}

// TurnOnOptions carries optional parameters of a turn-on command.
type TurnOnOptions struct {
	// Brightness on the 0-255 scale; nil leaves brightness unchanged.
	Brightness *int
	// Extra is forwarded verbatim where the platform supports it.
	Extra map[string]any
}

// DimToBrightness converts a 0..1 dim level into 0..255.
func DimToBrightness(dim float64) int {
	b := int(dim*255 + 0.5)
	switch {
	case b < 0:
		return 0
	case b > 255:
		return 255
	}
	return b
}

// BrightnessToDim converts 0..255 brightness into a 0..1 dim level.
func BrightnessToDim(b int) float64 {
	switch {
	case b < 0:
		b = 0
	case b > 255:
		b = 255
	}
	return float64(b) / 255
}

// SplitEntityID splits "domain.object_id" and reports whether a domain was present.
func SplitEntityID(id string) (domain, object string, ok bool) {
	domain, object, ok = strings.Cut(id, ".")
	if !ok || domain == "" || object == "" {
		return "", id, false
	}
	return domain, object, true
}
