package homey

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"smarthome_collector/internal/platform"
)

// homeyDevice is one entry of GET /api/manager/devices/device.
type homeyDevice struct {
	ID              string                     `json:"id"`
	Name            string                     `json:"name"`
	Zone            string                     `json:"zone"`
	ZoneName        string                     `json:"zoneName"`
	Class           string                     `json:"class"`
	Capabilities    []string                   `json:"capabilities"`
	CapabilitiesObj map[string]homeyCapability `json:"capabilitiesObj"`
	Available       *bool                      `json:"available"`
}

type homeyCapability struct {
	ID          string `json:"id"`
	Value       any    `json:"value"`
	Units       string `json:"units"`
	LastUpdated string `json:"lastUpdated"`
}

type homeyZone struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Parent string `json:"parent"`
}

type homeyFlow struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type homeyUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Present bool   `json:"present"`
	Asleep  bool   `json:"asleep"`
}

// decodeOrdered decodes a JSON object keyed by id into a slice, keeping the
// order the platform sent. Homey manager endpoints all answer in this shape.
func decodeOrdered[T any](raw []byte) ([]T, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var out []T
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		var v T
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d homeyDevice) available() bool {
	return d.Available == nil || *d.Available
}

func (d homeyDevice) normalize() platform.DeviceState {
	caps := platform.Capabilities{}
	var lastUpdated time.Time

	for key, c := range d.CapabilitiesObj {
		if c.Value == nil {
			continue
		}
		v, err := platform.ValueFromAny(c.Value)
		if err != nil {
			continue
		}
		caps.Set(key, v, c.Units)
		if t := parseTime(c.LastUpdated); t.After(lastUpdated) {
			lastUpdated = t
		}
	}

	zone := d.ZoneName
	if zone == "" {
		zone = d.Zone
	}

	return platform.DeviceState{
		ID:    d.ID,
		State: primaryState(d, caps),
		Attributes: platform.Attributes{
			FriendlyName: d.Name,
			Zone:         zone,
			DeviceClass:  d.Class,
			Capabilities: caps,
			Available:    d.available(),
		},
		LastChanged: lastUpdated,
		LastUpdated: lastUpdated,
	}
}

// primaryState mirrors onoff when present, otherwise the first measurement in
// the device's declared capability order.
func primaryState(d homeyDevice, caps platform.Capabilities) string {
	if !d.available() {
		return platform.StateUnavailable
	}
	if on, ok := caps.Bool(platform.CapOnOff); ok {
		if on {
			return platform.StateOn
		}
		return platform.StateOff
	}
	for _, key := range d.Capabilities {
		if !strings.HasPrefix(key, "measure_") {
			continue
		}
		if c, ok := caps[key]; ok {
			return c.Value.String()
		}
	}
	return platform.StateUnknown
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
